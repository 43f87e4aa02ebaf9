package main

import (
	"io"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/auto-oracle/internal/config"
	"github.com/sells-group/auto-oracle/internal/knowledge"
	"github.com/sells-group/auto-oracle/internal/merge"
	"github.com/sells-group/auto-oracle/internal/model"
	"github.com/sells-group/auto-oracle/internal/pipeline"
	"github.com/sells-group/auto-oracle/internal/prompts"
	"github.com/sells-group/auto-oracle/internal/questionnaire"
	"github.com/sells-group/auto-oracle/internal/resilience"
	"github.com/sells-group/auto-oracle/pkg/aihub"
	anthropicpkg "github.com/sells-group/auto-oracle/pkg/anthropic"
	openaipkg "github.com/sells-group/auto-oracle/pkg/openai"
)

// pipelineEnv holds the clients and the pipeline built for a command.
type pipelineEnv struct {
	Prompts  *prompts.Set
	AIHub    aihub.Client
	Pipeline *pipeline.Pipeline
}

// initPipeline validates cfg for mode and builds the pipeline. The fill mode
// needs no hosted API client, so its parser and answerer are left nil.
func initPipeline(mode string, progress io.Writer) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	set, err := prompts.Load(cfg.Prompts.Path)
	if err != nil {
		return nil, model.WrapError(err, model.KindConfig, "load prompts")
	}

	env := &pipelineEnv{Prompts: set}

	var filler pipeline.Filler
	if mode == "serve" || mode == "fill" {
		gen, err := newGenerator(cfg)
		if err != nil {
			return nil, err
		}
		filler = merge.New(gen, set)
	}

	if mode == "fill" {
		env.Pipeline = pipeline.New(nil, nil, filler, progress)
		return env, nil
	}

	env.AIHub = newAIHubClient(cfg)

	// The CLI asks for the short question list of the command line tool; the
	// web flow uses the full extraction prompt.
	extractPrompt := set.Extraction
	if mode != "serve" && set.ExtractionCLI != "" {
		extractPrompt = set.ExtractionCLI
	}

	extractor := questionnaire.NewExtractor(env.AIHub, questionnaire.Options{
		Prompt:       extractPrompt,
		MaxQuestions: cfg.Extract.MaxQuestions,
		PollInterval: config.Seconds(cfg.Extract.PollIntervalSecs),
		PollCap:      config.Seconds(cfg.Extract.PollCapSecs),
		PollTimeout:  config.Seconds(cfg.Extract.PollTimeoutSecs),
	})
	answerer := knowledge.NewClient(env.AIHub, knowledge.Options{
		Model:        cfg.Knowledge.Model,
		RatePerSec:   cfg.Knowledge.RatePerSec,
		PollInterval: config.Seconds(cfg.Knowledge.PollIntervalSecs),
		PollCap:      config.Seconds(cfg.Knowledge.PollCapSecs),
		PollTimeout:  config.Seconds(cfg.Knowledge.PollTimeoutSecs),
	})

	env.Pipeline = pipeline.New(extractor, answerer, filler, progress)

	zap.L().Debug("pipeline initialized",
		zap.String("mode", mode),
		zap.String("aihub_base_url", cfg.AIHub.BaseURL),
		zap.String("knowledge_model", cfg.Knowledge.Model),
		zap.Bool("merge_enabled", filler != nil),
	)
	return env, nil
}

func newAIHubClient(c *config.Config) aihub.Client {
	opts := []aihub.Option{
		aihub.WithContextID(c.AIHub.Context),
		aihub.WithRetry(resilience.FromSettings(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs)),
		aihub.WithBreakers(resilience.NewServiceBreakers(resilience.CircuitBreakerConfig{
			FailureThreshold: c.Circuit.FailureThreshold,
			ResetTimeout:     config.Seconds(c.Circuit.ResetTimeoutSecs),
		})),
	}
	if c.AIHub.BaseURL != "" {
		opts = append(opts, aihub.WithBaseURL(c.AIHub.BaseURL))
	}
	if c.AIHub.TimeoutSecs > 0 {
		opts = append(opts, aihub.WithHTTPClient(&http.Client{Timeout: config.Seconds(c.AIHub.TimeoutSecs)}))
	}
	return aihub.NewClient(c.AIHub.Key, opts...)
}

// newGenerator picks the document rewrite backend named by merge.provider.
func newGenerator(c *config.Config) (merge.Generator, error) {
	switch c.Merge.Provider {
	case "", "anthropic":
		opts := []anthropicpkg.Option{anthropicpkg.WithMaxRetries(c.Anthropic.MaxRetries)}
		if c.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicpkg.WithBaseURL(c.Anthropic.BaseURL))
		}
		return &merge.AnthropicGenerator{
			Client:    anthropicpkg.NewClient(c.Anthropic.Key, opts...),
			Model:     c.Anthropic.Model,
			MaxTokens: int64(c.Merge.MaxTokens),
			CacheTTL:  c.Anthropic.CacheTTL,
		}, nil
	case "openai":
		var opts []openaipkg.Option
		if c.OpenAI.BaseURL != "" {
			opts = append(opts, openaipkg.WithBaseURL(c.OpenAI.BaseURL))
		}
		return &merge.OpenAIGenerator{
			Client:    openaipkg.NewClient(c.OpenAI.Key, opts...),
			Model:     c.OpenAI.Model,
			MaxTokens: c.Merge.MaxTokens,
		}, nil
	default:
		return nil, eris.Wrap(
			model.Errorf(model.KindConfig, "config", "unknown merge provider %q", c.Merge.Provider),
			"init generator",
		)
	}
}
