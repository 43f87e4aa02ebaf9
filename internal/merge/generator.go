package merge

import (
	"context"

	"github.com/sells-group/auto-oracle/pkg/anthropic"
	"github.com/sells-group/auto-oracle/pkg/openai"
)

// Generator is a chat-completion backend that turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// AnthropicGenerator generates with the Anthropic Messages API. The system
// prompt is the same for every document, so it is sent as a cached block;
// CacheTTL picks the cache lifetime ("5m" or "1h", empty for the API default).
type AnthropicGenerator struct {
	Client    anthropic.Client
	Model     string
	MaxTokens int64
	CacheTTL  string
}

// Generate implements Generator.
func (g *AnthropicGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	temp := 0.0
	req := anthropic.MessageRequest{
		Model:       g.Model,
		MaxTokens:   g.MaxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	}
	if system != "" {
		req.System = []anthropic.SystemBlock{{
			Text:         system,
			CacheControl: &anthropic.CacheControl{TTL: g.CacheTTL},
		}}
	}

	resp, err := g.Client.CreateMessage(ctx, req)
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(resp.Model, "merge")
	return resp.Text(), nil
}

// OpenAIGenerator generates with the OpenAI chat completions API.
type OpenAIGenerator struct {
	Client    openai.Client
	Model     string
	MaxTokens int
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.Client.CreateChatCompletion(ctx, openai.ChatRequest{
		Model:     g.Model,
		System:    system,
		User:      prompt,
		MaxTokens: g.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
