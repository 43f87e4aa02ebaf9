// Package config loads application settings from config.yaml and the
// environment, and builds the global logger.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/auto-oracle/internal/model"
)

// EnvPrefix prefixes every environment override, e.g. AUTOORACLE_AIHUB_KEY.
const EnvPrefix = "AUTOORACLE"

// Config holds the full application configuration.
type Config struct {
	AIHub     AIHubConfig     `yaml:"aihub" mapstructure:"aihub"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Knowledge KnowledgeConfig `yaml:"knowledge" mapstructure:"knowledge"`
	Merge     MergeConfig     `yaml:"merge" mapstructure:"merge"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Circuit   CircuitConfig   `yaml:"circuit" mapstructure:"circuit"`
	Paths     PathsConfig     `yaml:"paths" mapstructure:"paths"`
	Prompts   PromptsConfig   `yaml:"prompts" mapstructure:"prompts"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AIHubConfig holds credentials for the hosted document and chatbot APIs.
type AIHubConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Context     string `yaml:"context" mapstructure:"context"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ExtractConfig configures question extraction.
type ExtractConfig struct {
	PollIntervalSecs int `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	PollCapSecs      int `yaml:"poll_cap_secs" mapstructure:"poll_cap_secs"`
	PollTimeoutSecs  int `yaml:"poll_timeout_secs" mapstructure:"poll_timeout_secs"`
	MaxQuestions     int `yaml:"max_questions" mapstructure:"max_questions"`
}

// KnowledgeConfig configures knowledge-base queries.
type KnowledgeConfig struct {
	Model            string  `yaml:"model" mapstructure:"model"`
	PollIntervalSecs int     `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	PollCapSecs      int     `yaml:"poll_cap_secs" mapstructure:"poll_cap_secs"`
	PollTimeoutSecs  int     `yaml:"poll_timeout_secs" mapstructure:"poll_timeout_secs"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// MergeConfig selects the document rewrite backend.
type MergeConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	Model      string `yaml:"model" mapstructure:"model"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	MaxRetries int    `yaml:"max_retries" mapstructure:"max_retries"`
	CacheTTL   string `yaml:"cache_ttl" mapstructure:"cache_ttl"` // "5m" or "1h"
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// RetryConfig configures retries of transient remote failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// CircuitConfig configures the per-service circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// PathsConfig names the working directories.
type PathsConfig struct {
	Uploads string `yaml:"uploads" mapstructure:"uploads"`
	Output  string `yaml:"output" mapstructure:"output"`
}

// PromptsConfig points at an optional prompt override file.
type PromptsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins   []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	BatchConcurrency int      `yaml:"batch_concurrency" mapstructure:"batch_concurrency"`
	MaxUploadMB      int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// legacyEnv maps config keys to the unprefixed variable names older
// deployments export. Prefixed variables take precedence.
var legacyEnv = map[string][]string{
	"aihub.key":     {"API_KEY"},
	"aihub.context": {"IB_CONTEXT", "IB-CONTEXT"},
	"openai.key":    {"OPENAI_API_KEY"},
	"anthropic.key": {"ANTHROPIC_API_KEY"},
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		args := append([]string{key, EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, eris.Wrapf(err, "config: bind env for %s", key)
		}
	}

	// Defaults
	v.SetDefault("aihub.base_url", "https://aihub.instabase.com/api")
	v.SetDefault("aihub.timeout_secs", 60)
	v.SetDefault("extract.poll_interval_secs", 5)
	v.SetDefault("extract.poll_cap_secs", 30)
	v.SetDefault("extract.poll_timeout_secs", 600)
	v.SetDefault("extract.max_questions", 0)
	v.SetDefault("knowledge.model", "multistep-lite")
	v.SetDefault("knowledge.poll_interval_secs", 5)
	v.SetDefault("knowledge.poll_cap_secs", 30)
	v.SetDefault("knowledge.poll_timeout_secs", 300)
	v.SetDefault("knowledge.rate_per_sec", 2)
	v.SetDefault("merge.provider", "anthropic")
	v.SetDefault("merge.max_tokens", 16000)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.max_retries", 2)
	v.SetDefault("anthropic.cache_ttl", "5m")
	v.SetDefault("openai.model", "gpt-4o-mini-2024-07-18")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("prompts.path", "")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("paths.uploads", "uploads")
	v.SetDefault("paths.output", "output_docs")
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.batch_concurrency", 4)
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. Every problem is reported
// in a single ConfigError.
func (c *Config) Validate(mode string) error {
	var problems []string
	require := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	needsAIHub := false
	needsMerge := false
	switch mode {
	case "run", "watch":
		needsAIHub = true
	case "serve":
		needsAIHub = true
		needsMerge = true
		require(c.Server.Port > 0 && c.Server.Port < 65536, "server.port must be between 1 and 65535")
		require(c.Server.BatchConcurrency >= 1 && c.Server.BatchConcurrency <= 32, "server.batch_concurrency must be between 1 and 32")
	case "fill":
		needsMerge = true
	default:
		return model.Errorf(model.KindConfig, "config: validate", "unknown mode %q", mode)
	}

	if needsAIHub {
		require(c.AIHub.Key != "", "aihub.key is required (AUTOORACLE_AIHUB_KEY or API_KEY)")
		require(c.AIHub.Context != "", "aihub.context is required (AUTOORACLE_AIHUB_CONTEXT or IB_CONTEXT)")
		require(c.Knowledge.RatePerSec >= 0, "knowledge.rate_per_sec must be >= 0")
		require(c.Extract.MaxQuestions >= 0, "extract.max_questions must be >= 0")
	}
	if needsMerge {
		switch c.Merge.Provider {
		case "anthropic":
			require(c.Anthropic.Key != "", "anthropic.key is required (AUTOORACLE_ANTHROPIC_KEY or ANTHROPIC_API_KEY)")
			require(c.Anthropic.MaxRetries >= 0, "anthropic.max_retries must be >= 0")
			require(c.Anthropic.CacheTTL == "" || c.Anthropic.CacheTTL == "5m" || c.Anthropic.CacheTTL == "1h",
				"anthropic.cache_ttl must be 5m or 1h")
		case "openai":
			require(c.OpenAI.Key != "", "openai.key is required (AUTOORACLE_OPENAI_KEY or OPENAI_API_KEY)")
		default:
			problems = append(problems, fmt.Sprintf("merge.provider must be anthropic or openai, got %q", c.Merge.Provider))
		}
	}

	if len(problems) > 0 {
		return model.NewError(model.KindConfig, "config: validate "+mode, strings.Join(problems, "; "))
	}
	return nil
}

// Seconds converts a seconds setting into a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
