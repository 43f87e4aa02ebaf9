//go:build !integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/auto-oracle/internal/config"
	"github.com/sells-group/auto-oracle/internal/merge"
	"github.com/sells-group/auto-oracle/internal/model"
)

func TestInitPipeline_FillNeedsNoAIHub(t *testing.T) {
	cfg = &config.Config{
		Merge:     config.MergeConfig{Provider: "anthropic", MaxTokens: 1000},
		Anthropic: config.AnthropicConfig{Key: "sk-test"},
	}

	env, err := initPipeline("fill", nil)
	require.NoError(t, err)
	assert.Nil(t, env.AIHub)
	assert.NotNil(t, env.Pipeline)
	assert.NotNil(t, env.Prompts)
}

func TestInitPipeline_RunBuildsAIHubClient(t *testing.T) {
	cfg = testRunConfig("http://127.0.0.1:1", t.TempDir())

	env, err := initPipeline("run", nil)
	require.NoError(t, err)
	assert.NotNil(t, env.AIHub)
	assert.NotNil(t, env.Pipeline)
}

func TestInitPipeline_BadPromptsPath(t *testing.T) {
	cfg = testRunConfig("http://127.0.0.1:1", t.TempDir())
	cfg.Prompts.Path = "does/not/exist.yaml"

	_, err := initPipeline("run", nil)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindConfig))
}

func TestNewGenerator(t *testing.T) {
	c := &config.Config{
		Merge:     config.MergeConfig{Provider: "openai", MaxTokens: 500},
		OpenAI:    config.OpenAIConfig{Key: "sk-test", Model: "gpt-4o-mini", BaseURL: "http://127.0.0.1:1/v1"},
		Anthropic: config.AnthropicConfig{Key: "sk-ant", Model: "claude-haiku-4-5-20251001"},
	}

	gen, err := newGenerator(c)
	require.NoError(t, err)
	oa, ok := gen.(*merge.OpenAIGenerator)
	require.True(t, ok)
	assert.Equal(t, "gpt-4o-mini", oa.Model)
	assert.Equal(t, 500, oa.MaxTokens)

	c.Merge.Provider = "anthropic"
	gen, err = newGenerator(c)
	require.NoError(t, err)
	an, ok := gen.(*merge.AnthropicGenerator)
	require.True(t, ok)
	assert.Equal(t, int64(500), an.MaxTokens)

	c.Merge.Provider = "bard"
	_, err = newGenerator(c)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindConfig))
}

func TestNewGenerator_AnthropicSettings(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After-Ms", "1")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var body struct {
			System []struct {
				Text         string `json:"text"`
				CacheControl struct {
					TTL string `json:"ttl"`
				} `json:"cache_control"`
			} `json:"system"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if assert.Len(t, body.System, 1) {
			assert.Equal(t, "Return only XML", body.System[0].Text)
			assert.Equal(t, "1h", body.System[0].CacheControl.TTL)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":          "msg_01",
			"type":        "message",
			"role":        "assistant",
			"content":     []map[string]any{{"type": "text", "text": "<doc/>"}},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 3, "output_tokens": 1},
		})
	}))
	defer ts.Close()

	c := &config.Config{
		Merge: config.MergeConfig{Provider: "anthropic", MaxTokens: 64},
		Anthropic: config.AnthropicConfig{
			Key:        "sk-ant",
			Model:      "claude-haiku-4-5-20251001",
			BaseURL:    ts.URL,
			MaxRetries: 1,
			CacheTTL:   "1h",
		},
	}

	gen, err := newGenerator(c)
	require.NoError(t, err)
	out, err := gen.Generate(context.Background(), "Return only XML", "Fill")
	require.NoError(t, err)
	assert.Equal(t, "<doc/>", out)
	assert.Equal(t, int32(2), calls.Load())

	// With retries off the first failure is final.
	calls.Store(0)
	c.Anthropic.MaxRetries = 0
	gen, err = newGenerator(c)
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), "Return only XML", "Fill")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
