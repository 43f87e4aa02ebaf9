//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/auto-oracle/internal/config"
)

// fakeAIHub serves a completed conversation that extracts two questions and
// answers each query by echoing it.
func fakeAIHub(t *testing.T) *httptest.Server {
	t.Helper()
	queries := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/aihub/converse/conversations":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":            "conv-1",
				"upload_status": map[string]any{"success": []map[string]string{{"name": "q.txt"}}},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/v2/aihub/converse/conversations/conv-1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":        "conv-1",
				"state":     "COMPLETE",
				"documents": []map[string]any{{"id": 7, "name": "q.txt"}},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/v2/aihub/converse/conversations/conv-1/prompts":
			_ = json.NewEncoder(w).Encode(map[string]string{
				"prompt_id": "p1",
				"answer":    "```python\n['Do you encrypt data at rest?', 'Is MFA enforced?']\n```",
			})
		case r.Method == http.MethodPost && r.URL.Path == "/v2/queries":
			var req struct {
				Query string `json:"query"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			id := "q" + string(rune('0'+len(queries)))
			queries[id] = req.Query
			_ = json.NewEncoder(w).Encode(map[string]string{"query_id": id})
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v2/queries/"):
			id := strings.TrimPrefix(r.URL.Path, "/v2/queries/")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"query_id": id,
				"status":   "COMPLETE",
				"results":  []map[string]string{{"response": "Answer to " + queries[id]}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testRunConfig(baseURL, outDir string) *config.Config {
	return &config.Config{
		AIHub:     config.AIHubConfig{Key: "test-key", Context: "org", BaseURL: baseURL, TimeoutSecs: 5},
		Extract:   config.ExtractConfig{PollIntervalSecs: 1, PollCapSecs: 1, PollTimeoutSecs: 10},
		Knowledge: config.KnowledgeConfig{Model: "multistep-lite", PollIntervalSecs: 1, PollCapSecs: 1, PollTimeoutSecs: 10},
		Merge:     config.MergeConfig{Provider: "anthropic"},
		Retry:     config.RetryConfig{MaxAttempts: 1, InitialBackoffMs: 1, MaxBackoffMs: 1},
		Circuit:   config.CircuitConfig{FailureThreshold: 5, ResetTimeoutSecs: 1},
		Paths:     config.PathsConfig{Uploads: "uploads", Output: outDir},
	}
}

func resetRunFlags() {
	runQuestionnaire, runChatbotLink, runOutput = "", "", ""
	runFailFast, runNoOpen = false, false
}

func TestRunCmd_RunE_FailsOnValidation(t *testing.T) {
	cfg = &config.Config{}
	defer resetRunFlags()
	runQuestionnaire = "q.docx"
	runChatbotLink = "https://hub/apps/bot-1"

	runCmd.SetContext(context.Background())
	defer runCmd.SetContext(context.TODO())

	err := runCmd.RunE(runCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aihub.key is required")
	assert.Equal(t, 2, exitCode(err))
}

func TestRunCmd_RunE_WritesAnswerTable(t *testing.T) {
	hub := fakeAIHub(t)
	dir := t.TempDir()
	doc := filepath.Join(dir, "q.txt")
	require.NoError(t, os.WriteFile(doc, []byte("1. Do you encrypt data at rest?\n2. Is MFA enforced?\n"), 0o644))

	cfg = testRunConfig(hub.URL, filepath.Join(dir, "output_docs"))
	defer resetRunFlags()
	runQuestionnaire = doc
	runChatbotLink = "https://hub/apps/bot-1/"
	runNoOpen = true

	var out bytes.Buffer
	runCmd.SetOut(&out)
	defer runCmd.SetOut(nil)
	runCmd.SetContext(context.Background())
	defer runCmd.SetContext(context.TODO())

	require.NoError(t, runCmd.RunE(runCmd, nil))

	f, err := os.Open(filepath.Join(dir, "output_docs", "output.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Question", "Answer"},
		{"Do you encrypt data at rest?", "Answer to Do you encrypt data at rest?"},
		{"Is MFA enforced?", "Answer to Is MFA enforced?"},
	}, rows)

	progress := out.String()
	assert.Contains(t, progress, "Questions identified: 2")
	assert.Contains(t, progress, "Finding answer for question 2/2: 'Is MFA enforced?'")
	assert.Contains(t, progress, "Output document generated with 2 questions answered.")
}

func TestRunCmd_RunE_InvalidChatbotLink(t *testing.T) {
	hub := fakeAIHub(t)
	dir := t.TempDir()

	cfg = testRunConfig(hub.URL, dir)
	defer resetRunFlags()
	runQuestionnaire = filepath.Join(dir, "q.txt")
	runChatbotLink = "https://hub/"
	runNoOpen = true

	runCmd.SetContext(context.Background())
	defer runCmd.SetContext(context.TODO())

	err := runCmd.RunE(runCmd, nil)
	require.Error(t, err)
	assert.Equal(t, 9, exitCode(err))
}
