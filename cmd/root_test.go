package main

import (
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/auto-oracle/internal/model"
	"github.com/sells-group/auto-oracle/pkg/aihub"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"run", "batch", "serve", "fill", "watch"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "auto-oracle", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunCommand_Flags(t *testing.T) {
	for _, name := range []string{"questionnaire", "chatbot_link", "output", "fail-fast", "no-open"} {
		require.NotNil(t, runCmd.Flags().Lookup(name), "run command should have --%s flag", name)
	}
}

func TestBatchCommand_Flags(t *testing.T) {
	flag := batchCmd.Flags().Lookup("concurrency")
	require.NotNil(t, flag, "batch command should have --concurrency flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestFillAndWatchCommand_Flags(t *testing.T) {
	for _, name := range []string{"document", "answers", "output"} {
		assert.NotNil(t, fillCmd.Flags().Lookup(name), "fill should have --%s flag", name)
	}
	for _, name := range []string{"dir", "chatbot_link", "fail-fast"} {
		assert.NotNil(t, watchCmd.Flags().Lookup(name), "watch should have --%s flag", name)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "unclassified", err: errors.New("boom"), want: 1},
		{name: "config", err: model.NewError(model.KindConfig, "config", "missing key"), want: 2},
		{name: "wrapped query", err: eris.Wrap(model.NewError(model.KindQuery, "knowledge", "failed"), "pipeline run"), want: 6},
		{name: "timeout", err: model.NewError(model.KindTimeout, "poll", "deadline"), want: 8},
		{
			name: "remote rejection",
			err:  model.WrapRemote(&aihub.APIError{StatusCode: 404, Body: "chatbot bot not found"}, model.KindQuery, "knowledge: submit query"),
			want: 6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
