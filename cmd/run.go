package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/auto-oracle/internal/output"
	"github.com/sells-group/auto-oracle/internal/pipeline"
)

var (
	runQuestionnaire string
	runChatbotLink   string
	runOutput        string
	runFailFast      bool
	runNoOpen        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Answer a questionnaire and write the answer table",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		env, err := initPipeline("run", out)
		if err != nil {
			return err
		}

		outPath := runOutput
		if outPath == "" {
			outPath = filepath.Join(cfg.Paths.Output, "output.csv")
		}

		result, err := env.Pipeline.Run(ctx, pipeline.RunInput{
			Questionnaire: runQuestionnaire,
			ChatbotLink:   runChatbotLink,
			OutputPath:    outPath,
			FailFast:      runFailFast,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("questionnaire complete",
			zap.Int("questions", len(result.Questions)),
			zap.Int("answered", result.Answered()),
			zap.Int("failed", len(result.Failures)),
			zap.String("output", result.OutputPath),
		)

		if !runNoOpen {
			openOutput(out, result.OutputPath)
		}
		return nil
	},
}

// openOutput shows path in the default viewer. Failure to open is reported
// but never fails the run.
func openOutput(w io.Writer, path string) {
	if err := output.Open(path); err != nil {
		fmt.Fprintf(w, "Could not open %s: %v\n", path, err) //nolint:errcheck
		return
	}
	fmt.Fprintf(w, "Opened %s\n", path) //nolint:errcheck
}

func init() {
	runCmd.Flags().StringVar(&runQuestionnaire, "questionnaire", "", "path to the questionnaire document (required)")
	runCmd.Flags().StringVar(&runChatbotLink, "chatbot_link", "", "link to the knowledge-base chatbot (required)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "answer table path, .csv or .xlsx (default <paths.output>/output.csv)")
	runCmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "stop at the first question that cannot be answered")
	runCmd.Flags().BoolVar(&runNoOpen, "no-open", false, "do not open the answer table when done")
	_ = runCmd.MarkFlagRequired("questionnaire")
	_ = runCmd.MarkFlagRequired("chatbot_link")
	rootCmd.AddCommand(runCmd)
}
