package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/auto-oracle/internal/model"
	"github.com/sells-group/auto-oracle/internal/output"
	"github.com/sells-group/auto-oracle/internal/pipeline"
)

var (
	batchQuestions   string
	batchChatbotLink string
	batchOutput      string
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Answer a plain list of questions concurrently",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline("run", nil)
		if err != nil {
			return err
		}

		questions, err := output.ReadQuestions(batchQuestions)
		if err != nil {
			return eris.Wrap(err, "read questions")
		}
		if len(questions) == 0 {
			return model.NewError(model.KindValidation, "batch", "no questions found in "+batchQuestions)
		}

		concurrency := batchConcurrency
		if concurrency == 0 {
			concurrency = cfg.Server.BatchConcurrency
		}

		results, err := env.Pipeline.AnswerAll(ctx, questions, batchChatbotLink, concurrency)
		if err != nil {
			return eris.Wrap(err, "answer questions")
		}

		outPath := batchOutput
		if outPath == "" {
			outPath = filepath.Join(cfg.Paths.Output, "batch.csv")
		}
		return writeBatch(cmd, results, outPath)
	},
}

// writeBatch writes answered questions to outPath and failures beside it.
func writeBatch(cmd *cobra.Command, results []pipeline.BatchAnswer, outPath string) error {
	pairs := make([]model.QAPair, 0, len(results))
	var failures []model.QuestionError
	for i, r := range results {
		if r.Err != nil {
			failures = append(failures, model.QuestionError{Index: i, Question: r.Question, Err: r.Err})
			continue
		}
		pairs = append(pairs, model.QAPair{Question: r.Question, Answer: r.Answer})
	}

	if len(failures) > 0 {
		if err := output.WriteFailures(failures, output.FailuresPath(outPath)); err != nil {
			return err
		}
		if len(pairs) == 0 {
			return eris.Wrap(failures[0].Err, "batch: no question could be answered")
		}
	}
	if err := output.WriteTable(pairs, outPath); err != nil {
		return err
	}

	zap.L().Info("batch complete",
		zap.Int("questions", len(results)),
		zap.Int("answered", len(pairs)),
		zap.Int("failed", len(failures)),
		zap.String("output", outPath),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Answered %d/%d questions, written to %s\n", len(pairs), len(results), outPath) //nolint:errcheck
	return nil
}

func init() {
	batchCmd.Flags().StringVar(&batchQuestions, "questions", "", "question list: .txt with one per line, or first column of a .csv/.xlsx (required)")
	batchCmd.Flags().StringVar(&batchChatbotLink, "chatbot_link", "", "link to the knowledge-base chatbot (required)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "answer table path (default <paths.output>/batch.csv)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "questions in flight (default server.batch_concurrency)")
	_ = batchCmd.MarkFlagRequired("questions")
	_ = batchCmd.MarkFlagRequired("chatbot_link")
	rootCmd.AddCommand(batchCmd)
}
