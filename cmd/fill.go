package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/auto-oracle/internal/output"
)

var (
	fillDocument string
	fillAnswers  string
	fillOutput   string
)

var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Write an existing answer table into a copy of a word document",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline("fill", nil)
		if err != nil {
			return err
		}

		pairs, err := output.ReadTable(fillAnswers)
		if err != nil {
			return eris.Wrap(err, "read answers")
		}

		written, err := env.Pipeline.Fill(ctx, fillDocument, pairs, fillOutput)
		if err != nil {
			return eris.Wrap(err, "fill document")
		}

		zap.L().Info("document filled",
			zap.String("document", fillDocument),
			zap.Int("pairs", len(pairs)),
			zap.String("output", written),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "Filled document written to %s\n", written) //nolint:errcheck
		return nil
	},
}

func init() {
	fillCmd.Flags().StringVar(&fillDocument, "document", "", "word document to fill (required)")
	fillCmd.Flags().StringVar(&fillAnswers, "answers", "", "answer table from a previous run, .csv or .xlsx (required)")
	fillCmd.Flags().StringVar(&fillOutput, "output", "", "output path (default <document>_filled.docx)")
	_ = fillCmd.MarkFlagRequired("document")
	_ = fillCmd.MarkFlagRequired("answers")
	rootCmd.AddCommand(fillCmd)
}
