package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/auto-oracle/internal/config"
	"github.com/sells-group/auto-oracle/internal/model"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "auto-oracle",
	Short: "Automated questionnaire answering",
	Long:  "Extracts the questions of an RFP or security questionnaire, answers each one from a hosted knowledge-base chatbot, and writes an answer table or a filled copy of the document.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return model.WrapError(err, model.KindConfig, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return model.WrapError(err, model.KindConfig, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	kind, _ := model.KindOf(err)
	return kind.ExitCode()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}
