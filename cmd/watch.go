package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/auto-oracle/internal/knowledge"
	"github.com/sells-group/auto-oracle/internal/watch"
)

var (
	watchDir         string
	watchChatbotLink string
	watchFailFast    bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Answer every questionnaire dropped into a folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if _, err := knowledge.ChatbotID(watchChatbotLink); err != nil {
			return err
		}

		env, err := initPipeline("watch", cmd.OutOrStdout())
		if err != nil {
			return err
		}

		dir := watchDir
		if dir == "" {
			dir = cfg.Paths.Uploads
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "create watch dir %s", dir)
		}

		w := watch.New(env.Pipeline, watch.Options{
			Dir:         dir,
			OutputDir:   cfg.Paths.Output,
			ChatbotLink: watchChatbotLink,
			FailFast:    watchFailFast,
		})
		return w.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchDir, "dir", "", "drop folder to watch (default <paths.uploads>)")
	watchCmd.Flags().StringVar(&watchChatbotLink, "chatbot_link", "", "link to the knowledge-base chatbot (required)")
	watchCmd.Flags().BoolVar(&watchFailFast, "fail-fast", false, "stop a run at the first question that cannot be answered")
	_ = watchCmd.MarkFlagRequired("chatbot_link")
	rootCmd.AddCommand(watchCmd)
}
