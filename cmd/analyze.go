package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/zgr-ai/sow-cli/internal/model"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <notice-id>",
	Short: "Run the full analysis pipeline for one notice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		result := e.Pipeline.Run(ctx, args[0])

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return eris.Wrap(err, "encode run result")
		}

		if result.Status == model.RunStatusFailed {
			return eris.Errorf("analysis failed for notice %s", args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
