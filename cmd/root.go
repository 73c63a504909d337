package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zgr-ai/sow-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sow-cli",
	Short: "SAM.gov statement-of-work analysis pipeline",
	Long:  "Fetches SAM.gov opportunity documents, extracts hotel and conference requirements via tiered LLM/keyword extraction, synthesizes a structured SOW payload, and upserts versioned analysis records.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
