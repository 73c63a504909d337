package main

import (
	"bufio"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/zgr-ai/sow-cli/internal/model"
)

var batchWorkers int

var batchCmd = &cobra.Command{
	Use:   "batch <notice-id-file>",
	Short: "Run the pipeline for a file of notice IDs, one per line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ids, err := readNoticeIDs(args[0])
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return eris.Errorf("no notice IDs in %s", args[0])
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		results := e.Pipeline.RunBatch(ctx, ids, batchWorkers)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return eris.Wrap(err, "encode batch results")
		}

		for _, r := range results {
			if r.Status == model.RunStatusFailed {
				return eris.Errorf("batch had failed runs")
			}
		}
		return nil
	},
}

// readNoticeIDs reads one ID per line, skipping blanks and # comments.
func readNoticeIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return ids, nil
}

func init() {
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "concurrent notices (default from config)")
	rootCmd.AddCommand(batchCmd)
}
