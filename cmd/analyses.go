package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/zgr-ai/sow-cli/internal/store"
)

var analysesCmd = &cobra.Command{
	Use:   "analyses",
	Short: "Query stored SOW analyses",
}

var analysesGetCmd = &cobra.Command{
	Use:   "get <notice-id>",
	Short: "Show the active analysis for a notice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		rec, err := st.GetActive(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Fprintf(os.Stderr, "no active analysis for notice %s\n", args[0])
			os.Exit(1)
		}
		return printJSON(rec)
	},
}

var searchFilter store.SearchFilter

var analysesSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search analyses by computed payload fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		recs, err := st.Search(cmd.Context(), searchFilter)
		if err != nil {
			return err
		}
		return printJSON(recs)
	},
}

var listFilter store.ListFilter
var listAll bool

var analysesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analysis records",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		listFilter.ActiveOnly = !listAll
		recs, err := st.List(cmd.Context(), listFilter)
		if err != nil {
			return err
		}
		return printJSON(recs)
	},
}

var analysesDeactivateCmd = &cobra.Command{
	Use:   "deactivate <notice-id> <template-version>",
	Short: "Administratively retire one analysis version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Deactivate(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("deactivated analysis %s %s\n", args[0], args[1])
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode output")
	}
	return nil
}

func init() {
	f := analysesSearchCmd.Flags()
	f.IntVar(&searchFilter.MinGeneralSessionCapacity, "min-capacity", 0, "minimum general session capacity")
	f.IntVar(&searchFilter.MinBreakoutRooms, "min-breakout-rooms", 0, "minimum breakout room count")
	f.IntVar(&searchFilter.MinRoomsPerNight, "min-rooms", 0, "minimum rooms per night")
	f.StringVar(&searchFilter.SetupDeadlineBefore, "deadline-before", "", "setup deadline at or before (YYYY-MM-DD)")
	f.StringVar(&searchFilter.PeriodStartPrefix, "period-start", "", "period of performance start prefix (e.g. 2026-03)")
	f.BoolVar(&searchFilter.ActiveOnly, "active-only", true, "only active records")
	f.IntVar(&searchFilter.Limit, "limit", 0, "max results")
	f.IntVar(&searchFilter.Offset, "offset", 0, "result offset")
	f.StringVar(&searchFilter.OrderBy, "order-by", "", "order by: updated_at (default), created_at, notice_id")

	lf := analysesListCmd.Flags()
	lf.StringVar(&listFilter.NoticeID, "notice-id", "", "filter by notice ID")
	lf.StringVar(&listFilter.TemplateVersion, "template-version", "", "filter by template version")
	lf.BoolVar(&listAll, "all", false, "include deactivated records")
	lf.IntVar(&listFilter.Limit, "limit", 0, "max results")
	lf.IntVar(&listFilter.Offset, "offset", 0, "result offset")

	analysesCmd.AddCommand(analysesGetCmd, analysesSearchCmd, analysesListCmd, analysesDeactivateCmd)
	rootCmd.AddCommand(analysesCmd)
}
