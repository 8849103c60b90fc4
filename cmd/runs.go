package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dicom-index/internal/database"
	"dicom-index/internal/logging"
)

func newRunsCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [DATABASE]",
		Short: "List recorded index runs, most recent first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load(args, 0)
			if err != nil {
				return err
			}
			if err := openExisting(cfg.Database); err != nil {
				return err
			}

			db, err := database.New(cmd.Context(), cfg.Database, logging.Component(a.log, "database"))
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer db.Close()

			runs, err := db.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			writeRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show (0 for all)")
	return cmd
}

func writeRuns(out io.Writer, runs []database.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tSTRATEGY\tSTATUS\tPROCESSED\tDUPLICATES\tNON-DICOM\tFAILED\tVISITED\tROOT")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(r.ID),
			humanize.Time(r.StartedAt),
			runDuration(r),
			r.Strategy,
			r.Status,
			humanize.Comma(int64(r.Counts.Processed)),
			humanize.Comma(int64(r.Counts.Duplicates)),
			humanize.Comma(int64(r.Counts.NonContainer)),
			humanize.Comma(int64(r.Counts.Failed)),
			humanize.Comma(int64(r.Counts.AlreadyVisited)),
			r.Root,
		)
	}
	_ = w.Flush()

	for _, r := range runs {
		if r.Error != "" {
			fmt.Fprintf(out, "%s: %s\n", shortID(r.ID), r.Error)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runDuration(r database.Run) string {
	if r.FinishedAt.IsZero() {
		return "-"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
}
