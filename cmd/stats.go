package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dicom-index/internal/database"
	"dicom-index/internal/logging"
)

// statsRows are the tables shown by the stats command, in display order.
var statsRows = []struct {
	table string
	label string
}{
	{"patient", "Patients"},
	{"study", "Studies"},
	{"series", "Series"},
	{"instance", "Instances"},
	{"duplicate_instance", "Duplicate files"},
	{"non_container_file", "Non-DICOM files"},
	{"failed_file", "Failed files"},
}

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [DATABASE]",
		Short: "Show the number of catalogued entities",
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

			counts, err := db.CountRows(cmd.Context())
			if err != nil {
				return err
			}
			runs, err := db.ListRuns(cmd.Context(), 1)
			if err != nil {
				return err
			}

			writeStats(cmd.OutOrStdout(), cfg.Database, counts, runs)
			return nil
		},
	}
}

func writeStats(out io.Writer, path string, counts map[string]int64, runs []database.Run) {
	fmt.Fprintf(out, "Catalog %s\n\n", path)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Level\tCount\t")
	for _, row := range statsRows {
		fmt.Fprintf(w, "%s\t%s\t\n", row.label, humanize.Comma(counts[row.table]))
	}
	_ = w.Flush()

	if len(runs) > 0 {
		last := runs[0]
		fmt.Fprintf(out, "\nLast run %s: %s, started %s\n", last.ID, last.Status, humanize.Time(last.StartedAt))
	}
}
