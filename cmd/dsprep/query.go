package main

import (
	"database/sql"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/michaelscutari/dsprep/internal/db"
	"github.com/michaelscutari/dsprep/internal/entry"
	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query a manifest non-interactively",
	Long: `Query a run manifest and output results for scripting. Without --class
the classes are listed; with --class the images of that class. --failed
lists failed images across all classes.`,
	RunE: runQuery,
}

var (
	queryDB     string
	queryClass  string
	queryFailed bool
	queryStatus string
	querySort   string
	queryLimit  int
)

func init() {
	queryCmd.Flags().StringVarP(&queryDB, "db", "d", "", "Path to manifest (default <manifest.dir>/latest.db)")
	queryCmd.Flags().StringVarP(&queryClass, "class", "c", "", "List the images of this class")
	queryCmd.Flags().BoolVar(&queryFailed, "failed", false, "List failed images across all classes")
	queryCmd.Flags().StringVar(&queryStatus, "status", "", "With --class, only images with this status: ok, skipped, failed")
	queryCmd.Flags().StringVarP(&querySort, "sort", "s", "name", "Sort by: name, label, total, failed, size (classes); name, size, status, time (images)")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 20, "Maximum number of results (0 = all)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	path, err := manifestPath(queryDB)
	if err != nil {
		return err
	}
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	switch {
	case queryFailed:
		items, err := db.LoadFailures(database, queryLimit)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		fmt.Fprintf(w, "CLASS\tNAME\tREASON\n")
		for _, it := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\n", it.Class, it.Name, it.Reason)
		}

	case queryClass != "":
		items, err := db.LoadItems(database, queryClass, querySort, queryStatus, queryLimit)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		writeItems(w, items)

	default:
		classes, err := db.LoadClasses(database, querySort)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		fmt.Fprintf(w, "LABEL\tTOTAL\tOK\tSKIPPED\tFAILED\tSIZE\tNAME\n")
		for i, c := range classes {
			if queryLimit > 0 && i == queryLimit {
				break
			}
			fmt.Fprintf(w, "%d\t%s/%s\t%s\t%s\t%s\t%s\t%s\n",
				c.Label,
				humanize.Comma(c.Total),
				humanize.Comma(c.Expected),
				humanize.Comma(c.OK),
				humanize.Comma(c.Skipped),
				humanize.Comma(c.Failed),
				humanize.Bytes(uint64(c.Bytes)),
				c.Name,
			)
		}
	}

	return nil
}

func writeItems(w *tabwriter.Writer, items []entry.Item) {
	fmt.Fprintf(w, "STATUS\tSIZE\tSOURCE\tTIME\tNAME\tREASON\n")
	for _, it := range items {
		dims := "-"
		if it.SrcW > 0 {
			dims = fmt.Sprintf("%dx%d", it.SrcW, it.SrcH)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			it.Status,
			humanize.Bytes(uint64(it.Bytes)),
			dims,
			it.Duration,
			it.Name,
			it.Reason,
		)
	}
}
