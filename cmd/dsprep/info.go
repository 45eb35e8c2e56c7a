package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/michaelscutari/dsprep/internal/db"
	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display run metadata",
	Long:  `Print metadata about a run manifest including parameters, timestamps and statistics.`,
	RunE:  runInfo,
}

var infoDB string

func init() {
	infoCmd.Flags().StringVarP(&infoDB, "db", "d", "", "Path to manifest (default <manifest.dir>/latest.db)")
}

func runInfo(cmd *cobra.Command, args []string) error {
	path, err := manifestPath(infoDB)
	if err != nil {
		return err
	}
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	m, err := db.GetRunMeta(database)
	if err != nil {
		return fmt.Errorf("failed to read run metadata: %w", err)
	}

	fmt.Printf("Run Information\n")
	fmt.Printf("===============\n\n")
	fmt.Printf("Input:        %s\n", m.InputDir)
	fmt.Printf("Output:       %s\n", m.OutputDir)
	fmt.Printf("Canvas:       %dx%d\n", m.Width, m.Height)
	fmt.Printf("Prefix:       %s\n", m.Prefix)
	fmt.Printf("On error:     %s\n", m.OnError)
	fmt.Printf("Start Time:   %s\n", m.StartTime.Format(time.RFC3339))
	if !m.EndTime.IsZero() {
		fmt.Printf("End Time:     %s\n", m.EndTime.Format(time.RFC3339))
		fmt.Printf("Duration:     %s\n", m.EndTime.Sub(m.StartTime).Round(time.Millisecond))
	}
	fmt.Printf("\nStatistics\n")
	fmt.Printf("----------\n")
	fmt.Printf("Classes:  %s\n", humanize.Comma(m.ClassCount))
	fmt.Printf("Images:   %s\n", humanize.Comma(m.ItemCount))
	fmt.Printf("Written:  %s\n", humanize.Comma(m.OKCount))
	fmt.Printf("Size:     %s\n", humanize.Bytes(uint64(m.TotalBytes)))
	if m.ErrorCount > 0 {
		fmt.Printf("Errors:   %s\n", humanize.Comma(m.ErrorCount))
	}

	runErrs, err := db.LoadRunErrors(database)
	if err != nil {
		return err
	}
	for _, e := range runErrs {
		fmt.Printf("  ! %s: %s\n", e.Path, e.Message)
	}

	return nil
}
