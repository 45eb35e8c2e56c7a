package main

import (
	"database/sql"
	"fmt"

	"github.com/michaelscutari/dsprep/internal/db"
	"github.com/michaelscutari/dsprep/internal/tui"
	"github.com/spf13/cobra"

	tea "github.com/charmbracelet/bubbletea"
	_ "modernc.org/sqlite"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse a run manifest interactively",
	Long:  `Open an interactive TUI to browse the classes and images of a run.`,
	RunE:  runTUI,
}

var tuiDB string

func init() {
	tuiCmd.Flags().StringVarP(&tuiDB, "db", "d", "", "Path to manifest (default <manifest.dir>/latest.db)")
}

func runTUI(cmd *cobra.Command, args []string) error {
	path, err := manifestPath(tuiDB)
	if err != nil {
		return err
	}
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := db.ApplyReadPragmas(database); err != nil {
		return fmt.Errorf("failed to apply pragmas: %w", err)
	}

	model := tui.NewModel(database)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
