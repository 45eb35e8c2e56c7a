package main

import (
	"fmt"
	"os"

	"github.com/michaelscutari/dsprep/internal/config"
	"github.com/michaelscutari/dsprep/internal/logging"
	"github.com/michaelscutari/dsprep/internal/snapshot"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dsprep",
	Short: "Prepare image datasets for training",
	Long: `dsprep normalizes a class-folder image dataset into a mirrored tree of
fixed-size images, records every run in a SQLite manifest and uploads the
result to object storage. It provides a TUI browser for run manifests.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var (
	configPath string
	logLevel   string
	logFormat  string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default dsprep.yaml or $DSPREP_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json")

	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(labelsCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(uploadCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if logFormat != "" {
		c.Log.Format = logFormat
	}
	logging.Init(logging.Config{Level: c.Log.Level, Format: c.Log.Format})
	cfg = c
	return nil
}

// manifestPath resolves the --db flag, defaulting to the latest manifest in
// the configured manifest directory.
func manifestPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	return snapshot.NewManager(cfg.Manifest.Dir, 0).GetLatest()
}
