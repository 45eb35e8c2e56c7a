package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/michaelscutari/dsprep/internal/config"
	"github.com/michaelscutari/dsprep/internal/dataset"
	"github.com/michaelscutari/dsprep/internal/entry"
	"github.com/michaelscutari/dsprep/internal/imaging"
	"github.com/michaelscutari/dsprep/internal/logging"
	"github.com/michaelscutari/dsprep/internal/metrics"
	"github.com/michaelscutari/dsprep/internal/normalize"
	"github.com/michaelscutari/dsprep/internal/snapshot"
	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Normalize a class-folder dataset",
	Long: `Resize every image of every class folder under --input onto a fixed
canvas and write it to the mirrored class folder under --output. The output
directory is deleted and rebuilt on every run. The run is recorded in a
SQLite manifest unless --no-manifest is given.`,
	RunE: runNormalize,
}

var (
	normInput      string
	normOutput     string
	normWidth      int
	normHeight     int
	normPrefix     string
	normBackground string
	normWorkers    int
	normOnError    string
	normMaxErrors  int
	normExclude    []string
	normLabels     string
	normManifest   string
	normRetention  int
	normNoManifest bool
	normMetrics    string
	normProgress   time.Duration
	normSQLiteTmp  string
)

func init() {
	f := normalizeCmd.Flags()
	f.StringVarP(&normInput, "input", "i", "dataset", "Dataset root, one folder per class")
	f.StringVarP(&normOutput, "output", "o", "resized_dataset", "Output root (deleted and recreated)")
	f.IntVar(&normWidth, "width", 128, "Canvas width in pixels")
	f.IntVar(&normHeight, "height", 128, "Canvas height in pixels")
	f.StringVar(&normPrefix, "prefix", "resized_", "Prefix for output file names")
	f.StringVar(&normBackground, "background", "#ffffff", "Canvas color: #rgb, #rrggbb, white or black")
	f.IntVarP(&normWorkers, "workers", "w", 1, "Files processed at once within a class")
	f.StringVar(&normOnError, "on-error", "abort", "Failure policy: abort|skip")
	f.IntVar(&normMaxErrors, "max-errors", 0, "With --on-error=skip, stop after N failures (0 = unlimited)")
	f.StringSliceVarP(&normExclude, "exclude", "e", nil, "Regex patterns for class folder and file names to skip, e.g. '^\\.' for hidden entries")
	f.StringVar(&normLabels, "labels", "", "YAML label map; class folders must match it")
	f.StringVar(&normManifest, "manifest-dir", "./data", "Directory for run manifests")
	f.IntVar(&normRetention, "retention", 5, "Number of manifests to retain (0 = unlimited)")
	f.BoolVar(&normNoManifest, "no-manifest", false, "Do not record the run")
	f.StringVar(&normMetrics, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	f.DurationVar(&normProgress, "progress-interval", 30*time.Second, "Emit progress lines to stderr at this interval when not a TTY (0 to disable)")
	f.StringVar(&normSQLiteTmp, "sqlite-tmp-dir", "", "Directory for SQLite temp files during index build")
}

// applyNormalizeFlags overrides the loaded configuration with the flags
// given on the command line.
func applyNormalizeFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	n := &c.Normalize
	if f.Changed("input") {
		n.InputDir = normInput
	}
	if f.Changed("output") {
		n.OutputDir = normOutput
	}
	if f.Changed("width") {
		n.Width = normWidth
	}
	if f.Changed("height") {
		n.Height = normHeight
	}
	if f.Changed("prefix") {
		n.Prefix = normPrefix
	}
	if f.Changed("background") {
		n.Background = normBackground
	}
	if f.Changed("workers") {
		n.Workers = normWorkers
	}
	if f.Changed("on-error") {
		n.OnError = normOnError
	}
	if f.Changed("max-errors") {
		n.MaxErrors = normMaxErrors
	}
	if f.Changed("exclude") {
		n.Exclude = normExclude
	}
	if f.Changed("labels") {
		n.Labels = normLabels
	}
	if f.Changed("manifest-dir") {
		c.Manifest.Dir = normManifest
	}
	if f.Changed("retention") {
		c.Manifest.Retention = normRetention
	}
	if f.Changed("no-manifest") {
		c.Manifest.Disabled = normNoManifest
	}
	if f.Changed("metrics-file") {
		c.Metrics.File = normMetrics
	}
}

// buildOptions turns normalize settings into normalizer options.
func buildOptions(n config.NormalizeConfig) (*normalize.Options, error) {
	bg, err := imaging.ParseColor(n.Background)
	if err != nil {
		return nil, err
	}
	policy, err := normalize.ParsePolicy(n.OnError)
	if err != nil {
		return nil, err
	}

	opts := normalize.DefaultOptions().
		WithSize(n.Width, n.Height).
		WithPrefix(n.Prefix).
		WithBackground(bg).
		WithWorkers(n.Workers).
		WithPolicy(policy).
		WithMaxErrors(n.MaxErrors).
		ClearExcludePatterns()
	for _, pattern := range n.Exclude {
		if err := opts.AddExcludePattern(pattern); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}
	if n.Labels != "" {
		labels, err := dataset.LoadLabels(n.Labels)
		if err != nil {
			return nil, err
		}
		opts.WithLabels(labels)
	}
	return opts, nil
}

func runNormalize(cmd *cobra.Command, args []string) error {
	applyNormalizeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateNormalize(); err != nil {
		return err
	}
	opts, err := buildOptions(cfg.Normalize)
	if err != nil {
		return err
	}

	input, err := filepath.Abs(cfg.Normalize.InputDir)
	if err != nil {
		return fmt.Errorf("failed to resolve input path: %w", err)
	}
	output, err := filepath.Abs(cfg.Normalize.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}

	fmt.Printf("Normalizing %s -> %s (%dx%d)...\n", input, output, opts.Width, opts.Height)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopSignals := onInterrupt(cancel)
	defer stopSignals()

	prog := newProgress("normalize", normProgress)
	prog.run()

	var report *normalize.Report
	var manifest string
	var runErr error
	if cfg.Manifest.Disabled {
		n := normalize.NewNormalizer(opts)
		n.SetProgressFunc(prog.update)
		n.SetStageFunc(prog.setStage)
		report, runErr = n.Run(ctx, input, output)
	} else {
		mgr := snapshot.NewManager(cfg.Manifest.Dir, cfg.Manifest.Retention)
		mgr.SetProgressFunc(prog.update)
		mgr.SetStageFunc(prog.setStage)
		if normSQLiteTmp != "" {
			mgr.SetSQLiteTmpDir(normSQLiteTmp)
		}
		var res *snapshot.Result
		res, runErr = mgr.RunNormalize(ctx, input, output, opts)
		if res != nil {
			report = res.Report
			manifest = res.Manifest
		}
	}
	prog.finish()

	if cfg.Metrics.File != "" {
		if err := metrics.WriteFile(cfg.Metrics.File); err != nil {
			logging.Warn().Err(err).Str("path", cfg.Metrics.File).Msg("failed to write metrics")
		}
	}

	if report != nil {
		printReport(report, manifest)
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			fmt.Println("Normalize canceled.")
			return nil
		}
		return fmt.Errorf("normalize failed: %w", runErr)
	}
	return nil
}

func printReport(r *normalize.Report, manifest string) {
	if manifest != "" {
		fmt.Printf("Manifest: %s\n", manifest)
	}
	if !r.End.IsZero() {
		fmt.Printf("Completed in %s\n", r.End.Sub(r.Start).Round(time.Millisecond))
	}

	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Classes: %d\n", len(r.Classes))
	fmt.Printf("  Written: %s\n", humanize.Comma(r.Count(entry.StatusOK)))
	if skipped := r.Count(entry.StatusSkipped); skipped > 0 {
		fmt.Printf("  Skipped: %s\n", humanize.Comma(skipped))
	}
	if failed := r.Count(entry.StatusFailed); failed > 0 {
		fmt.Printf("  Failed:  %s\n", humanize.Comma(failed))
	}
	fmt.Printf("  Size:    %s\n", humanize.Bytes(uint64(r.Bytes())))

	for i, err := range r.Failures {
		if i == 5 {
			fmt.Printf("  ... and %d more failures\n", len(r.Failures)-i)
			break
		}
		fmt.Printf("  ! %v\n", err)
	}
}
