package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/michaelscutari/dsprep/internal/logging"
	"github.com/michaelscutari/dsprep/internal/metrics"
	"github.com/michaelscutari/dsprep/internal/upload"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a normalized dataset to object storage",
	Long: `Upload every file under --dir to Azure Blob storage or S3. Object keys
are --target joined with the file's path relative to --dir.`,
	RunE: runUpload,
}

var (
	uploadDir       string
	uploadProvider  string
	uploadTarget    string
	uploadOverwrite bool
	uploadMetrics   string
	uploadProgress  time.Duration
)

func init() {
	f := uploadCmd.Flags()
	f.StringVar(&uploadDir, "dir", "", "Local directory to upload (default normalize.output_dir)")
	f.StringVar(&uploadProvider, "provider", "azure", "Object store: azure|s3")
	f.StringVar(&uploadTarget, "target", "resized_dataset", "Remote path prefix")
	f.BoolVar(&uploadOverwrite, "overwrite", true, "Replace objects that already exist")
	f.StringVar(&uploadMetrics, "metrics-file", "", "Write Prometheus metrics to this file after the upload")
	f.DurationVar(&uploadProgress, "progress-interval", 30*time.Second, "Progress line interval when not on a TTY (0 disables)")
}

func newUploader() (upload.Uploader, error) {
	u := cfg.Upload
	switch u.Provider {
	case "azure":
		return upload.NewAzureBlob(u.Azure.Account, u.Azure.Key, u.Azure.Container)
	case "s3":
		return upload.NewS3(u.S3.Bucket, u.S3.Region)
	}
	return nil, fmt.Errorf("unknown upload provider %q", u.Provider)
}

func runUpload(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	if f.Changed("provider") {
		cfg.Upload.Provider = uploadProvider
	}
	if f.Changed("target") {
		cfg.Upload.Target = uploadTarget
	}
	if f.Changed("overwrite") {
		cfg.Upload.Overwrite = uploadOverwrite
	}
	if f.Changed("metrics-file") {
		cfg.Metrics.File = uploadMetrics
	}
	if err := cfg.ValidateUpload(); err != nil {
		return err
	}

	dir := uploadDir
	if dir == "" {
		dir = cfg.Normalize.OutputDir
	}

	up, err := newUploader()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopSignals := onInterrupt(cancel)
	defer stopSignals()

	fmt.Printf("Uploading %s to %s:%s...\n", dir, up.Provider(), cfg.Upload.Target)
	prog := newProgress("upload", uploadProgress)
	prog.run()
	start := time.Now()
	stats, err := upload.Dir(ctx, up, dir, cfg.Upload.Target, cfg.Upload.Overwrite, func(done, total int) {
		prog.update(int64(done), 0, int64(total))
	})
	prog.finish()

	if cfg.Metrics.File != "" {
		if werr := metrics.WriteFile(cfg.Metrics.File); werr != nil {
			logging.Warn().Err(werr).Str("path", cfg.Metrics.File).Msg("failed to write metrics")
		}
	}

	fmt.Printf("Uploaded %d files (%s), skipped %d, in %s\n",
		stats.Uploaded, humanize.Bytes(uint64(stats.Bytes)), stats.Skipped,
		time.Since(start).Round(time.Millisecond))

	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("Upload canceled.")
			return nil
		}
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}
