// Package upload pushes a local directory tree to object storage under a
// remote prefix, one object per file.
package upload

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/michaelscutari/dsprep/internal/logging"
	"github.com/michaelscutari/dsprep/internal/metrics"
	"github.com/michaelscutari/dsprep/internal/pathutil"
)

// Uploader stores objects by key.
type Uploader interface {
	// Provider names the backend, e.g. "azure" or "s3".
	Provider() string
	Upload(ctx context.Context, key string, r io.Reader, size int64) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ProgressFunc is called after every file.
type ProgressFunc func(done, total int)

// Stats counts what Dir did.
type Stats struct {
	Uploaded int
	Skipped  int
	Bytes    int64
}

// Key builds the object key for a file: targetPath and the file's path
// relative to localDir, joined with forward slashes.
func Key(targetPath, localDir, file string) (string, error) {
	rel, err := pathutil.ToSlash(localDir, file)
	if err != nil {
		return "", err
	}
	return path.Join(strings.Trim(targetPath, "/"), rel), nil
}

// Dir uploads every regular file under localDir. Existing objects are
// replaced when overwrite is set and left alone otherwise.
func Dir(ctx context.Context, up Uploader, localDir, targetPath string, overwrite bool, progress ProgressFunc) (Stats, error) {
	var stats Stats

	info, err := os.Stat(localDir)
	if err != nil {
		return stats, err
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("%s is not a directory", localDir)
	}

	var files []string
	err = filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walk %s: %w", localDir, err)
	}

	logging.Info().
		Str("provider", up.Provider()).
		Str("dir", localDir).
		Str("target", targetPath).
		Int("files", len(files)).
		Bool("overwrite", overwrite).
		Msg("upload started")

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		key, err := Key(targetPath, localDir, file)
		if err != nil {
			return stats, err
		}

		if !overwrite {
			exists, err := up.Exists(ctx, key)
			if err != nil {
				metrics.RecordUpload(up.Provider(), "failed")
				return stats, fmt.Errorf("check %s: %w", key, err)
			}
			if exists {
				stats.Skipped++
				metrics.RecordUpload(up.Provider(), "skipped")
				logging.Debug().Str("key", key).Msg("exists, skipped")
				if progress != nil {
					progress(i+1, len(files))
				}
				continue
			}
		}

		size, err := uploadFile(ctx, up, key, file)
		if err != nil {
			metrics.RecordUpload(up.Provider(), "failed")
			return stats, fmt.Errorf("upload %s: %w", key, err)
		}
		stats.Uploaded++
		stats.Bytes += size
		metrics.RecordUpload(up.Provider(), "uploaded")
		logging.Debug().Str("key", key).Int64("bytes", size).Msg("uploaded")

		if progress != nil {
			progress(i+1, len(files))
		}
	}

	return stats, nil
}

func uploadFile(ctx context.Context, up Uploader, key, file string) (int64, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if err := up.Upload(ctx, key, f, info.Size()); err != nil {
		return 0, err
	}
	return info.Size(), nil
}
