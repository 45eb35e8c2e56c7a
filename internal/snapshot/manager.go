package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/michaelscutari/dsprep/internal/db"
	"github.com/michaelscutari/dsprep/internal/entry"
	"github.com/michaelscutari/dsprep/internal/logging"
	"github.com/michaelscutari/dsprep/internal/normalize"
	"github.com/michaelscutari/dsprep/internal/pathutil"
	"github.com/michaelscutari/dsprep/internal/rollup"

	_ "modernc.org/sqlite"
)

const (
	manifestPrefix = "dsprep-"
	lockName       = ".dsprep.lock"
	latestName     = "latest.db"
)

// ProgressFunc is called with the normalizer's running totals.
type ProgressFunc func(done, failed, total int64)

// StageFunc is called when the run stage changes.
type StageFunc func(stage string)

// Manager handles the run lifecycle: locking the manifest directory,
// recording into a temp database and publishing it with retention.
type Manager struct {
	manifestDir  string
	retention    int
	lockFile     *os.File
	progressFunc ProgressFunc
	stageFunc    StageFunc
	sqliteTmpDir string
}

// NewManager creates a new manifest manager.
func NewManager(manifestDir string, retention int) *Manager {
	return &Manager{
		manifestDir: manifestDir,
		retention:   retention,
	}
}

// SetProgressFunc sets a callback for progress updates during the run.
func (m *Manager) SetProgressFunc(f ProgressFunc) {
	m.progressFunc = f
}

// SetStageFunc sets a callback for stage updates.
func (m *Manager) SetStageFunc(f StageFunc) {
	m.stageFunc = f
}

// SetSQLiteTmpDir sets the temp directory for SQLite during index build.
func (m *Manager) SetSQLiteTmpDir(dir string) {
	m.sqliteTmpDir = dir
}

// Result is what RunNormalize produced.
type Result struct {
	Report   *normalize.Report
	Manifest string // Empty when the run failed before anything was recorded
}

// RunNormalize normalizes input into output and records the run in a new
// manifest. The manifest is published even when the normalizer stops on an
// error, so the failure can be inspected; the normalizer's error is
// returned alongside it.
func (m *Manager) RunNormalize(ctx context.Context, input, output string, opts *normalize.Options) (*Result, error) {
	if err := m.checkManifestDir(input, output); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(m.manifestDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create manifest directory: %w", err)
	}

	if err := m.acquireLock(); err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer m.releaseLock()

	tempPath := filepath.Join(m.manifestDir, fmt.Sprintf(".dsprep-temp-%d.db", time.Now().UnixNano()))
	database, err := sql.Open("sqlite", tempPath)
	if err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	discard := func() {
		database.Close()
		os.Remove(tempPath)
		os.Remove(tempPath + "-wal")
		os.Remove(tempPath + "-shm")
	}

	if err := db.InitSchema(database); err != nil {
		discard()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := db.ApplyWritePragmas(database); err != nil {
		discard()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if opts == nil {
		opts = normalize.DefaultOptions()
	}
	start := time.Now()
	if err := db.InitRunMeta(database, entry.RunMeta{
		InputDir:  pathutil.Normalize(input),
		OutputDir: pathutil.Normalize(output),
		Width:     opts.Width,
		Height:    opts.Height,
		Prefix:    opts.Prefix,
		OnError:   string(opts.OnError),
		StartTime: start,
	}); err != nil {
		discard()
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	sink := newChanSink()
	recorder := db.NewRecorder(database, sink.classes, sink.items, sink.summaries, sink.errors, 1000, 1000)
	recorderDone := make(chan error, 1)
	go func() {
		// The recorder drains until the sink is closed; cancellation is
		// handled by the normalizer so every emitted result is kept.
		err := recorder.Run(context.Background())
		if err != nil {
			sink.drain()
		}
		recorderDone <- err
	}()

	n := normalize.NewNormalizer(opts)
	n.SetSink(sink)
	if m.stageFunc != nil {
		n.SetStageFunc(normalize.StageFunc(m.stageFunc))
	}
	if m.progressFunc != nil {
		n.SetProgressFunc(normalize.ProgressFunc(m.progressFunc))
	}

	report, runErr := n.Run(ctx, input, output)
	sink.close()
	if err := <-recorderDone; err != nil {
		discard()
		return nil, fmt.Errorf("recorder error: %w", err)
	}
	if report == nil {
		// Nothing was attempted; no manifest for a run that never started.
		discard()
		return nil, runErr
	}

	m.stage("rollup")
	if err := rollup.NewBuilder(database).Build(context.Background()); err != nil {
		discard()
		return nil, fmt.Errorf("failed to build class summaries: %w", err)
	}

	m.stage("indexes")
	if err := db.ApplyIndexPragmas(database, m.sqliteTmpDir); err != nil {
		discard()
		return nil, fmt.Errorf("failed to apply index pragmas: %w", err)
	}
	if err := db.BuildIndexes(database); err != nil {
		discard()
		return nil, fmt.Errorf("failed to build indexes: %w", err)
	}

	m.stage("finalize")
	if err := db.FinalizeRunMeta(database, time.Now()); err != nil {
		discard()
		return nil, fmt.Errorf("failed to finalize run: %w", err)
	}
	if err := db.Finalize(database); err != nil {
		discard()
		return nil, fmt.Errorf("failed to finalize database: %w", err)
	}
	database.Close()

	finalPath, err := m.publish(tempPath, start)
	if err != nil {
		return &Result{Report: report}, err
	}
	return &Result{Report: report, Manifest: finalPath}, runErr
}

// checkManifestDir refuses a manifest directory inside the input or the
// output tree: the output is wiped on every run and the input is read as
// class folders.
func (m *Manager) checkManifestDir(input, output string) error {
	for _, tree := range []string{input, output} {
		absTree, err := pathutil.Absolute(tree)
		if err != nil {
			return err
		}
		absDir, err := pathutil.Absolute(m.manifestDir)
		if err != nil {
			return err
		}
		if pathutil.Within(absDir, absTree) {
			return fmt.Errorf("manifest directory %s must not be inside %s", m.manifestDir, tree)
		}
	}
	return nil
}

// publish renames the temp database into place, repoints latest.db and
// prunes old manifests.
func (m *Manager) publish(tempPath string, start time.Time) (string, error) {
	finalName, err := m.freeManifestName(start)
	if err != nil {
		os.Remove(tempPath)
		return "", err
	}
	finalPath := filepath.Join(m.manifestDir, finalName)

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename database: %w", err)
	}

	// Update latest.db symlink atomically via temp symlink + rename
	latestPath := filepath.Join(m.manifestDir, latestName)
	tempLink := filepath.Join(m.manifestDir, ".latest.db.tmp")
	os.Remove(tempLink)
	if err := os.Symlink(finalName, tempLink); err == nil {
		if err := os.Rename(tempLink, latestPath); err != nil {
			os.Remove(tempLink)
			logging.Warn().Err(err).Msg("failed to update latest.db symlink")
		}
	} else {
		logging.Warn().Err(err).Msg("failed to create latest.db symlink")
	}

	if err := m.pruneOldManifests(); err != nil {
		logging.Warn().Err(err).Msg("failed to prune old manifests")
	}

	return finalPath, nil
}

// freeManifestName names the manifest after the run's start second. Runs
// that start within the same second get a _NN suffix, which still sorts
// after the plain name.
func (m *Manager) freeManifestName(start time.Time) (string, error) {
	base := manifestPrefix + start.Format("20060102-150405")
	name := base + ".db"
	for n := 1; ; n++ {
		_, err := os.Lstat(filepath.Join(m.manifestDir, name))
		if os.IsNotExist(err) {
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check manifest name: %w", err)
		}
		if n > 99 {
			return "", fmt.Errorf("too many manifests for %s", base)
		}
		name = fmt.Sprintf("%s_%02d.db", base, n)
	}
}

func (m *Manager) stage(s string) {
	if m.stageFunc != nil {
		m.stageFunc(s)
	}
}

func (m *Manager) acquireLock() error {
	lockPath := filepath.Join(m.manifestDir, lockName)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}

	// Try to acquire exclusive lock
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("another run is in progress")
	}

	m.lockFile = f
	return nil
}

func (m *Manager) releaseLock() {
	if m.lockFile != nil {
		syscall.Flock(int(m.lockFile.Fd()), syscall.LOCK_UN)
		m.lockFile.Close()
		m.lockFile = nil
	}
}

func isManifest(name string) bool {
	return strings.HasPrefix(name, manifestPrefix) && strings.HasSuffix(name, ".db")
}

func (m *Manager) pruneOldManifests() error {
	if m.retention <= 0 {
		return nil
	}

	entries, err := os.ReadDir(m.manifestDir)
	if err != nil {
		return err
	}

	var manifests []string
	for _, e := range entries {
		if !e.IsDir() && isManifest(e.Name()) {
			manifests = append(manifests, e.Name())
		}
	}

	// Names embed the timestamp, so this is chronological
	sort.Strings(manifests)

	for len(manifests) > m.retention {
		oldPath := filepath.Join(m.manifestDir, manifests[0])
		if err := os.Remove(oldPath); err != nil {
			return fmt.Errorf("failed to remove %s: %w", manifests[0], err)
		}
		manifests = manifests[1:]
	}

	return nil
}

// GetLatest returns the path to the latest manifest.
func (m *Manager) GetLatest() (string, error) {
	latestPath := filepath.Join(m.manifestDir, latestName)
	resolved, err := filepath.EvalSymlinks(latestPath)
	if err != nil {
		return "", fmt.Errorf("no latest manifest found: %w", err)
	}
	return resolved, nil
}

// ListManifests returns all available manifests, oldest first.
func (m *Manager) ListManifests() ([]string, error) {
	entries, err := os.ReadDir(m.manifestDir)
	if err != nil {
		return nil, err
	}

	var manifests []string
	for _, e := range entries {
		if !e.IsDir() && isManifest(e.Name()) {
			manifests = append(manifests, filepath.Join(m.manifestDir, e.Name()))
		}
	}

	sort.Strings(manifests)
	return manifests, nil
}
