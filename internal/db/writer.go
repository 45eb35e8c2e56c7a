package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/michaelscutari/dsprep/internal/entry"
	"github.com/michaelscutari/dsprep/internal/logging"
)

const insertClassSQL = `INSERT OR REPLACE INTO classes (id, name, label, source_dir, output_dir, expected) VALUES (?, ?, ?, ?, ?, ?)`
const insertItemSQL = `INSERT INTO items (class_id, name, output, status, reason, format, src_w, src_h, alpha, bytes, duration_us) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
const insertSummarySQL = `INSERT OR REPLACE INTO class_summaries (class_id, total, ok, skipped, failed, bytes) VALUES (?, ?, ?, ?, ?, ?)`
const insertErrorSQL = `INSERT INTO run_errors (path, message) VALUES (?, ?)`

const maxErrorsSampled = 1000

// Recorder batches run results and writes them to the manifest.
type Recorder struct {
	db              *sql.DB
	classCh         <-chan entry.Class
	itemCh          <-chan entry.Item
	summaryCh       <-chan entry.ClassSummary
	errorCh         <-chan entry.RunError
	batchSize       int
	flushIntervalMs int

	// Class ids are assigned on first sight of a name, whichever channel
	// delivers it first.
	classIDs map[string]int64
	nextID   int64

	classBatch   []classRow
	itemBatch    []itemRow
	summaryBatch []summaryRow
	errorBatch   []entry.RunError
	errorCapped  bool

	// Progress tracking (atomic)
	itemCount  int64
	okCount    int64
	errorCount int64
	totalBytes int64

	classStmt   *sql.Stmt
	itemStmt    *sql.Stmt
	summaryStmt *sql.Stmt
	errorStmt   *sql.Stmt
}

type classRow struct {
	id int64
	entry.Class
}

type itemRow struct {
	classID int64
	entry.Item
}

type summaryRow struct {
	classID int64
	entry.ClassSummary
}

// Progress holds the recorder's running totals.
type Progress struct {
	Items      int64
	OK         int64
	Errors     int64
	TotalBytes int64
}

// NewRecorder creates a new recorder.
func NewRecorder(db *sql.DB, classCh <-chan entry.Class, itemCh <-chan entry.Item, summaryCh <-chan entry.ClassSummary, errorCh <-chan entry.RunError, batchSize, flushIntervalMs int) *Recorder {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if flushIntervalMs <= 0 {
		flushIntervalMs = 1000
	}
	return &Recorder{
		db:              db,
		classCh:         classCh,
		itemCh:          itemCh,
		summaryCh:       summaryCh,
		errorCh:         errorCh,
		batchSize:       batchSize,
		flushIntervalMs: flushIntervalMs,
		classIDs:        make(map[string]int64),
		itemBatch:       make([]itemRow, 0, batchSize),
		errorBatch:      make([]entry.RunError, 0, 100),
	}
}

// Run consumes results until every input channel is closed. Cancelling ctx
// flushes what is buffered and returns.
func (r *Recorder) Run(ctx context.Context) error {
	var err error
	r.classStmt, err = r.db.Prepare(insertClassSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare class statement: %w", err)
	}
	defer r.classStmt.Close()

	r.itemStmt, err = r.db.Prepare(insertItemSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare item statement: %w", err)
	}
	defer r.itemStmt.Close()

	r.summaryStmt, err = r.db.Prepare(insertSummarySQL)
	if err != nil {
		return fmt.Errorf("failed to prepare summary statement: %w", err)
	}
	defer r.summaryStmt.Close()

	r.errorStmt, err = r.db.Prepare(insertErrorSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare error statement: %w", err)
	}
	defer r.errorStmt.Close()

	ticker := time.NewTicker(time.Duration(r.flushIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	classCh := r.classCh
	itemCh := r.itemCh
	summaryCh := r.summaryCh
	errorCh := r.errorCh

	for classCh != nil || itemCh != nil || summaryCh != nil || errorCh != nil {
		select {
		case <-ctx.Done():
			logging.Debug().Int("items", len(r.itemBatch)).Msg("recorder cancelled, flushing")
			return r.flush()

		case c, ok := <-classCh:
			if !ok {
				classCh = nil
				continue
			}
			r.classBatch = append(r.classBatch, classRow{id: r.classID(c.Name), Class: c})

		case it, ok := <-itemCh:
			if !ok {
				itemCh = nil
				continue
			}
			atomic.AddInt64(&r.itemCount, 1)
			switch it.Status {
			case entry.StatusOK:
				atomic.AddInt64(&r.okCount, 1)
				atomic.AddInt64(&r.totalBytes, it.Bytes)
			case entry.StatusFailed:
				atomic.AddInt64(&r.errorCount, 1)
			}
			r.itemBatch = append(r.itemBatch, itemRow{classID: r.classID(it.Class), Item: it})
			if len(r.itemBatch) >= r.batchSize {
				if err := r.flushItems(); err != nil {
					return err
				}
			}

		case s, ok := <-summaryCh:
			if !ok {
				summaryCh = nil
				continue
			}
			r.summaryBatch = append(r.summaryBatch, summaryRow{classID: r.classID(s.Class), ClassSummary: s})

		case e, ok := <-errorCh:
			if !ok {
				errorCh = nil
				continue
			}
			atomic.AddInt64(&r.errorCount, 1)
			// Only sample the first N errors to bound memory
			if !r.errorCapped {
				r.errorBatch = append(r.errorBatch, e)
				if len(r.errorBatch) >= maxErrorsSampled {
					r.errorCapped = true
				}
			}

		case <-ticker.C:
			if err := r.flush(); err != nil {
				return err
			}
		}
	}

	return r.flush()
}

func (r *Recorder) classID(name string) int64 {
	if id, ok := r.classIDs[name]; ok {
		return id
	}
	r.nextID++
	r.classIDs[name] = r.nextID
	return r.nextID
}

func (r *Recorder) flush() error {
	if err := r.flushClasses(); err != nil {
		return err
	}
	if err := r.flushItems(); err != nil {
		return err
	}
	if err := r.flushSummaries(); err != nil {
		return err
	}
	return r.flushErrors()
}

func (r *Recorder) flushClasses() error {
	if len(r.classBatch) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin class transaction: %w", err)
	}

	stmt := tx.Stmt(r.classStmt)
	for _, c := range r.classBatch {
		_, err := stmt.Exec(c.id, c.Name, c.Label, c.SourceDir, c.OutputDir, c.Expected)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert class %q: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit class transaction: %w", err)
	}

	r.classBatch = r.classBatch[:0]
	return nil
}

func (r *Recorder) flushItems() error {
	if len(r.itemBatch) == 0 {
		return nil
	}

	batchLen := len(r.itemBatch)
	flushStart := time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt := tx.Stmt(r.itemStmt)
	for _, it := range r.itemBatch {
		alpha := 0
		if it.Alpha {
			alpha = 1
		}
		_, err := stmt.Exec(it.classID, it.Name, it.Output, it.Status, it.Reason, it.Format,
			it.SrcW, it.SrcH, alpha, it.Bytes, it.Duration.Microseconds())
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert item %q: %w", it.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.Debug().Int("items", batchLen).Dur("took", time.Since(flushStart)).Msg("manifest flush")

	r.itemBatch = r.itemBatch[:0]
	return nil
}

func (r *Recorder) flushSummaries() error {
	if len(r.summaryBatch) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin summary transaction: %w", err)
	}

	stmt := tx.Stmt(r.summaryStmt)
	for _, s := range r.summaryBatch {
		_, err := stmt.Exec(s.classID, s.Total, s.OK, s.Skipped, s.Failed, s.Bytes)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert summary for %q: %w", s.Class, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit summary transaction: %w", err)
	}

	r.summaryBatch = r.summaryBatch[:0]
	return nil
}

func (r *Recorder) flushErrors() error {
	if len(r.errorBatch) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin error transaction: %w", err)
	}

	stmt := tx.Stmt(r.errorStmt)
	for _, e := range r.errorBatch {
		_, err := stmt.Exec(e.Path, e.Message)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert error for %q: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit error transaction: %w", err)
	}

	r.errorBatch = r.errorBatch[:0]
	return nil
}

// Progress returns the running totals (safe for concurrent access).
func (r *Recorder) Progress() Progress {
	return Progress{
		Items:      atomic.LoadInt64(&r.itemCount),
		OK:         atomic.LoadInt64(&r.okCount),
		Errors:     atomic.LoadInt64(&r.errorCount),
		TotalBytes: atomic.LoadInt64(&r.totalBytes),
	}
}

// InitRunMeta records the parameters of a run that is starting.
func InitRunMeta(db *sql.DB, m entry.RunMeta) error {
	_, err := db.Exec(
		`INSERT INTO run_meta (id, input_dir, output_dir, width, height, prefix, on_error, start_time) VALUES (1, ?, ?, ?, ?, ?, ?, ?)`,
		m.InputDir, m.OutputDir, m.Width, m.Height, m.Prefix, m.OnError, m.StartTime.Unix(),
	)
	return err
}

// FinalizeRunMeta stamps the end time and derives the totals from the
// recorded rows.
func FinalizeRunMeta(db *sql.DB, end time.Time) error {
	var classCount, itemCount, okCount, errorCount, totalBytes int64
	row := db.QueryRow(`SELECT COUNT(*) FROM classes`)
	if err := row.Scan(&classCount); err != nil {
		return err
	}

	row = db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(status = ?), 0), COALESCE(SUM(CASE WHEN status = ? THEN bytes ELSE 0 END), 0) FROM items`,
		entry.StatusOK, entry.StatusOK)
	if err := row.Scan(&itemCount, &okCount, &totalBytes); err != nil {
		return err
	}

	row = db.QueryRow(`SELECT (SELECT COUNT(*) FROM items WHERE status = ?) + (SELECT COUNT(*) FROM run_errors)`, entry.StatusFailed)
	if err := row.Scan(&errorCount); err != nil {
		return err
	}

	_, err := db.Exec(
		`UPDATE run_meta SET end_time = ?, class_count = ?, item_count = ?, ok_count = ?, error_count = ?, total_bytes = ? WHERE id = 1`,
		end.Unix(), classCount, itemCount, okCount, errorCount, totalBytes,
	)
	return err
}
