package rollup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/michaelscutari/dsprep/internal/entry"
)

// Builder recomputes class summaries from the recorded items of a
// manifest, so the stored summaries always agree with the items table even
// when a run stopped before every class was summarized.
type Builder struct {
	db       *sql.DB
	progress ProgressFunc
}

// ProgressFunc reports rollup progress.
type ProgressFunc func(done, total int64)

// NewBuilder creates a new rollup builder.
func NewBuilder(db *sql.DB) *Builder {
	return &Builder{db: db}
}

// SetProgressFunc sets a callback for rollup progress updates.
func (b *Builder) SetProgressFunc(f ProgressFunc) {
	b.progress = f
}

// Build rewrites class_summaries for every class in the manifest.
func (b *Builder) Build(ctx context.Context) error {
	var totalClasses int64
	if err := b.db.QueryRow(`SELECT COUNT(*) FROM classes`).Scan(&totalClasses); err != nil {
		return fmt.Errorf("failed to count classes: %w", err)
	}

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	countStmt, err := tx.Prepare(`
		SELECT status, COUNT(*), COALESCE(SUM(bytes), 0)
		FROM items
		WHERE class_id = ?
		GROUP BY status
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare count query: %w", err)
	}
	defer countStmt.Close()

	insertStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO class_summaries (class_id, total, ok, skipped, failed, bytes)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer insertStmt.Close()

	rows, err := tx.Query(`SELECT id, name FROM classes ORDER BY name`)
	if err != nil {
		return fmt.Errorf("failed to query classes: %w", err)
	}
	type classRef struct {
		id   int64
		name string
	}
	var classes []classRef
	for rows.Next() {
		var c classRef
		if err := rows.Scan(&c.id, &c.name); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan class: %w", err)
		}
		classes = append(classes, c)
	}
	rows.Close()

	var done int64
	lastUpdate := time.Now()
	for _, c := range classes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		sum, err := computeSummary(countStmt, c.id)
		if err != nil {
			return fmt.Errorf("failed to compute summary for %s: %w", c.name, err)
		}
		if _, err := insertStmt.Exec(c.id, sum.Total, sum.OK, sum.Skipped, sum.Failed, sum.Bytes); err != nil {
			return fmt.Errorf("failed to insert summary for %s: %w", c.name, err)
		}

		done++
		if b.progress != nil {
			now := time.Now()
			if done == totalClasses || now.Sub(lastUpdate) > 200*time.Millisecond {
				b.progress(done, totalClasses)
				lastUpdate = now
			}
		}
	}

	if b.progress != nil && totalClasses == 0 {
		b.progress(0, 0)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit summaries: %w", err)
	}
	return nil
}

func computeSummary(countStmt *sql.Stmt, classID int64) (entry.ClassSummary, error) {
	var sum entry.ClassSummary

	rows, err := countStmt.Query(classID)
	if err != nil {
		return sum, err
	}
	defer rows.Close()

	for rows.Next() {
		var status entry.Status
		var count, bytes int64
		if err := rows.Scan(&status, &count, &bytes); err != nil {
			return sum, err
		}
		sum.Total += count
		switch status {
		case entry.StatusOK:
			sum.OK += count
			sum.Bytes += bytes
		case entry.StatusSkipped:
			sum.Skipped += count
		default:
			sum.Failed += count
		}
	}
	return sum, rows.Err()
}
