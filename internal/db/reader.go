package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/michaelscutari/dsprep/internal/entry"
)

// ErrClassNotFound is returned when a class name is not in the manifest.
var ErrClassNotFound = errors.New("class not found")

// DisplayClass combines a class with its summary for display.
type DisplayClass struct {
	Name      string
	Label     int
	SourceDir string
	OutputDir string
	Expected  int64
	Total     int64
	OK        int64
	Skipped   int64
	Failed    int64
	Bytes     int64
}

// LoadClasses loads every class with its summary. Classes whose summary
// was never written (a run that stopped early) report zero counts.
func LoadClasses(db *sql.DB, sortBy string) ([]DisplayClass, error) {
	orderClause := "c.name ASC"
	switch sortBy {
	case "label":
		orderClause = "c.label ASC"
	case "total", "files":
		orderClause = "total DESC, c.name ASC"
	case "failed":
		orderClause = "failed DESC, c.name ASC"
	case "size", "bytes":
		orderClause = "bytes DESC, c.name ASC"
	}

	query := fmt.Sprintf(`
		SELECT c.name, c.label, c.source_dir, c.output_dir, c.expected,
		       COALESCE(s.total, 0) as total,
		       COALESCE(s.ok, 0) as ok,
		       COALESCE(s.skipped, 0) as skipped,
		       COALESCE(s.failed, 0) as failed,
		       COALESCE(s.bytes, 0) as bytes
		FROM classes c
		LEFT JOIN class_summaries s ON s.class_id = c.id
		ORDER BY %s
	`, orderClause)

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var classes []DisplayClass
	for rows.Next() {
		var c DisplayClass
		if err := rows.Scan(&c.Name, &c.Label, &c.SourceDir, &c.OutputDir, &c.Expected,
			&c.Total, &c.OK, &c.Skipped, &c.Failed, &c.Bytes); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		classes = append(classes, c)
	}

	return classes, rows.Err()
}

const itemColumns = `c.name, i.name, i.output, i.status, i.reason, i.format, i.src_w, i.src_h, i.alpha, i.bytes, i.duration_us`

// LoadItems loads the items of one class. status filters by status name
// ("ok", "skipped", "failed"); empty means all.
func LoadItems(db *sql.DB, class, sortBy, status string, limit int) ([]entry.Item, error) {
	classID, err := lookupClassID(db, class)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, class)
	}
	if err != nil {
		return nil, err
	}

	orderClause := "i.name ASC"
	switch sortBy {
	case "size", "bytes":
		orderClause = "i.bytes DESC"
	case "status":
		orderClause = "i.status DESC, i.name ASC"
	case "time", "duration":
		orderClause = "i.duration_us DESC"
	}

	where := "i.class_id = ?"
	args := []any{classID}
	if status != "" {
		st, err := entry.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		where += " AND i.status = ?"
		args = append(args, st)
	}
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM items i
		JOIN classes c ON c.id = i.class_id
		WHERE %s
		ORDER BY %s
		LIMIT ?
	`, itemColumns, where, orderClause)

	return queryItems(db, query, args...)
}

// LoadFailures loads failed items across all classes, in class then name
// order.
func LoadFailures(db *sql.DB, limit int) ([]entry.Item, error) {
	if limit <= 0 {
		limit = -1
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM items i
		JOIN classes c ON c.id = i.class_id
		WHERE i.status = ?
		ORDER BY c.name ASC, i.name ASC
		LIMIT ?
	`, itemColumns)
	return queryItems(db, query, entry.StatusFailed, limit)
}

func queryItems(db *sql.DB, query string, args ...any) ([]entry.Item, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var items []entry.Item
	for rows.Next() {
		var it entry.Item
		var alpha int
		var durationUs int64
		if err := rows.Scan(&it.Class, &it.Name, &it.Output, &it.Status, &it.Reason, &it.Format,
			&it.SrcW, &it.SrcH, &alpha, &it.Bytes, &durationUs); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		it.Alpha = alpha != 0
		it.Duration = time.Duration(durationUs) * time.Microsecond
		items = append(items, it)
	}
	return items, rows.Err()
}

// LoadRunErrors loads run-level errors in the order they happened.
func LoadRunErrors(db *sql.DB) ([]entry.RunError, error) {
	rows, err := db.Query(`SELECT path, message FROM run_errors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var errs []entry.RunError
	for rows.Next() {
		var e entry.RunError
		if err := rows.Scan(&e.Path, &e.Message); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}

// GetRunMeta retrieves run metadata.
func GetRunMeta(db *sql.DB) (*entry.RunMeta, error) {
	var m entry.RunMeta
	var startTime, endTime int64

	err := db.QueryRow(`
		SELECT input_dir, output_dir, width, height, prefix, on_error, start_time, COALESCE(end_time, 0),
		       class_count, item_count, ok_count, error_count, total_bytes
		FROM run_meta WHERE id = 1
	`).Scan(&m.InputDir, &m.OutputDir, &m.Width, &m.Height, &m.Prefix, &m.OnError, &startTime, &endTime,
		&m.ClassCount, &m.ItemCount, &m.OKCount, &m.ErrorCount, &m.TotalBytes)

	if err != nil {
		return nil, err
	}

	m.StartTime = time.Unix(startTime, 0)
	if endTime > 0 {
		m.EndTime = time.Unix(endTime, 0)
	}

	return &m, nil
}
