package rollup

import (
	"context"
	"database/sql"
	"testing"

	"github.com/michaelscutari/dsprep/internal/db"
	"github.com/michaelscutari/dsprep/internal/entry"

	_ "modernc.org/sqlite"
)

func TestBuilderRebuildsSummaries(t *testing.T) {
	database, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	database.SetMaxOpenConns(1)
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	insertClass := func(id int64, name string) {
		_, err := database.Exec(
			`INSERT INTO classes (id, name, label, source_dir, output_dir, expected) VALUES (?, ?, ?, ?, ?, ?)`,
			id, name, id, "/in/"+name, "/out/"+name, 3,
		)
		if err != nil {
			t.Fatalf("insert class %s: %v", name, err)
		}
	}
	insertItem := func(classID int64, name string, status entry.Status, bytes int64) {
		_, err := database.Exec(
			`INSERT INTO items (class_id, name, output, status, reason, format, src_w, src_h, alpha, bytes, duration_us)
			 VALUES (?, ?, '', ?, '', '', 0, 0, 0, ?, 0)`,
			classID, name, status, bytes,
		)
		if err != nil {
			t.Fatalf("insert item %s: %v", name, err)
		}
	}

	insertClass(1, "catA")
	insertClass(2, "catB")
	insertClass(3, "empty")
	insertItem(1, "a1.jpg", entry.StatusOK, 10)
	insertItem(1, "a2.jpg", entry.StatusOK, 5)
	insertItem(1, ".DS_Store", entry.StatusSkipped, 0)
	insertItem(2, "b1.jpg", entry.StatusFailed, 0)

	// A stale summary must be replaced.
	if _, err := database.Exec(`INSERT INTO class_summaries (class_id, total, ok, skipped, failed, bytes) VALUES (2, 9, 9, 0, 0, 999)`); err != nil {
		t.Fatalf("insert stale summary: %v", err)
	}

	var calls int
	builder := NewBuilder(database)
	builder.SetProgressFunc(func(done, total int64) {
		calls++
		if total != 3 {
			t.Fatalf("unexpected total %d", total)
		}
	})
	if err := builder.Build(context.Background()); err != nil {
		t.Fatalf("build summaries: %v", err)
	}
	if calls == 0 {
		t.Fatalf("expected progress callbacks")
	}

	classes, err := db.LoadClasses(database, "name")
	if err != nil {
		t.Fatalf("load classes: %v", err)
	}
	if len(classes) != 3 {
		t.Fatalf("expected 3 classes, got %d", len(classes))
	}

	a, b, e := classes[0], classes[1], classes[2]
	if a.Total != 3 || a.OK != 2 || a.Skipped != 1 || a.Failed != 0 || a.Bytes != 15 {
		t.Fatalf("unexpected catA summary: %+v", a)
	}
	if b.Total != 1 || b.OK != 0 || b.Failed != 1 || b.Bytes != 0 {
		t.Fatalf("unexpected catB summary: %+v", b)
	}
	if e.Total != 0 || e.OK != 0 {
		t.Fatalf("unexpected empty summary: %+v", e)
	}
}

func TestBuilderCanceled(t *testing.T) {
	database, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	database.SetMaxOpenConns(1)
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	if _, err := database.Exec(`INSERT INTO classes (id, name, label, source_dir, output_dir, expected) VALUES (1, 'a', 0, '', '', 0)`); err != nil {
		t.Fatalf("insert class: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewBuilder(database).Build(ctx); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
