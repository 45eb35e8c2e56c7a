package tui

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/michaelscutari/dsprep/internal/db"
	"github.com/michaelscutari/dsprep/internal/entry"

	tea "github.com/charmbracelet/bubbletea"
	_ "modernc.org/sqlite"
)

func buildManifest(t *testing.T) *sql.DB {
	t.Helper()
	database, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close() })

	if err := db.InitSchema(database); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	start := time.Unix(1700000000, 0)
	if err := db.InitRunMeta(database, entry.RunMeta{
		InputDir: "/in", OutputDir: "/out", Width: 128, Height: 128,
		Prefix: "resized_", OnError: "skip", StartTime: start,
	}); err != nil {
		t.Fatalf("init meta: %v", err)
	}

	classes := make(chan entry.Class, 4)
	items := make(chan entry.Item, 8)
	summaries := make(chan entry.ClassSummary, 4)
	errs := make(chan entry.RunError, 1)
	rec := db.NewRecorder(database, classes, items, summaries, errs, 10, 50)
	done := make(chan error, 1)
	go func() { done <- rec.Run(context.Background()) }()

	classes <- entry.Class{Name: "catA", Label: 0, Expected: 2}
	classes <- entry.Class{Name: "catB", Label: 1, Expected: 1}
	items <- entry.Item{Class: "catA", Name: "img1.jpg", Status: entry.StatusOK, Bytes: 100, SrcW: 200, SrcH: 100, Format: "jpeg"}
	items <- entry.Item{Class: "catA", Name: "img2.png", Status: entry.StatusFailed, Reason: "decode"}
	items <- entry.Item{Class: "catB", Name: "img3.jpg", Status: entry.StatusOK, Bytes: 300}
	summaries <- entry.ClassSummary{Class: "catA", Total: 2, OK: 1, Failed: 1, Bytes: 100}
	summaries <- entry.ClassSummary{Class: "catB", Label: 1, Total: 1, OK: 1, Bytes: 300}
	close(classes)
	close(items)
	close(summaries)
	close(errs)
	if err := <-done; err != nil {
		t.Fatalf("recorder: %v", err)
	}
	if err := db.FinalizeRunMeta(database, start.Add(time.Second)); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return database
}

// run executes a command synchronously and feeds its message back.
func run(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	m.Update(cmd())
	if m.err != nil {
		t.Fatalf("model error: %v", m.err)
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelBrowsesClassesAndItems(t *testing.T) {
	m := NewModel(buildManifest(t))
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	run(t, m, m.Init())

	if len(m.rows) != 2 || m.rows[0].name != "catA" || m.rows[1].name != "catB" {
		t.Fatalf("unexpected class rows: %+v", m.rows)
	}
	if m.total != 400 {
		t.Fatalf("expected total 400, got %d", m.total)
	}
	view := m.View()
	if !strings.Contains(view, "catA/") || !strings.Contains(view, "128x128") {
		t.Fatalf("class view missing content:\n%s", view)
	}

	_, cmd := m.Update(key("enter"))
	run(t, m, cmd)
	if m.class != "catA" || len(m.rows) != 2 {
		t.Fatalf("expected catA items, got class=%q rows=%+v", m.class, m.rows)
	}
	if m.summary == nil || m.summary.Expected != 2 {
		t.Fatalf("expected catA summary, got %+v", m.summary)
	}
	if !m.rows[1].failed || !strings.Contains(m.rows[1].name, "decode") {
		t.Fatalf("expected failed row with reason, got %+v", m.rows[1])
	}
	if !strings.Contains(m.View(), "200x100") {
		t.Fatalf("item view missing source dimensions")
	}

	_, cmd = m.Update(key("backspace"))
	run(t, m, cmd)
	if m.class != "" || len(m.rows) != 2 {
		t.Fatalf("expected class list after backspace, got class=%q", m.class)
	}
}

func TestModelSortAndFilter(t *testing.T) {
	m := NewModel(buildManifest(t))
	run(t, m, m.Init())

	_, cmd := m.Update(key("s"))
	run(t, m, cmd)
	if m.sort != SortBySize || m.rows[0].name != "catB" {
		t.Fatalf("expected catB first by size, got %+v", m.rows)
	}

	m.Update(key("/"))
	if !m.filterActive {
		t.Fatalf("expected filter mode")
	}
	for _, r := range "ata" {
		m.Update(key(string(r)))
	}
	if len(m.rows) != 1 || m.rows[0].name != "catA" {
		t.Fatalf("expected catA only, got %+v", m.rows)
	}
	m.Update(key("esc"))
	if m.filter != "" || len(m.rows) != 2 {
		t.Fatalf("expected filter cleared, got %q with %d rows", m.filter, len(m.rows))
	}
}

func TestSortColumnKeys(t *testing.T) {
	cases := []struct {
		col   SortColumn
		items bool
		want  string
	}{
		{SortBySize, false, "size"},
		{SortByName, true, "name"},
		{SortByCount, false, "total"},
		{SortByCount, true, "time"},
		{SortByFailed, false, "failed"},
		{SortByFailed, true, "status"},
	}
	for _, tc := range cases {
		if got := tc.col.key(tc.items); got != tc.want {
			t.Fatalf("key(%v, %v) = %q, want %q", tc.col, tc.items, got, tc.want)
		}
	}
}
