package tui

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/michaelscutari/dsprep/internal/db"
	"github.com/michaelscutari/dsprep/internal/entry"

	tea "github.com/charmbracelet/bubbletea"
)

// SortColumn represents the current sort field.
type SortColumn int

const (
	SortBySize SortColumn = iota
	SortByName
	SortByCount
	SortByFailed
)

// key maps the column to a reader sort key. Classes and items sort on
// different fields for the same column.
func (s SortColumn) key(items bool) string {
	switch s {
	case SortByName:
		return "name"
	case SortByCount:
		if items {
			return "time"
		}
		return "total"
	case SortByFailed:
		if items {
			return "status"
		}
		return "failed"
	default:
		return "size"
	}
}

const itemLimit = 5000

// row is one display line, either a class or an item.
type row struct {
	name   string
	cells  []string
	value  int64 // bar value
	failed bool
}

// Model holds the TUI state.
type Model struct {
	db           *sql.DB
	class        string // empty while browsing the class list
	classes      []db.DisplayClass
	allRows      []row
	rows         []row
	cursor       int
	sort         SortColumn
	width        int
	height       int
	runMeta      *entry.RunMeta
	summary      *db.DisplayClass
	total        int64
	filter       string
	filterActive bool
	err          error
}

// NewModel creates a new TUI model.
func NewModel(database *sql.DB) *Model {
	return &Model{
		db:   database,
		sort: SortByName,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.loadInitialData
}

type dataLoadedMsg struct {
	runMeta *entry.RunMeta
	classes []db.DisplayClass
	err     error
}

func (m *Model) loadInitialData() tea.Msg {
	meta, err := db.GetRunMeta(m.db)
	if err != nil {
		return dataLoadedMsg{err: err}
	}

	classes, err := db.LoadClasses(m.db, m.sort.key(false))
	if err != nil {
		return dataLoadedMsg{err: err}
	}

	return dataLoadedMsg{
		runMeta: meta,
		classes: classes,
	}
}

type rowsLoadedMsg struct {
	class   string
	classes []db.DisplayClass
	items   []entry.Item
	err     error
}

func (m *Model) loadClasses() tea.Cmd {
	sortKey := m.sort.key(false)
	return func() tea.Msg {
		classes, err := db.LoadClasses(m.db, sortKey)
		return rowsLoadedMsg{classes: classes, err: err}
	}
}

func (m *Model) loadItems(class string) tea.Cmd {
	sortKey := m.sort.key(true)
	return func() tea.Msg {
		items, err := db.LoadItems(m.db, class, sortKey, "", itemLimit)
		return rowsLoadedMsg{class: class, items: items, err: err}
	}
}

func (m *Model) reload() tea.Cmd {
	if m.class != "" {
		return m.loadItems(m.class)
	}
	return m.loadClasses()
}

func (m *Model) helpLine() string {
	if m.filterActive {
		return "Type to filter | Enter: apply | Esc: clear | q: quit"
	}
	if m.class != "" {
		return "↑/↓ move | Backspace: classes | s/n/t/f: sort | /: filter | q: quit"
	}
	return "↑/↓ move | Enter: open | s/n/t/f: sort | /: filter | q: quit"
}

func (m *Model) setClasses(classes []db.DisplayClass) {
	m.classes = classes
	m.summary = nil
	m.total = 0
	rows := make([]row, 0, len(classes))
	for _, c := range classes {
		m.total += c.Bytes
		rows = append(rows, classRow(c))
	}
	m.allRows = rows
	m.applyFilter()
}

func (m *Model) setItems(class string, items []entry.Item) {
	m.class = class
	m.summary = nil
	for i := range m.classes {
		if m.classes[i].Name == class {
			c := m.classes[i]
			m.summary = &c
			break
		}
	}
	m.total = 0
	rows := make([]row, 0, len(items))
	for _, it := range items {
		m.total += it.Bytes
		rows = append(rows, itemRow(it))
	}
	m.allRows = rows
	m.applyFilter()
}

func classRow(c db.DisplayClass) row {
	return row{
		name: c.Name,
		cells: []string{
			FormatSize(c.Bytes),
			FormatCount(c.Total),
			FormatCount(c.OK),
			FormatCount(c.Failed),
			fmt.Sprintf("%d", c.Label),
		},
		value:  c.Bytes,
		failed: c.Failed > 0,
	}
}

func itemRow(it entry.Item) row {
	dims := ""
	if it.SrcW > 0 {
		dims = fmt.Sprintf("%dx%d", it.SrcW, it.SrcH)
	}
	name := it.Name
	if it.Reason != "" {
		name += " (" + it.Reason + ")"
	}
	return row{
		name: name,
		cells: []string{
			FormatSize(it.Bytes),
			it.Status.String(),
			dims,
			it.Format,
		},
		value:  it.Bytes,
		failed: it.Status == entry.StatusFailed,
	}
}

func (m *Model) applyFilter() {
	if m.filter == "" {
		m.rows = m.allRows
	} else {
		filtered := make([]row, 0, len(m.allRows))
		needle := strings.ToLower(m.filter)
		for _, r := range m.allRows {
			if strings.Contains(strings.ToLower(r.name), needle) {
				filtered = append(filtered, r)
			}
		}
		m.rows = filtered
	}
	m.cursor = 0
}
