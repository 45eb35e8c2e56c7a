package tui

import (
	"fmt"
	"math"
	"strings"
)

var (
	classColumns = []string{"SIZE", "TOTAL", "OK", "FAILED", "LABEL"}
	itemColumns  = []string{"SIZE", "STATUS", "SOURCE", "FORMAT"}
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err)
	}

	if m.runMeta == nil {
		return "Loading..."
	}

	var b strings.Builder
	headerLines := 0

	writeLine := func(line string) {
		b.WriteString(line)
		b.WriteString("\n")
		headerLines++
	}

	writeLine(titleStyle.Render("dsprep - Dataset Manifest Browser"))

	runInfo := fmt.Sprintf("Run: %s | %dx%d | Classes: %s | Images: %s | Failed: %s | Written: %s",
		m.runMeta.StartTime.Format("2006-01-02 15:04"),
		m.runMeta.Width, m.runMeta.Height,
		FormatCount(m.runMeta.ClassCount),
		FormatCount(m.runMeta.ItemCount),
		FormatCount(m.runMeta.ErrorCount),
		FormatSize(m.runMeta.TotalBytes),
	)
	writeLine(statsStyle.Render(runInfo))

	location := m.runMeta.OutputDir
	if m.class != "" {
		location += "/" + m.class
	}
	pathLabel := fmt.Sprintf("Path: %s", truncateMiddle(location, max(10, m.width-6)))
	writeLine(breadcrumbStyle.Render(pathLabel))

	classInfo := ""
	if m.summary != nil {
		classInfo = fmt.Sprintf("Label %d | %s of %s written | %s skipped | %s failed | %s",
			m.summary.Label,
			FormatCount(m.summary.OK),
			FormatCount(m.summary.Expected),
			FormatCount(m.summary.Skipped),
			FormatCount(m.summary.Failed),
			FormatSize(m.summary.Bytes),
		)
	}

	status := fmt.Sprintf("Items: %s", FormatCount(int64(len(m.rows))))
	if m.filter != "" {
		status += fmt.Sprintf(" | Filter: %q", m.filter)
	}
	if len(m.rows) > 0 && m.cursor < len(m.rows) {
		sel := m.rows[m.cursor]
		status += fmt.Sprintf(" | Sel: %s (%s)", sel.name, FormatSize(sel.value))
	}
	writeLine(statusStyle.Render(status))

	if m.filterActive {
		writeLine(filterStyle.Render(fmt.Sprintf("Filter: %s_", m.filter)))
	} else if m.filter != "" {
		writeLine(filterStyle.Render(fmt.Sprintf("Filter: %s", m.filter)))
	}

	labels := m.columnLabels()
	nameLabel := headerLabel("NAME", m.sort == SortByName, "^")

	footerLines := 2
	if classInfo != "" {
		footerLines = 3
	}
	visibleRows := m.height - headerLines - footerLines
	if visibleRows < 5 {
		visibleRows = 5
	}

	startIdx := 0
	if m.cursor >= visibleRows {
		startIdx = m.cursor - visibleRows + 1
	}
	endIdx := min(len(m.rows), startIdx+visibleRows)

	widths := calcColumnWidths(m.rows, startIdx, endIdx, labels)
	nameWidth := calcNameWidth(m.width, widths)

	nameLabel = truncateRight(nameLabel, nameWidth)
	header := joinColumns(labels, widths) +
		strings.Repeat(" ", nameGapWidth) +
		padRight(nameLabel, nameWidth) +
		strings.Repeat(" ", colGap) +
		fmt.Sprintf("%*s", barColWidth, "SIZE%")
	writeLine(headerStyle.Render(header))

	for i := startIdx; i < endIdx; i++ {
		b.WriteString(m.formatRow(m.rows[i], i == m.cursor, widths, nameWidth))
		b.WriteString("\n")
	}

	displayedRows := min(len(m.rows)-startIdx, visibleRows)
	for i := displayedRows; i < visibleRows; i++ {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if classInfo != "" {
		b.WriteString(statsStyle.Render(classInfo))
		b.WriteString("\n")
	}
	help := m.helpLine()
	if len(m.rows) > 0 {
		help = fmt.Sprintf("%s [%d/%d]", help, m.cursor+1, len(m.rows))
	}
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

// columnLabels returns the data column headers with the sort marker on the
// active column.
func (m *Model) columnLabels() []string {
	base := classColumns
	countCol, failedCol := 1, 3
	if m.class != "" {
		base = itemColumns
		countCol, failedCol = -1, 1
	}
	labels := make([]string, len(base))
	for i, l := range base {
		active := (i == 0 && m.sort == SortBySize) ||
			(i == countCol && m.sort == SortByCount) ||
			(i == failedCol && m.sort == SortByFailed)
		labels[i] = headerLabel(l, active, "v")
	}
	return labels
}

const (
	colGap        = 2
	nameGapWidth  = 2
	minNameWidth  = 10
	barBlockWidth = 10                                        // number of block characters
	barPctWidth   = 4                                         // " 78%" or "100%"
	barGapWidth   = 1                                         // space between blocks and pct
	barColWidth   = barBlockWidth + barGapWidth + barPctWidth // 15
)

func calcColumnWidths(rows []row, startIdx, endIdx int, labels []string) []int {
	w := make([]int, len(labels))
	for i, l := range labels {
		w[i] = len(l)
	}

	for i := startIdx; i < endIdx; i++ {
		for j, cell := range rows[i].cells {
			if j < len(w) && len(cell) > w[j] {
				w[j] = len(cell)
			}
		}
	}

	return w
}

func calcNameWidth(totalWidth int, widths []int) int {
	used := nameGapWidth + colGap + barColWidth
	for _, w := range widths {
		used += w
	}
	used += colGap * (len(widths) - 1)
	nameWidth := totalWidth - used
	if nameWidth < minNameWidth {
		nameWidth = minNameWidth
	}
	return nameWidth
}

func joinColumns(cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = fmt.Sprintf("%*s", w, cell)
	}
	return strings.Join(parts, strings.Repeat(" ", colGap))
}

func padRight(s string, width int) string {
	if pad := width - len(s); pad > 0 {
		return s + strings.Repeat(" ", pad)
	}
	return s
}

func truncateRight(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func (m *Model) formatRow(r row, selected bool, widths []int, nameWidth int) string {
	rawName := r.name
	if m.class == "" {
		rawName += "/"
	}
	rawName = truncateRight(rawName, nameWidth)

	var styledName string
	switch {
	case r.failed:
		styledName = failedStyle.Render(rawName)
	case m.class == "":
		styledName = classStyle.Render(rawName)
	default:
		styledName = fileStyle.Render(rawName)
	}

	// Pad name to fixed width so bar column aligns
	pad := nameWidth - len(rawName)
	if pad < 0 {
		pad = 0
	}
	paddedName := styledName + strings.Repeat(" ", pad)

	line := joinColumns(r.cells, widths) +
		strings.Repeat(" ", nameGapWidth) +
		paddedName +
		strings.Repeat(" ", colGap) +
		formatBar(r.value, m.total)

	if selected {
		return selectedStyle.Render(line)
	}
	return line
}

func formatBar(value, total int64) string {
	if total <= 0 || value <= 0 {
		empty := strings.Repeat("░", barBlockWidth)
		return barEmptyStyle.Render(empty) + fmt.Sprintf("  %3d%%", 0)
	}

	pct := float64(value) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}

	filled := int(math.Round(pct / 100 * float64(barBlockWidth)))
	if filled < 1 {
		filled = 1
	}
	if filled > barBlockWidth {
		filled = barBlockWidth
	}

	filledStr := barFilledStyle.Render(strings.Repeat("█", filled))
	emptyStr := barEmptyStyle.Render(strings.Repeat("░", barBlockWidth-filled))
	return filledStr + emptyStr + fmt.Sprintf("  %3d%%", int(math.Round(pct)))
}

func headerLabel(label string, active bool, dir string) string {
	if active {
		return label + dir
	}
	return label
}

func truncateMiddle(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	head := (maxLen - 3) / 2
	tail := maxLen - 3 - head
	return s[:head] + "..." + s[len(s)-tail:]
}
