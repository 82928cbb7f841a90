package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Table renders rows as aligned columns. The first column is padded by
// display width so wide runes line up.
type Table struct {
	Header []string
	Rows   [][]string
	Styled bool
	Width  int // 0 disables truncation of the last column
}

// Render returns the table text including a trailing newline per row.
func (t Table) Render() string {
	cols := len(t.Header)
	for _, row := range t.Rows {
		cols = max(cols, len(row))
	}
	if cols == 0 {
		return ""
	}
	widths := make([]int, cols)
	measure := func(row []string) {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	measure(t.Header)
	for _, row := range t.Rows {
		measure(row)
	}

	headStyle := lipgloss.NewStyle().Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	var b strings.Builder
	writeRow := func(row []string, header bool) {
		used := 0
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			last := i == cols-1
			if last && t.Width > 0 {
				cell = truncate(cell, t.Width-used)
			}
			padded := cell
			if !last {
				padded = runewidth.FillRight(cell, widths[i])
			}
			if t.Styled {
				switch {
				case header:
					padded = headStyle.Render(padded)
				case i == 0:
					padded = keyStyle.Render(padded)
				}
			}
			b.WriteString(padded)
			if !last {
				b.WriteString("  ")
				used += widths[i] + 2
			}
		}
		b.WriteString("\n")
	}
	if len(t.Header) > 0 {
		writeRow(t.Header, true)
	}
	for _, row := range t.Rows {
		writeRow(row, false)
	}
	return b.String()
}
