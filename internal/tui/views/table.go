package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/imcore/internal/tui/ui"
	"github.com/rivo/tview"
)

type column struct {
	title     string
	expansion int
	align     int
}

func newTable(theme *ui.Theme, title string) *tview.Table {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(title)
	table.SetTitleColor(theme.TitleColor)
	return table
}

func setHeader(table *tview.Table, theme *ui.Theme, cols []column) {
	for i, c := range cols {
		table.SetCell(0, i, tview.NewTableCell(" "+c.title).
			SetSelectable(false).
			SetTextColor(theme.TableHeaderFg).
			SetBackgroundColor(theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(c.expansion).
			SetAlign(c.align))
	}
}

func cell(text string, color tcell.Color) *tview.TableCell {
	return tview.NewTableCell(" " + text).SetTextColor(color)
}

// selectedIndex maps the table cursor to a data index, skipping the
// header row.
func selectedIndex(table *tview.Table, n int) int {
	row, _ := table.GetSelection()
	if idx := row - 1; idx >= 0 && idx < n {
		return idx
	}
	return -1
}

// clampSelection keeps the cursor on a data row after the rows changed.
func clampSelection(table *tview.Table, n int) {
	if n == 0 {
		return
	}
	row, _ := table.GetSelection()
	switch {
	case row < 1:
		table.Select(1, 0)
	case row > n:
		table.Select(n, 0)
	}
}
