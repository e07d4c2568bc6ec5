package ui

import (
	"fmt"
	"image"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func (ui *UI) createTagTable() *tview.Table {
	table := tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false).
		SetFixed(1, 0)
	table.SetBackgroundColor(ui.colors.background)
	table.SetBorder(true).
		SetBorderColor(ui.colors.borders).
		SetTitle(" Tags ").
		SetTitleColor(ui.colors.foreground)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(ui.colors.background).
		Background(ui.colors.highlight))

	ui.setTagHeader(table)
	return table
}

func (ui *UI) setTagHeader(table *tview.Table) {
	for col, title := range []string{"Name", "Value"} {
		table.SetCell(0, col, tview.NewTableCell(title).
			SetTextColor(ui.colors.highlight).
			SetBackgroundColor(ui.colors.background).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold).
			SetExpansion(col))
	}
}

func (ui *UI) refreshTagTable(values map[string]any) {
	ui.tagTable.Clear()
	ui.setTagHeader(ui.tagTable)

	for i, row := range tagRows(values) {
		ui.tagTable.SetCell(i+1, 0, tview.NewTableCell(" "+row[0]).
			SetTextColor(ui.colors.foreground).
			SetBackgroundColor(ui.colors.background))
		ui.tagTable.SetCell(i+1, 1, tview.NewTableCell(row[1]).
			SetTextColor(ui.colors.foreground).
			SetBackgroundColor(ui.colors.background).
			SetExpansion(1))
	}
}

// tagRows returns name/value pairs sorted by name.
func tagRows(values map[string]any) [][2]string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][2]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, [2]string{name, formatTagValue(values[name])})
	}
	return rows
}

func formatTagValue(v any) string {
	switch val := v.(type) {
	case string:
		return tview.Escape(val)
	case float32:
		return fmt.Sprintf("%.2f", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case []byte:
		return humanize.Bytes(uint64(len(val))) + " binary"
	case image.Image:
		b := val.Bounds()
		return fmt.Sprintf("image %dx%d", b.Dx(), b.Dy())
	case nil:
		return ""
	default:
		return tview.Escape(fmt.Sprint(val))
	}
}
