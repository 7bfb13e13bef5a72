package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column. Numeric columns are right-aligned.
type column struct {
	title   string
	numeric bool
}

var (
	checkColumns = []column{{title: "Check"}, {title: "OK"}, {title: "Detail"}}
	runColumns   = []column{
		{title: "ID"},
		{title: "Status"},
		{title: "Started"},
		{title: "Sources", numeric: true},
		{title: "Artifacts", numeric: true},
		{title: "Size", numeric: true},
		{title: "Elapsed", numeric: true},
	}
	artifactColumns = []column{
		{title: "Artifact"},
		{title: "Width", numeric: true},
		{title: "Format"},
		{title: "Size", numeric: true},
	}
)

// renderTable formats rows under cols. Cells beyond len(cols) are dropped
// and short rows are padded with blanks.
func renderTable(cols []column, rows [][]string) string {
	if len(cols) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		header[i] = c.title
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if c.numeric {
			configs[i].Align = text.AlignRight
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, cells := range rows {
		row := make(table.Row, len(cols))
		for i := range row {
			row[i] = ""
			if i < len(cells) {
				row[i] = cells[i]
			}
		}
		tw.AppendRow(row)
	}
	return tw.Render()
}
