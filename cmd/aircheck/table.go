package main

import (
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
	// alignPath left-aligns and shortens long filesystem paths so media
	// path columns do not swallow the rest of the table.
	alignPath
)

// maxPathCell bounds path cells; longer paths keep their leading directories
// and basename with the middle elided.
const maxPathCell = 48

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if i < len(aligns) && aligns[i] == alignPath {
				cell = shortenPath(cell)
			}
			r[i] = cell
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func shortenPath(path string) string {
	if len(path) <= maxPathCell {
		return path
	}
	base := filepath.Base(path)
	if len(base)+4 >= maxPathCell {
		return "..." + path[len(path)-maxPathCell+3:]
	}
	prefix := maxPathCell - len(base) - 4
	return path[:prefix] + ".../" + base
}
