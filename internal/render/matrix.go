package render

import (
	"github.com/praeparo-labs/praeparo/internal/dataset"
	"github.com/praeparo-labs/praeparo/internal/visual"
)

// MatrixFigure renders a matrix dataset. Only visible rows appear; the
// totals row, when present, is the final grid row.
func MatrixFigure(config *visual.Matrix, data *dataset.Matrix, style Style) (*Figure, error) {
	if data == nil {
		return nil, &Error{Reason: "matrix figure requires a dataset"}
	}

	table := matrixTable(config.Title, data)
	figure := &Figure{
		Title:  config.Title,
		Style:  style,
		Tables: []Table{table},
	}
	if config.AutoHeight {
		figure.Height = table.Height
		if config.Title != "" {
			figure.Height += TitleMargin
		}
	}
	return figure, nil
}

func matrixTable(title string, data *dataset.Matrix) Table {
	headers := []string{""}
	for _, column := range data.Columns {
		headers = append(headers, column.Alias)
	}
	if data.HasTotalColumn {
		headers = append(headers, "Total")
	}

	var rows [][]string
	for _, row := range data.Visible() {
		rows = append(rows, tableRow(row, data))
	}
	if data.TotalsRow != nil {
		rows = append(rows, tableRow(*data.TotalsRow, data))
	}

	return Table{
		Title:   title,
		Headers: headers,
		Rows:    rows,
		Height:  EstimateTableHeight(len(rows)),
	}
}

func tableRow(row dataset.Row, data *dataset.Matrix) []string {
	cells := []string{row.Label}
	for _, column := range data.Columns {
		format := column.Format
		if format == "" && column.ShowAs != "" {
			format = "percent:2"
		}
		cells = append(cells, FormatValue(row.Cells[column.Alias], format))
	}
	if data.HasTotalColumn {
		if row.Total != nil {
			cells = append(cells, FormatValue(*row.Total, ""))
		} else {
			cells = append(cells, "")
		}
	}
	return cells
}
