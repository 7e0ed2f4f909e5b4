// Package dataset normalizes raw query results into the typed result set
// consumed by the renderer. Column order follows plan declaration order;
// hidden rows stay in the set (and in totals) but are excluded from the
// visible sequence.
package dataset

// Column describes one value column of a matrix result.
type Column struct {
	ID     string
	Alias  string
	ShowAs string
	Format string
}

// Row is one concrete matrix row. Cells are keyed by column alias; Record
// retains the raw backend fields for traceability. Total is set when a total
// column is requested.
type Row struct {
	Label  string
	Hidden bool
	Cells  map[string]any
	Record map[string]any
	Total  *float64
}

// Matrix is a normalized matrix result set.
type Matrix struct {
	Columns []Column
	Rows    []Row
	// TotalsRow holds per-column grand totals computed over all queried
	// rows, hidden included. Nil unless requested.
	TotalsRow *Row
	// HasTotalColumn reports whether rows carry a per-row total.
	HasTotalColumn bool
}

// Visible returns the rows that participate in rendering, in order.
func (m *Matrix) Visible() []Row {
	visible := make([]Row, 0, len(m.Rows))
	for _, row := range m.Rows {
		if !row.Hidden {
			visible = append(visible, row)
		}
	}
	return visible
}

// Number coerces a cell value to float64.
func Number(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	default:
		return 0, false
	}
}
