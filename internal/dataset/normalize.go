package dataset

import (
	"fmt"
	"strings"

	"github.com/praeparo-labs/praeparo/internal/dax"
	"github.com/praeparo-labs/praeparo/internal/templating"
	"github.com/praeparo-labs/praeparo/internal/visual"
)

// Show-as transforms. Transforms are computed over the visible row set from
// the raw (pre-transform) values.
const (
	ShowAsColumnPercent = "percent_of_column_total"
	ShowAsRowPercent    = "percent_of_row_total"
)

// NormalizeShowAs canonicalizes a show-as directive ("Percent of column
// total" and "percent_of_column_total" are equivalent).
func NormalizeShowAs(raw string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_")
}

// SupportedShowAs reports whether the directive names a known transform.
func SupportedShowAs(raw string) bool {
	switch NormalizeShowAs(raw) {
	case "", ShowAsColumnPercent, ShowAsRowPercent:
		return true
	}
	return false
}

// Normalize maps raw tagged rows onto the plan's declared columns, applies
// show-as transforms, and computes requested totals.
func Normalize(plan *dax.QueryPlan, config *visual.Matrix, raw []map[string]any) (*Matrix, error) {
	result := &Matrix{}
	for _, value := range plan.Values {
		result.Columns = append(result.Columns, Column{
			ID:     value.ID,
			Alias:  value.Alias,
			ShowAs: NormalizeShowAs(value.ShowAs),
			Format: value.Format,
		})
	}

	bySpec := map[string][]map[string]any{}
	for _, record := range raw {
		key, _ := record[dax.RowKeyColumn].(string)
		bySpec[key] = append(bySpec[key], record)
	}

	for _, spec := range plan.Rows {
		records := bySpec[spec.Key]
		if len(spec.Fields) == 0 && len(records) == 0 {
			// A literal row spec always yields a row, even on empty results.
			records = []map[string]any{{}}
		}
		for _, record := range records {
			row := Row{
				Hidden: spec.Hidden,
				Cells:  map[string]any{},
				Record: record,
			}
			switch {
			case spec.Label != "":
				row.Label = spec.Label
			default:
				row.Label = templating.RenderFields(spec.Template, record)
			}
			for _, column := range result.Columns {
				row.Cells[column.Alias] = lookupCell(record, column)
			}
			result.Rows = append(result.Rows, row)
		}
	}

	if err := applyShowAs(result); err != nil {
		return nil, err
	}
	applyTotals(result, config.Totals)
	return result, nil
}

// lookupCell finds a column's value in a raw record, tolerating the alias,
// the measure id, and the bracketed measure forms backends return.
func lookupCell(record map[string]any, column Column) any {
	for _, key := range []string{column.Alias, column.ID, "[" + column.ID + "]"} {
		if value, ok := record[key]; ok {
			return value
		}
	}
	return nil
}

// applyShowAs replaces cells of transform columns with the derived statistic,
// computed from a snapshot of the raw values over visible rows.
func applyShowAs(result *Matrix) error {
	transformed := false
	for _, column := range result.Columns {
		if column.ShowAs != "" {
			transformed = true
		}
	}
	if !transformed {
		return nil
	}

	columnSums := map[string]float64{}
	rowSums := make([]float64, len(result.Rows))
	for i, row := range result.Rows {
		for _, column := range result.Columns {
			value, ok := Number(row.Cells[column.Alias])
			if !ok {
				continue
			}
			if !row.Hidden {
				columnSums[column.Alias] += value
			}
			rowSums[i] += value
		}
	}

	for i := range result.Rows {
		row := &result.Rows[i]
		for _, column := range result.Columns {
			value, ok := Number(row.Cells[column.Alias])
			if !ok {
				continue
			}
			switch column.ShowAs {
			case "":
			case ShowAsColumnPercent:
				row.Cells[column.Alias] = ratio(value, columnSums[column.Alias])
			case ShowAsRowPercent:
				row.Cells[column.Alias] = ratio(value, rowSums[i])
			default:
				return fmt.Errorf("unsupported show_as %q for column %q", column.ShowAs, column.Alias)
			}
		}
	}
	return nil
}

// applyTotals computes the requested totals. The grand-total row sums all
// queried rows, hidden included; transform columns total their visible
// transformed values instead. The total column sums each row's cells.
func applyTotals(result *Matrix, totals visual.Totals) {
	if totals.Column() {
		result.HasTotalColumn = true
		for i := range result.Rows {
			row := &result.Rows[i]
			sum := 0.0
			for _, column := range result.Columns {
				if value, ok := Number(row.Cells[column.Alias]); ok {
					sum += value
				}
			}
			total := sum
			row.Total = &total
		}
	}

	if !totals.Row() {
		return
	}

	totalsRow := Row{Label: "Total", Cells: map[string]any{}}
	grand := 0.0
	for _, column := range result.Columns {
		sum := 0.0
		for _, row := range result.Rows {
			if column.ShowAs != "" && row.Hidden {
				continue
			}
			if value, ok := Number(row.Cells[column.Alias]); ok {
				sum += value
			}
		}
		totalsRow.Cells[column.Alias] = sum
		grand += sum
	}
	if result.HasTotalColumn {
		totalsRow.Total = &grand
	}
	result.TotalsRow = &totalsRow
}

func ratio(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return value / total
}
