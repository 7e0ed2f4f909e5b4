// Package dax builds backend-agnostic query plans for matrix visuals and
// renders them as DAX text. A plan is built once per execution and never
// mutated after handoff to the execution client.
package dax

import (
	"fmt"
	"strings"

	"github.com/praeparo-labs/praeparo/internal/templating"
	"github.com/praeparo-labs/praeparo/internal/visual"
)

// RowKeyColumn is the synthetic column used to match raw result rows back to
// the row spec that produced them.
const RowKeyColumn = "__row"

// QueryPlan describes the data a matrix needs: one row spec per declared row
// definition, the value columns, filter constraints, and staged definitions.
type QueryPlan struct {
	// Statement is the full DAX batch: a DEFINE block (when definitions are
	// staged) followed by one EVALUATE per row spec, in declaration order.
	Statement   string
	Rows        []RowSpec
	Values      []ValueSpec
	Filters     []FilterSpec
	Definitions []visual.Definition
}

// RowSpec is one declared row definition. A spec with grouping fields
// expands into one concrete result row per distinct combination; a spec
// without fields yields a single row.
type RowSpec struct {
	Key      string
	Template string
	Label    string
	Hidden   bool
	Fields   []templating.FieldReference
}

// ValueSpec is one declared value column.
type ValueSpec struct {
	ID      string
	Alias   string
	Measure string
	ShowAs  string
	Format  string
}

// FilterSpec encodes one filter constraint: either a field with an include
// set, or a raw predicate expression.
type FilterSpec struct {
	Field      templating.FieldReference
	Include    []string
	Expression string
}

// QueryResult is the raw outcome of executing a plan: one flat row list with
// each row tagged by RowKeyColumn, plus the transport attempt count.
type QueryResult struct {
	Rows     []map[string]any
	Attempts int
}

// BuildMatrixQuery constructs the query plan for a matrix configuration.
func BuildMatrixQuery(config *visual.Matrix) (*QueryPlan, error) {
	plan := &QueryPlan{Definitions: config.Define}

	for i, row := range config.Rows {
		fields, err := templating.FieldReferences(row.Template)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		plan.Rows = append(plan.Rows, RowSpec{
			Key:      fmt.Sprintf("r%d", i+1),
			Template: row.Template,
			Label:    row.Label,
			Hidden:   row.Hidden,
			Fields:   fields,
		})
	}

	for _, value := range config.Values {
		plan.Values = append(plan.Values, ValueSpec{
			ID:      value.ID,
			Alias:   value.Alias(),
			Measure: formatMeasure(value.ID),
			ShowAs:  value.ShowAs,
			Format:  value.Format,
		})
	}

	for i, filter := range config.Filters {
		if filter.Expression != "" {
			plan.Filters = append(plan.Filters, FilterSpec{Expression: filter.Expression})
			continue
		}
		field, err := parseFilterField(filter.Field)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", i+1, err)
		}
		plan.Filters = append(plan.Filters, FilterSpec{Field: field, Include: filter.Include})
	}

	plan.Statement = renderStatement(plan)
	return plan, nil
}

func parseFilterField(raw string) (templating.FieldReference, error) {
	refs, err := templating.FieldReferences("{{" + raw + "}}")
	if err != nil {
		return templating.FieldReference{}, err
	}
	return refs[0], nil
}

func renderStatement(plan *QueryPlan) string {
	var b strings.Builder

	if len(plan.Definitions) > 0 {
		b.WriteString("DEFINE\n")
		for _, def := range plan.Definitions {
			if def.Kind == "table" {
				fmt.Fprintf(&b, "    TABLE %s = %s\n", def.Name, def.Expression)
			} else {
				fmt.Fprintf(&b, "    MEASURE %s = %s\n", formatMeasure(def.Name), def.Expression)
			}
		}
	}

	for _, row := range plan.Rows {
		b.WriteString(renderRowQuery(plan, row))
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderRowQuery renders one EVALUATE block. TREATAS filters become
// SUMMARIZECOLUMNS arguments; expression filters wrap the block in
// CALCULATETABLE.
func renderRowQuery(plan *QueryPlan, row RowSpec) string {
	var parts []string
	for _, field := range row.Fields {
		parts = append(parts, field.DaxReference())
	}
	for _, filter := range plan.Filters {
		if filter.Expression != "" {
			continue
		}
		parts = append(parts, renderTreatAs(filter))
	}
	for _, value := range plan.Values {
		parts = append(parts, fmt.Sprintf(`"%s", %s`, escapeLabel(value.Alias), value.Measure))
	}

	body := "SUMMARIZECOLUMNS(\n    " + strings.Join(parts, ",\n    ") + "\n)"
	for _, filter := range plan.Filters {
		if filter.Expression != "" {
			body = "CALCULATETABLE(\n" + indent(body, "    ") + ",\n    " + filter.Expression + "\n)"
		}
	}
	return "EVALUATE\n" + body + "\n"
}

func renderTreatAs(filter FilterSpec) string {
	quoted := make([]string, len(filter.Include))
	for i, value := range filter.Include {
		quoted[i] = `"` + escapeLabel(value) + `"`
	}
	return fmt.Sprintf("TREATAS({%s}, %s)", strings.Join(quoted, ", "), filter.Field.DaxReference())
}

func formatMeasure(identifier string) string {
	trimmed := strings.TrimSpace(identifier)
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		return trimmed
	}
	return "[" + trimmed + "]"
}

func escapeLabel(label string) string {
	return strings.ReplaceAll(label, `"`, `""`)
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
