package visual

import "strings"

// Matrix is the configuration for a matrix (tabular report) visual.
type Matrix struct {
	Common     `mapstructure:",squash"`
	Rows       []RowTemplate `mapstructure:"rows"`
	Values     []Value       `mapstructure:"values"`
	Filters    []Filter      `mapstructure:"filters"`
	Define     []Definition  `mapstructure:"define"`
	Totals     Totals        `mapstructure:"totals"`
	AutoHeight bool          `mapstructure:"autoHeight"`
}

// Kind implements Config.
func (m *Matrix) Kind() string { return KindMatrix }

// Base implements Config.
func (m *Matrix) Base() Common { return m.Common }

// RowTemplate declares one matrix row definition. A template containing
// field references expands into one concrete row per distinct grouping
// combination returned by the backend; a literal template yields a single
// row. Hidden rows stay in the query and totals but are excluded from the
// rendered visible sequence.
type RowTemplate struct {
	Template string `mapstructure:"template"`
	Label    string `mapstructure:"label"`
	Hidden   bool   `mapstructure:"hidden"`
}

// Value declares a matrix value column.
type Value struct {
	ID string `mapstructure:"id"`
	// ShowAs is a derived display transform, e.g. "percent_of_column_total".
	ShowAs string `mapstructure:"show_as"`
	Label  string `mapstructure:"label"`
	// Format is a rendering directive such as "percent:0" or "duration:hms".
	Format string `mapstructure:"format"`
}

// Alias returns the column alias used in query results and headers.
func (v Value) Alias() string {
	if v.Label != "" {
		return v.Label
	}
	return v.ID
}

// Filter constrains the queried data. Exactly one of (Field, Include) or
// Expression must be set.
type Filter struct {
	Field      string   `mapstructure:"field"`
	Include    []string `mapstructure:"include"`
	Expression string   `mapstructure:"expression"`
}

// Definition stages a table or measure usable by filters and templates.
type Definition struct {
	Name       string `mapstructure:"name"`
	Kind       string `mapstructure:"kind"` // "table" or "measure"
	Expression string `mapstructure:"expression"`
}

func (m *Matrix) normalize() {
	for i := range m.Values {
		m.Values[i].ID = strings.TrimSpace(m.Values[i].ID)
		m.Values[i].Label = strings.TrimSpace(m.Values[i].Label)
		m.Values[i].ShowAs = strings.TrimSpace(m.Values[i].ShowAs)
		m.Values[i].Format = strings.TrimSpace(m.Values[i].Format)
	}
	for i := range m.Rows {
		m.Rows[i].Template = strings.TrimSpace(m.Rows[i].Template)
		m.Rows[i].Label = strings.TrimSpace(m.Rows[i].Label)
	}
	if m.Totals == "" {
		m.Totals = TotalsOff
	}
}

func (m *Matrix) validate() error {
	if len(m.Rows) == 0 {
		return validationErrorf("matrix", "rows", "at least one row template is required")
	}
	if len(m.Values) == 0 {
		return validationErrorf("matrix", "values", "at least one value column is required")
	}
	for i, row := range m.Rows {
		if row.Template == "" {
			return validationErrorf("matrix", "rows", "row %d has an empty template", i+1)
		}
	}
	seen := map[string]struct{}{}
	for _, value := range m.Values {
		if value.ID == "" {
			return validationErrorf("matrix", "values", "value id cannot be empty")
		}
		if _, dup := seen[value.ID]; dup {
			return validationErrorf("matrix", "values", "duplicate value id %q", value.ID)
		}
		seen[value.ID] = struct{}{}
	}
	for i, filter := range m.Filters {
		hasField := filter.Field != "" || len(filter.Include) > 0
		hasExpr := filter.Expression != ""
		switch {
		case hasField && hasExpr:
			return validationErrorf("matrix", "filters", "filter %d mixes field/include with expression", i+1)
		case !hasField && !hasExpr:
			return validationErrorf("matrix", "filters", "filter %d needs field/include or expression", i+1)
		case hasField && (filter.Field == "" || len(filter.Include) == 0):
			return validationErrorf("matrix", "filters", "filter %d requires both field and include", i+1)
		}
	}
	for i, def := range m.Define {
		if def.Name == "" || def.Expression == "" {
			return validationErrorf("matrix", "define", "definition %d requires name and expression", i+1)
		}
		if def.Kind != "table" && def.Kind != "measure" {
			return validationErrorf("matrix", "define", "definition %d has unsupported kind %q", i+1, def.Kind)
		}
	}
	if !m.Totals.valid() {
		return validationErrorf("matrix", "totals", "unsupported totals %q", m.Totals)
	}
	return nil
}
