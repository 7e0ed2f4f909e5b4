// Package visual defines the typed visual configuration variants and the
// discriminator dispatch that selects them. A raw document's `type` field
// uniquely selects both the schema variant and, downstream, the planner;
// unknown discriminators are rejected before any further processing.
package visual

// Type discriminators.
const (
	KindMatrix = "matrix"
	KindFrame  = "frame"
)

// Config is the closed set of visual configuration variants. The concrete
// types are Matrix and Frame; pipeline strategies switch on Kind().
type Config interface {
	// Kind returns the type discriminator ("matrix", "frame").
	Kind() string
	// Base returns the fields shared by every visual kind.
	Base() Common
}

// Common holds the fields shared by all visual configurations.
type Common struct {
	Type        string `mapstructure:"type"`
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	// Datasource names a datasource document. Empty routes execution to the
	// deterministic mock data provider.
	Datasource string `mapstructure:"datasource"`
}

// Totals controls which grand totals a matrix displays.
type Totals string

const (
	TotalsOff    Totals = "off"
	TotalsRow    Totals = "row"
	TotalsColumn Totals = "column"
	TotalsBoth   Totals = "both"
)

func (t Totals) valid() bool {
	switch t {
	case TotalsOff, TotalsRow, TotalsColumn, TotalsBoth:
		return true
	}
	return false
}

// Row reports whether row totals are requested.
func (t Totals) Row() bool { return t == TotalsRow || t == TotalsBoth }

// Column reports whether column totals are requested.
func (t Totals) Column() bool { return t == TotalsColumn || t == TotalsBoth }
