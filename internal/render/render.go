// Package render turns normalized datasets into figures: a deterministic,
// backend-neutral table model with computed pixel heights. Output targets
// serialize figures; nothing here touches the filesystem or network.
package render

// Pixel constants for the table model.
const (
	TableHeaderHeight  = 40
	TableRowHeight     = 32
	TitleMargin        = 48
	SubplotTitleMargin = 16
	DefaultChildHeight = 350
	FrameChildSpacing  = 16

	minVisibleRows = 1
)

// Style controls presentation details that do not affect figure structure.
type Style struct {
	HeaderBackground string
	HeaderForeground string
}

// DefaultStyle matches the stock table palette.
func DefaultStyle() Style {
	return Style{HeaderBackground: "#1f77b4", HeaderForeground: "white"}
}

// Figure is a rendered visual: one table for a matrix, one table per child
// for a frame. Height is fixed at render time; rendering the same dataset
// twice yields identical figures.
type Figure struct {
	Title  string
	Layout string // "", "vertical", "horizontal"
	Height int
	Style  Style
	Tables []Table
}

// Table is one rendered grid. Cells are already formatted strings.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Height  int
}

// Error reports a rendering failure, including an unavailable render backend.
type Error struct {
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return "render: " + e.Reason + ": " + e.Cause.Error()
	}
	return "render: " + e.Reason
}

func (e *Error) Unwrap() error { return e.Cause }

// EstimateTableHeight returns the pixel height needed for rowCount records.
func EstimateTableHeight(rowCount int) int {
	visible := rowCount
	if visible < minVisibleRows {
		visible = minVisibleRows
	}
	return TableHeaderHeight + visible*TableRowHeight
}
