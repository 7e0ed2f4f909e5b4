package visual

import "strings"

// Frame layouts.
const (
	LayoutVertical   = "vertical"
	LayoutHorizontal = "horizontal"
)

// Frame composes multiple visuals into a single figure.
type Frame struct {
	Common     `mapstructure:",squash"`
	Layout     string     `mapstructure:"layout"`
	AutoHeight bool       `mapstructure:"autoHeight"`
	ShowTitles bool       `mapstructure:"showTitles"`
	Children   []ChildRef `mapstructure:"children"`

	// Resolved is populated by the resolver: one entry per child reference,
	// in declaration order.
	Resolved []*Child `mapstructure:"-"`
}

// Kind implements Config.
func (f *Frame) Kind() string { return KindFrame }

// Base implements Config.
func (f *Frame) Base() Common { return f.Common }

// ChildRef is a raw child reference as written in a frame document. Any key
// other than ref and parameters is collected into Overrides and deep-merged
// into the referenced document before validation.
type ChildRef struct {
	Ref        string
	Parameters map[string]string
	Overrides  map[string]any
}

// Child is a resolved frame child. Overrides records the override map that
// was applied when the child document was loaded, for traceability.
type Child struct {
	Source     string
	Visual     Config
	Parameters map[string]string
	Overrides  map[string]any
}

func (f *Frame) normalize() {
	if f.Layout == "" {
		f.Layout = LayoutVertical
	}
	for i := range f.Children {
		f.Children[i].Ref = strings.TrimSpace(f.Children[i].Ref)
	}
}

func (f *Frame) validate() error {
	if f.Layout != LayoutVertical && f.Layout != LayoutHorizontal {
		return validationErrorf("frame", "layout", "unsupported layout %q", f.Layout)
	}
	if len(f.Children) == 0 {
		return validationErrorf("frame", "children", "at least one child is required")
	}
	for i, child := range f.Children {
		if child.Ref == "" {
			return validationErrorf("frame", "children", "child %d requires a non-empty ref", i+1)
		}
	}
	return nil
}
