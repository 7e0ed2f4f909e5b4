package visual

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matrixDoc() map[string]any {
	return map[string]any{
		"type":  "matrix",
		"title": "Sales by city",
		"rows": []any{
			"{{ dim.City }}",
			map[string]any{"template": "Remainder", "hidden": true},
		},
		"values": []any{
			map[string]any{"id": "Total Sales", "label": "Sales"},
		},
		"totals": "row",
	}
}

func TestDecode_Matrix(t *testing.T) {
	config, err := Decode(matrixDoc())
	require.NoError(t, err)

	matrix, ok := config.(*Matrix)
	require.True(t, ok)

	assert.Equal(t, "matrix", matrix.Kind())
	assert.Equal(t, "Sales by city", matrix.Title)
	require.Len(t, matrix.Rows, 2)
	assert.Equal(t, "{{ dim.City }}", matrix.Rows[0].Template)
	assert.False(t, matrix.Rows[0].Hidden)
	assert.Equal(t, "Remainder", matrix.Rows[1].Template)
	assert.True(t, matrix.Rows[1].Hidden)
	assert.Equal(t, TotalsRow, matrix.Totals)
	assert.True(t, matrix.AutoHeight, "autoHeight defaults on")
	assert.Equal(t, "Sales", matrix.Values[0].Alias())
}

func TestDecode_MatrixAutoHeightOff(t *testing.T) {
	doc := matrixDoc()
	doc["autoHeight"] = false

	config, err := Decode(doc)
	require.NoError(t, err)

	assert.False(t, config.(*Matrix).AutoHeight)
}

func TestDecode_UnknownDiscriminator(t *testing.T) {
	_, err := Decode(map[string]any{"type": "unknown_kind"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "unknown_kind")
}

func TestDecode_MissingDiscriminator(t *testing.T) {
	_, err := Decode(map[string]any{"title": "no type"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "type", verr.Field)
}

func TestDecode_NonStringDiscriminator(t *testing.T) {
	_, err := Decode(map[string]any{"type": 7})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestDecode_UnknownFieldRejected(t *testing.T) {
	doc := matrixDoc()
	doc["colums"] = []any{"typo"}

	_, err := Decode(doc)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestDecode_MatrixRequiresRowsAndValues(t *testing.T) {
	_, err := Decode(map[string]any{"type": "matrix", "values": []any{map[string]any{"id": "x"}}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "rows", verr.Field)

	_, err = Decode(map[string]any{"type": "matrix", "rows": []any{"{{ a.b }}"}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "values", verr.Field)
}

func TestDecode_DuplicateValueIDs(t *testing.T) {
	doc := matrixDoc()
	doc["values"] = []any{
		map[string]any{"id": "Total Sales"},
		map[string]any{"id": "Total Sales"},
	}

	_, err := Decode(doc)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "duplicate value id")
}

func TestDecode_FilterShapeEnforced(t *testing.T) {
	doc := matrixDoc()
	doc["filters"] = []any{map[string]any{"field": "dim.City"}}

	_, err := Decode(doc)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "filters", verr.Field)
}

func TestDecode_DefineKindEnforced(t *testing.T) {
	doc := matrixDoc()
	doc["define"] = []any{map[string]any{"name": "Staged", "kind": "view", "expression": "FILTER(t, TRUE)"}}

	_, err := Decode(doc)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "define", verr.Field)
}

func TestDecode_Frame(t *testing.T) {
	doc := map[string]any{
		"type":   "frame",
		"title":  "Quarterly report",
		"layout": "vertical",
		"children": []any{
			map[string]any{
				"ref":        "matrix/basic.yaml",
				"parameters": map[string]any{"quarter": 3},
				"totals":     "both",
			},
		},
	}

	config, err := Decode(doc)
	require.NoError(t, err)

	frame, ok := config.(*Frame)
	require.True(t, ok)
	require.Len(t, frame.Children, 1)

	child := frame.Children[0]
	assert.Equal(t, "matrix/basic.yaml", child.Ref)
	assert.Equal(t, map[string]string{"quarter": "3"}, child.Parameters)
	assert.Equal(t, map[string]any{"totals": "both"}, child.Overrides)
}

func TestDecode_FrameDefaultsAndValidation(t *testing.T) {
	config, err := Decode(map[string]any{
		"type":     "frame",
		"children": []any{map[string]any{"ref": "a.yaml"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "vertical", config.(*Frame).Layout)

	_, err = Decode(map[string]any{"type": "frame", "layout": "diagonal", "children": []any{map[string]any{"ref": "a.yaml"}}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "layout", verr.Field)

	_, err = Decode(map[string]any{"type": "frame"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "children", verr.Field)
}
