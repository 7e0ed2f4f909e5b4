package templating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniqueFieldReferences_DeduplicatesInOrder(t *testing.T) {
	templates := []string{
		"{{dim.Account}}",
		"{{fact.metric | default(0)}}",
		"{{dim.Account}}",
	}

	refs, err := UniqueFieldReferences(templates)
	require.NoError(t, err)

	assert.Equal(t, []FieldReference{
		{Expression: "dim.Account", Table: "dim", Column: "Account"},
		{Expression: "fact.metric", Table: "fact", Column: "metric"},
	}, refs)
}

func TestFieldReferences_BareColumn(t *testing.T) {
	refs, err := FieldReferences("{{ City }}")
	require.NoError(t, err)
	require.Len(t, refs, 1)

	assert.Equal(t, "", refs[0].Table)
	assert.Equal(t, "City", refs[0].Column)
	assert.Equal(t, "[City]", refs[0].DaxReference())
	assert.Equal(t, "City", refs[0].Placeholder())
}

func TestFieldReferences_EmptyPlaceholderFails(t *testing.T) {
	_, err := FieldReferences("{{  }}")
	assert.Error(t, err)
}

func TestDaxReference_TableQualified(t *testing.T) {
	ref := FieldReference{Expression: "dim.City", Table: "dim", Column: "City"}
	assert.Equal(t, "dim[City]", ref.DaxReference())
	assert.Equal(t, "dim.City", ref.Placeholder())
}

func TestRenderFields(t *testing.T) {
	record := map[string]any{"dim.City": "Lisbon", "dim.Country": "Portugal"}

	out := RenderFields("{{ dim.City }} ({{ dim.Country }})", record)
	assert.Equal(t, "Lisbon (Portugal)", out)

	out = RenderFields("{{ dim.Missing }}", record)
	assert.Equal(t, "", out)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "City", Label("{{ dim.City }}"))
	assert.Equal(t, "City, Country", Label("{{dim.City}}, {{dim.Country}}"))
	assert.Equal(t, "Total hours", Label("Total hours"))
}

func TestSubstituteParams(t *testing.T) {
	out, missing := SubstituteParams("Revenue for ${region}", map[string]string{"region": "EMEA"})
	assert.Empty(t, missing)
	assert.Equal(t, "Revenue for EMEA", out)
}

func TestSubstituteParams_MissingReported(t *testing.T) {
	out, missing := SubstituteParams("${region} / ${quarter}", map[string]string{"region": "EMEA"})
	assert.Equal(t, []string{"quarter"}, missing)
	assert.Equal(t, "EMEA / ${quarter}", out)
}

func TestSubstituteParams_ValueStaysTextual(t *testing.T) {
	out, missing := SubstituteParams("${filter}", map[string]string{"filter": "[1,2]"})
	assert.Empty(t, missing)
	assert.Equal(t, "[1,2]", out)
}

func TestHasParams(t *testing.T) {
	assert.True(t, HasParams("x ${a} y"))
	assert.False(t, HasParams("{{ dim.City }}"))
}
