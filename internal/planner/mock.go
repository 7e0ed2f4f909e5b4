package planner

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/praeparo-labs/praeparo/internal/datasource"
	"github.com/praeparo-labs/praeparo/internal/dax"
)

// mockGroupCount is how many sample groups each grouped row spec expands to.
const mockGroupCount = 3

// MockClient generates deterministic sample data shaped like the plan:
// three labeled groups per grouped row spec, one record per literal spec.
// It never touches the network, so it serves offline previews and tests.
type MockClient struct{}

// Execute implements ExecutionClient.
func (c *MockClient) Execute(_ context.Context, plan *dax.QueryPlan, _ *datasource.Resolved) (*dax.QueryResult, error) {
	result := &dax.QueryResult{Attempts: 1}
	for _, spec := range plan.Rows {
		count := mockGroupCount
		if len(spec.Fields) == 0 {
			count = 1
		}
		for index := 1; index <= count; index++ {
			record := map[string]any{dax.RowKeyColumn: spec.Key}
			for _, field := range spec.Fields {
				record[field.Placeholder()] = fmt.Sprintf("%s %d", titleCase(field.Column), index)
			}
			for position, value := range plan.Values {
				record[value.Alias] = seedValue(index*(position+1), value.Format)
			}
			result.Rows = append(result.Rows, record)
		}
	}
	return result, nil
}

// seedValue scales a multiplier into the value's format domain: fractions
// for percents, seconds for durations, plain hundreds otherwise.
func seedValue(multiplier int, format string) float64 {
	switch {
	case strings.HasPrefix(format, "percent"):
		return math.Round(float64(multiplier)*5) / 100.0
	case strings.HasPrefix(format, "duration"):
		return float64(multiplier * 900)
	default:
		return float64(multiplier * 100)
	}
}

func titleCase(column string) string {
	words := strings.Fields(strings.ReplaceAll(column, "_", " "))
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
