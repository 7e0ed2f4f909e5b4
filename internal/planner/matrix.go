package planner

import (
	"context"
	"fmt"

	"github.com/praeparo-labs/praeparo/internal/dataset"
	"github.com/praeparo-labs/praeparo/internal/datasource"
	"github.com/praeparo-labs/praeparo/internal/dax"
	"github.com/praeparo-labs/praeparo/internal/visual"
)

// MatrixPlanner plans and normalizes matrix visuals.
type MatrixPlanner struct{}

// Plan implements Planner. Unsupported show-as directives are rejected here,
// before any query is dispatched.
func (p *MatrixPlanner) Plan(config visual.Config) (*dax.QueryPlan, error) {
	matrix, err := p.matrix(config)
	if err != nil {
		return nil, err
	}
	for _, value := range matrix.Values {
		if !dataset.SupportedShowAs(value.ShowAs) {
			return nil, &Error{
				Kind:   visual.KindMatrix,
				Reason: fmt.Sprintf("unsupported show_as %q for value %q", value.ShowAs, value.ID),
			}
		}
	}

	plan, err := dax.BuildMatrixQuery(matrix)
	if err != nil {
		return nil, &Error{Kind: visual.KindMatrix, Reason: "building query", Cause: err}
	}
	return plan, nil
}

// Execute implements Planner.
func (p *MatrixPlanner) Execute(ctx context.Context, client ExecutionClient, plan *dax.QueryPlan, target *datasource.Resolved) (*dax.QueryResult, error) {
	return client.Execute(ctx, plan, target)
}

// Normalize implements Planner.
func (p *MatrixPlanner) Normalize(plan *dax.QueryPlan, config visual.Config, result *dax.QueryResult) (*dataset.Matrix, error) {
	matrix, err := p.matrix(config)
	if err != nil {
		return nil, err
	}
	return dataset.Normalize(plan, matrix, result.Rows)
}

func (p *MatrixPlanner) matrix(config visual.Config) (*visual.Matrix, error) {
	matrix, ok := config.(*visual.Matrix)
	if !ok {
		return nil, &Error{
			Kind:   config.Kind(),
			Reason: fmt.Sprintf("matrix planner cannot handle %T", config),
		}
	}
	return matrix, nil
}
