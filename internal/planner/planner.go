// Package planner maps visual configurations to query plans and normalized
// datasets. A Provider is an immutable type->Planner table built once at
// startup; lookups never mutate it, so it is safe for concurrent use.
package planner

import (
	"context"

	"github.com/praeparo-labs/praeparo/internal/dataset"
	"github.com/praeparo-labs/praeparo/internal/datasource"
	"github.com/praeparo-labs/praeparo/internal/dax"
	"github.com/praeparo-labs/praeparo/internal/visual"
)

// ExecutionClient executes a query plan against a resolved datasource and
// returns the raw tagged rows. Execute blocks until the result is available
// or ctx is done.
type ExecutionClient interface {
	Execute(ctx context.Context, plan *dax.QueryPlan, target *datasource.Resolved) (*dax.QueryResult, error)
}

// Planner turns one visual kind's configuration into a query plan, executes
// it, and normalizes the raw rows into a dataset.
type Planner interface {
	// Plan validates the configuration against planner capabilities and
	// builds the query plan. Unsupported combinations fail here, before any
	// execution client is involved.
	Plan(config visual.Config) (*dax.QueryPlan, error)
	// Execute runs the plan through the client.
	Execute(ctx context.Context, client ExecutionClient, plan *dax.QueryPlan, target *datasource.Resolved) (*dax.QueryResult, error)
	// Normalize maps the raw result onto the plan's declared shape.
	Normalize(plan *dax.QueryPlan, config visual.Config, result *dax.QueryResult) (*dataset.Matrix, error)
}

// Provider resolves visual types to planners. The table is copied at
// construction and never modified afterwards.
type Provider struct {
	planners map[string]Planner
}

// NewProvider builds a provider from the given table.
func NewProvider(planners map[string]Planner) *Provider {
	copied := make(map[string]Planner, len(planners))
	for kind, p := range planners {
		copied[kind] = p
	}
	return &Provider{planners: copied}
}

// DefaultProvider returns the provider with the built-in planners.
func DefaultProvider() *Provider {
	return NewProvider(map[string]Planner{
		visual.KindMatrix: &MatrixPlanner{},
	})
}

// Planner returns the planner for a visual type.
func (p *Provider) Planner(kind string) (Planner, error) {
	planner, ok := p.planners[kind]
	if !ok {
		return nil, &NotFoundError{Kind: kind}
	}
	return planner, nil
}

// Kinds returns the registered visual types, unordered.
func (p *Provider) Kinds() []string {
	kinds := make([]string, 0, len(p.planners))
	for kind := range p.planners {
		kinds = append(kinds, kind)
	}
	return kinds
}
