// Package pipeline orchestrates visual execution end to end: resolve the
// document, plan its queries, execute them, normalize, render, and emit
// artifacts. Stages run in that order and fail fast; only output emission
// tolerates partial failure, isolating each target.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/praeparo-labs/praeparo/internal/dataset"
	"github.com/praeparo-labs/praeparo/internal/datasource"
	"github.com/praeparo-labs/praeparo/internal/dax"
	"github.com/praeparo-labs/praeparo/internal/planner"
	"github.com/praeparo-labs/praeparo/internal/render"
	"github.com/praeparo-labs/praeparo/internal/resolver"
	"github.com/praeparo-labs/praeparo/internal/visual"
)

// Config wires a Pipeline's collaborators. Zero-value fields get working
// defaults; Client stays nil unless remote execution is needed.
type Config struct {
	Logger      *slog.Logger
	Resolver    *resolver.Resolver
	Datasources *datasource.Resolver
	Planners    *planner.Provider
	// Client executes plans against remote datasources.
	Client planner.ExecutionClient
	// Mock executes plans for mock datasources; defaults to the deterministic
	// sample provider.
	Mock    planner.ExecutionClient
	Style   render.Style
	Outputs []OutputTarget
}

// Pipeline executes visual documents.
type Pipeline struct {
	logger      *slog.Logger
	resolver    *resolver.Resolver
	datasources *datasource.Resolver
	planners    *planner.Provider
	client      planner.ExecutionClient
	mock        planner.ExecutionClient
	style       render.Style
	outputs     []OutputTarget
}

// Options adjusts a single execution.
type Options struct {
	// Datasource overrides the document's datasource reference.
	Datasource string
	// Parameters are caller-supplied template parameters.
	Parameters map[string]string
	// Overrides are deep-merged over the resolved document.
	Overrides map[string]any
	// Validate enables the strict dataset checks: results must carry at
	// least one row and every declared value column must be present.
	Validate bool
}

// Result is the outcome of executing one visual. Frames carry one child
// result per resolved child; matrices carry the plan and dataset directly.
type Result struct {
	ID      uuid.UUID
	Source  string
	Config  visual.Config
	Plan    *dax.QueryPlan
	Dataset *dataset.Matrix
	Figure  *render.Figure
	// Children holds per-child results for frames, in declaration order.
	// Children never emit artifacts; outputs apply to the top-level figure.
	Children  []*Result
	Artifacts []Artifact
	// OutputFailures records per-target emission failures. A failed target
	// never blocks the others.
	OutputFailures []error
}

// New builds a Pipeline.
func New(cfg Config) *Pipeline {
	p := &Pipeline{
		logger:      cfg.Logger,
		resolver:    cfg.Resolver,
		datasources: cfg.Datasources,
		planners:    cfg.Planners,
		client:      cfg.Client,
		mock:        cfg.Mock,
		style:       cfg.Style,
		outputs:     cfg.Outputs,
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.resolver == nil {
		p.resolver = resolver.New(resolver.Config{})
	}
	if p.datasources == nil {
		p.datasources = &datasource.Resolver{}
	}
	if p.planners == nil {
		p.planners = planner.DefaultProvider()
	}
	if p.mock == nil {
		p.mock = &planner.MockClient{}
	}
	if p.style == (render.Style{}) {
		p.style = render.DefaultStyle()
	}
	return p
}

// Execute runs the full pipeline for the document at path. When emission
// fails for some targets, the returned Result is still complete and the
// error joins the per-target failures.
func (p *Pipeline) Execute(ctx context.Context, path string, opts Options) (*Result, error) {
	config, err := p.resolver.Resolve(path, opts.Overrides, opts.Parameters)
	if err != nil {
		return nil, &StageError{Stage: "resolving", Source: path, Cause: err}
	}

	result, err := p.run(ctx, path, config, opts)
	if err != nil {
		return nil, err
	}

	for _, target := range p.outputs {
		artifact, err := target.Emit(result.Figure)
		if err != nil {
			p.logger.Warn("output target failed", "target", target.Name(), "source", path, "error", err)
			result.OutputFailures = append(result.OutputFailures, fmt.Errorf("%s: %w", target.Name(), err))
			continue
		}
		result.Artifacts = append(result.Artifacts, artifact)
	}

	p.logger.Info("visual executed",
		"source", path, "id", result.ID,
		"artifacts", len(result.Artifacts), "failed_outputs", len(result.OutputFailures))
	return result, errors.Join(result.OutputFailures...)
}

// Plan resolves the document and returns its query plans without executing
// them: one plan for a matrix, the children's plans for a frame.
func (p *Pipeline) Plan(path string, opts Options) ([]*dax.QueryPlan, error) {
	config, err := p.resolver.Resolve(path, opts.Overrides, opts.Parameters)
	if err != nil {
		return nil, &StageError{Stage: "resolving", Source: path, Cause: err}
	}
	return p.plan(path, config)
}

func (p *Pipeline) plan(path string, config visual.Config) ([]*dax.QueryPlan, error) {
	if frame, ok := config.(*visual.Frame); ok {
		var plans []*dax.QueryPlan
		for _, child := range frame.Resolved {
			childPlans, err := p.plan(child.Source, child.Visual)
			if err != nil {
				return nil, err
			}
			plans = append(plans, childPlans...)
		}
		return plans, nil
	}

	pl, err := p.planners.Planner(config.Kind())
	if err != nil {
		return nil, &StageError{Stage: "planning", Source: path, Cause: err}
	}
	plan, err := pl.Plan(config)
	if err != nil {
		return nil, &StageError{Stage: "planning", Source: path, Cause: err}
	}
	return []*dax.QueryPlan{plan}, nil
}

func (p *Pipeline) run(ctx context.Context, path string, config visual.Config, opts Options) (*Result, error) {
	switch typed := config.(type) {
	case *visual.Frame:
		return p.runFrame(ctx, path, typed, opts)
	default:
		return p.runLeaf(ctx, path, config, opts)
	}
}

// runLeaf executes a single plannable visual through its planner. The
// datasource resolves before any plan is built, so a missing credential
// costs nothing.
func (p *Pipeline) runLeaf(ctx context.Context, path string, config visual.Config, opts Options) (*Result, error) {
	reference := opts.Datasource
	if reference == "" {
		reference = config.Base().Datasource
	}
	target, err := p.datasources.Resolve(reference, path)
	if err != nil {
		return nil, &StageError{Stage: "resolving datasource", Source: path, Cause: err}
	}

	client := p.mock
	if !target.Mock() {
		if p.client == nil {
			return nil, &StageError{Stage: "executing", Source: path,
				Cause: fmt.Errorf("datasource %q requires a remote execution client", target.Name)}
		}
		client = p.client
	}

	pl, err := p.planners.Planner(config.Kind())
	if err != nil {
		return nil, &StageError{Stage: "planning", Source: path, Cause: err}
	}

	plan, err := pl.Plan(config)
	if err != nil {
		return nil, &StageError{Stage: "planning", Source: path, Cause: err}
	}

	p.logger.Debug("executing query plan",
		"source", path, "datasource", target.Name, "row_specs", len(plan.Rows))
	raw, err := pl.Execute(ctx, client, plan, target)
	if err != nil {
		return nil, &StageError{Stage: "executing", Source: path, Cause: err}
	}

	data, err := pl.Normalize(plan, config, raw)
	if err != nil {
		return nil, &StageError{Stage: "normalizing", Source: path, Cause: err}
	}
	if opts.Validate {
		if err := validateDataset(data); err != nil {
			return nil, &StageError{Stage: "validating", Source: path, Cause: err}
		}
	}

	matrix, ok := config.(*visual.Matrix)
	if !ok {
		return nil, &StageError{Stage: "rendering", Source: path,
			Cause: fmt.Errorf("no renderer for visual type %q", config.Kind())}
	}
	figure, err := render.MatrixFigure(matrix, data, p.style)
	if err != nil {
		return nil, &StageError{Stage: "rendering", Source: path, Cause: err}
	}

	return &Result{
		ID:      uuid.New(),
		Source:  path,
		Config:  config,
		Plan:    plan,
		Dataset: data,
		Figure:  figure,
	}, nil
}

// runFrame executes each resolved child, then composes the child figures.
// Children inherit a datasource override but never emit artifacts.
func (p *Pipeline) runFrame(ctx context.Context, path string, frame *visual.Frame, opts Options) (*Result, error) {
	result := &Result{
		ID:     uuid.New(),
		Source: path,
		Config: frame,
	}

	var figures []*render.Figure
	for _, child := range frame.Resolved {
		childResult, err := p.run(ctx, child.Source, child.Visual, Options{
			Datasource: opts.Datasource,
			Validate:   opts.Validate,
		})
		if err != nil {
			return nil, err
		}
		result.Children = append(result.Children, childResult)
		figures = append(figures, childResult.Figure)
	}

	figure, err := render.FrameFigure(frame, figures, p.style)
	if err != nil {
		return nil, &StageError{Stage: "rendering", Source: path, Cause: err}
	}
	result.Figure = figure
	return result, nil
}

// validateDataset applies the Options.Validate strictness checks: the
// backend must have produced rows, and the first row must carry a value for
// every declared column.
func validateDataset(data *dataset.Matrix) error {
	if len(data.Rows) == 0 {
		return errors.New("data provider returned no rows")
	}
	first := data.Rows[0]
	for _, column := range data.Columns {
		if value, ok := first.Cells[column.Alias]; !ok || value == nil {
			return fmt.Errorf("value %q missing from dataset row", column.Alias)
		}
	}
	return nil
}
