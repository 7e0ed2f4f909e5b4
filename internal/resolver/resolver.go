// Package resolver turns raw visual documents into validated configuration.
// Resolution is a pure function of the loaded documents: compose chains are
// deep-merged in order, overrides merged on top, parameters substituted into
// template-capable fields, and the result dispatched to its schema variant.
package resolver

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/praeparo-labs/praeparo/internal/merge"
	"github.com/praeparo-labs/praeparo/internal/visual"
)

// ResolutionError reports a failure to assemble a document before schema
// validation: an unresolved reference, an unresolved template placeholder,
// or a merge producing an invalid intermediate shape.
type ResolutionError struct {
	Ref    string
	Reason string
	Cause  error
}

func (e *ResolutionError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("resolving %q: %s", e.Ref, e.Reason)
	}
	return "resolving visual config: " + e.Reason
}

func (e *ResolutionError) Unwrap() error { return e.Cause }

// Resolver merges, templates, and validates visual documents.
type Resolver struct {
	source Source
	logger *slog.Logger
}

// Config holds resolver construction options.
type Config struct {
	// Source loads raw documents by reference. Defaults to a filesystem
	// source resolving references relative to the referring document.
	Source Source
	Logger *slog.Logger
}

// New creates a Resolver.
func New(cfg Config) *Resolver {
	source := cfg.Source
	if source == nil {
		source = FileSource{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{source: source, logger: logger}
}

// Resolve loads the document at ref and resolves it into a validated visual
// configuration. Overrides are deep-merged onto the composed document and
// parameters are substituted into template-capable fields before validation.
func (r *Resolver) Resolve(ref string, overrides map[string]any, parameters map[string]string) (visual.Config, error) {
	config, _, err := r.resolve(ref, "", overrides, parameters, nil)
	return config, err
}

func (r *Resolver) resolve(ref, from string, overrides map[string]any, parameters map[string]string, stack []string) (visual.Config, string, error) {
	doc, resolved, err := r.source.Load(ref, from)
	if err != nil {
		return nil, "", &ResolutionError{Ref: ref, Reason: "unresolved reference", Cause: err}
	}
	if slices.Contains(stack, resolved) {
		return nil, "", &ResolutionError{Ref: ref, Reason: fmt.Sprintf("reference cycle through %q", resolved)}
	}
	stack = append(stack, resolved)

	merged, err := r.composeChain(doc, resolved, stack)
	if err != nil {
		return nil, "", err
	}
	if len(overrides) > 0 {
		merged = merge.Maps(merged, overrides)
	}

	params := collectParameters(merged, parameters)
	delete(merged, "compose")
	delete(merged, "parameters")

	substituted, missing := visual.SubstituteParameters(merged, params)
	if len(missing) > 0 {
		return nil, "", &ResolutionError{Ref: ref, Reason: fmt.Sprintf("unresolved template placeholder ${%s}", missing[0])}
	}

	config, err := visual.Decode(substituted)
	if err != nil {
		return nil, "", err
	}

	if frame, ok := config.(*visual.Frame); ok {
		if err := r.resolveChildren(frame, resolved, stack); err != nil {
			return nil, "", err
		}
	}

	r.logger.Debug("resolved visual", "ref", ref, "kind", config.Kind())
	return config, resolved, nil
}

// composeChain merges the document's compose chain in order, the document
// itself last. Base documents may carry their own compose chains.
func (r *Resolver) composeChain(doc map[string]any, resolved string, stack []string) (map[string]any, error) {
	rawCompose, ok := doc["compose"]
	if !ok {
		return merge.Maps(nil, doc), nil
	}
	entries, ok := rawCompose.([]any)
	if !ok {
		return nil, &ResolutionError{Ref: resolved, Reason: fmt.Sprintf("compose must be a sequence, got %T", rawCompose)}
	}

	chain := map[string]any{}
	for _, entry := range entries {
		baseRef, ok := entry.(string)
		if !ok {
			return nil, &ResolutionError{Ref: resolved, Reason: fmt.Sprintf("compose entries must be references, got %T", entry)}
		}
		baseDoc, baseResolved, err := r.source.Load(baseRef, resolved)
		if err != nil {
			return nil, &ResolutionError{Ref: baseRef, Reason: "unresolved reference", Cause: err}
		}
		if slices.Contains(stack, baseResolved) {
			return nil, &ResolutionError{Ref: baseRef, Reason: fmt.Sprintf("reference cycle through %q", baseResolved)}
		}
		baseMerged, err := r.composeChain(baseDoc, baseResolved, append(stack, baseResolved))
		if err != nil {
			return nil, err
		}
		delete(baseMerged, "compose")
		chain = merge.Maps(chain, baseMerged)
	}

	self := merge.Maps(nil, doc)
	delete(self, "compose")
	return merge.Maps(chain, self), nil
}

// collectParameters builds the effective parameter context: the document's
// own `parameters` map supplies defaults, caller-supplied parameters win.
// Values are coerced to text.
func collectParameters(doc map[string]any, callerParams map[string]string) map[string]string {
	params := map[string]string{}
	if raw, ok := doc["parameters"].(map[string]any); ok {
		for name, value := range raw {
			params[name] = fmt.Sprint(value)
		}
	}
	for name, value := range callerParams {
		params[name] = value
	}
	return params
}

func (r *Resolver) resolveChildren(frame *visual.Frame, resolved string, stack []string) error {
	frame.Resolved = make([]*visual.Child, 0, len(frame.Children))
	for _, ref := range frame.Children {
		child, childPath, err := r.resolve(ref.Ref, resolved, ref.Overrides, ref.Parameters, stack)
		if err != nil {
			return err
		}
		frame.Resolved = append(frame.Resolved, &visual.Child{
			Source:     childPath,
			Visual:     child,
			Parameters: ref.Parameters,
			Overrides:  ref.Overrides,
		})
	}
	return nil
}
