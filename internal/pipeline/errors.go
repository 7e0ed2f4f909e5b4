package pipeline

import "fmt"

// OutputError reports a failure writing an artifact to its destination. It is
// distinct from render.Error: the figure was produced, the destination
// rejected it.
type OutputError struct {
	Target string
	Path   string
	Cause  error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("output %s: writing %s: %v", e.Target, e.Path, e.Cause)
}

func (e *OutputError) Unwrap() error { return e.Cause }

// StageError wraps a failure with the pipeline stage it occurred in. Stages
// run in a fixed order and fail fast; the first stage error aborts the run.
type StageError struct {
	Stage  string
	Source string
	Cause  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Source, e.Cause)
}

func (e *StageError) Unwrap() error { return e.Cause }
