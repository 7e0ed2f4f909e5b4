package planner

import "fmt"

// NotFoundError reports a visual type with no registered planner.
type NotFoundError struct {
	Kind string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no planner registered for visual type %q", e.Kind)
}

// Error reports a planning failure: a configuration the planner cannot turn
// into a query plan, detected before any execution client is involved.
type Error struct {
	Kind   string
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("planning %s visual: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("planning %s visual: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }
