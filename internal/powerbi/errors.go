package powerbi

import "fmt"

// ExecutionError is a backend failure translated into pipeline terms: the
// operation that failed, the HTTP status when one was received, and the
// backend's message.
type ExecutionError struct {
	Operation string
	Status    int
	Message   string
	Cause     error
}

func (e *ExecutionError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("power bi %s: status %d: %s", e.Operation, e.Status, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("power bi %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("power bi %s: %s", e.Operation, e.Message)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// ReentrantError reports an Execute call made from the transport worker
// goroutine. Such a call can never complete: the worker would be waiting on
// itself. Failing fast keeps the deadlock diagnosable.
type ReentrantError struct{}

func (e *ReentrantError) Error() string {
	return "power bi execute: reentrant call from the transport worker"
}
