package visual

import "fmt"

// ValidationError reports a schema violation in a visual document: an
// unknown discriminator, a missing required field, or a type mismatch.
// Validation errors are surfaced immediately and never retried.
type ValidationError struct {
	Kind   string // discriminator of the document, if known
	Field  string // offending field, if applicable
	Reason string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Kind != "" && e.Field != "":
		return fmt.Sprintf("invalid %s config: field %q: %s", e.Kind, e.Field, e.Reason)
	case e.Kind != "":
		return fmt.Sprintf("invalid %s config: %s", e.Kind, e.Reason)
	default:
		return fmt.Sprintf("invalid visual config: %s", e.Reason)
	}
}

func validationErrorf(kind, field, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Reason: fmt.Sprintf(format, args...)}
}
