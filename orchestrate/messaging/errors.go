package messaging

import "fmt"

// ValidationError reports a malformed envelope field. Envelopes that fail
// validation are never built and therefore never sent.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid envelope %s %q: %s", e.Field, e.Value, e.Reason)
}
