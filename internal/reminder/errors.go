package reminder

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a reminder does not exist or is not owned by
// the acting user. The two cases are indistinguishable to the caller.
var ErrNotFound = errors.New("reminder: not found")

// ValidationError rejects a request before any write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("reminder: invalid %s: %s", e.Field, e.Reason)
}
