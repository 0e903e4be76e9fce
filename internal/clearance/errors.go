package clearance

import "fmt"

// InvalidQueryError rejects malformed caller input before any computation.
type InvalidQueryError struct {
	Field  string
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s: %s", e.Field, e.Reason)
}
