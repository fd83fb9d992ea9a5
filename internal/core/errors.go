package core

import "strings"

// ValidationError carries the user-facing reasons a transaction was refused.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}
