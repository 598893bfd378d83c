package store

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateRequest means the student already has an outstanding
	// pending movement of the same type.
	ErrDuplicateRequest = errors.New("duplicate pending request")

	// ErrInvalidTransition means the record is not in a state the requested
	// transition can leave from. Terminal states are immutable.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrCodeIssuanceFailed means entry-code generation for one guest
	// exhausted its collision retries.
	ErrCodeIssuanceFailed = errors.New("entry code issuance failed")
)

// isUniqueViolation reports whether err is a unique-constraint failure from
// either backing engine (postgres in production, sqlite in tests).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
