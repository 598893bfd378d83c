package gate

import "errors"

var (
	// ErrValidation means the input was malformed: a missing required field
	// or an invalid enum value. Nothing is written.
	ErrValidation = errors.New("validation failed")

	// ErrEntityNotFound means a movement or lookup referenced an entity the
	// directory does not know. Nothing is written.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrInvalidApprover means a visit resolution named an approver the
	// directory does not know. Nothing is written.
	ErrInvalidApprover = errors.New("invalid approver")
)
