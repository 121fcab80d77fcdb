package document

import "errors"

// Domain errors for the document package.
var (
	// ErrNotFound is returned when no active document of a type exists.
	ErrNotFound = errors.New("document: not found")

	// ErrUnknownType is returned for a type other than schedule or settings.
	ErrUnknownType = errors.New("document: unknown type")

	// ErrInvalidData is returned when a payload is not valid JSON or does
	// not have the shape its type requires.
	ErrInvalidData = errors.New("document: invalid data")
)
