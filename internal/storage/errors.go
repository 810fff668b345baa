package storage

import "errors"

// Errors shared by every MatchStore implementation.
var (
	// ErrNotFound means no match is stored under the requested event id.
	ErrNotFound = errors.New("match not found")

	// ErrDuplicateKey means the event id was already stored. A stored match
	// is never overwritten.
	ErrDuplicateKey = errors.New("match already stored")

	// ErrInvalidInput means a match failed ValidateMatch.
	ErrInvalidInput = errors.New("invalid match")
)
