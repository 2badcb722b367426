package source

import "errors"

// Sentinel error kinds for this package.
var (
	ErrMalformed      = errors.New("malformed source")
	ErrTableConflict  = errors.New("too many players at one table")
	ErrUnknownKind    = errors.New("unknown event kind")
	ErrDuplicateEvent = errors.New("event listed twice")
)
