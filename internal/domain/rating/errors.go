package rating

import "errors"

// Sentinel error kinds for this package.
var (
	ErrUnknownKind = errors.New("unknown rating algorithm")
)
