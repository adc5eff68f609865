package eventlog

import "errors"

// Sentinel kinds for log errors.
var (
	ErrOutOfOrderCreation = errors.New("creation time regression")
	ErrUnknownEvent       = errors.New("unknown event id")
	ErrDuplicateEvent     = errors.New("duplicate event id")
	ErrNotEmpty           = errors.New("log not empty")
)
