package event

import "errors"

// Sentinel kinds for event errors.
var (
	ErrUnknownType = errors.New("unknown event type")
)
