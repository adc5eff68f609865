package scoring

import "errors"

// Sentinel kinds for scoring configuration errors. Data-availability gaps
// (missing rankings) are not errors; they surface as nil cells.
var (
	ErrInvalidDiscardRule = errors.New("invalid discard rule")
	ErrNoMetric           = errors.New("ranking metric not configured")
	ErrDuplicateColumn    = errors.New("duplicate race column")
	ErrUnknownResultState = errors.New("unknown result state")
)
