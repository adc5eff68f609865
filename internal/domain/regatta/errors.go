package regatta

import "errors"

// Sentinel kinds for registry errors.
var (
	ErrDuplicateLeaderboard = errors.New("duplicate leaderboard name")
	ErrUnknownLeaderboard   = errors.New("unknown leaderboard")
	ErrUnknownRace          = errors.New("unknown race")
)
