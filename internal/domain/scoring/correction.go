package scoring

import (
	"sync"
	"time"
)

// Correction is a manual override of one competitor's result in one race
// column. A non-empty MaxPointsReason (e.g. "DSQ", "DNF") scores the
// competitor at maximum points and takes precedence over a numeric Points
// override when both are present.
type Correction struct {
	CompetitorID    string
	Column          string
	MaxPointsReason string
	Points          *float64
	ValidFrom       time.Time
}

type correctionKey struct {
	competitorID string
	column       string
}

// Corrections is the score-correction table of one leaderboard. Entries are
// keyed by (competitor, column); for the same key the correction with the
// latest validity time wins.
type Corrections struct {
	mu    sync.RWMutex
	byKey map[correctionKey]Correction
}

// NewCorrections creates an empty correction table.
func NewCorrections() *Corrections {
	return &Corrections{byKey: make(map[correctionKey]Correction)}
}

// Apply records a correction, last write by validity time winning. An older
// validity time than the stored one is ignored.
func (c *Corrections) Apply(corr Correction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := correctionKey{competitorID: corr.CompetitorID, column: corr.Column}
	if cur, ok := c.byKey[k]; ok && corr.ValidFrom.Before(cur.ValidFrom) {
		return
	}
	c.byKey[k] = corr
}

// Lookup returns the effective correction for (competitor, column) whose
// validity time is at or before the given time point.
func (c *Corrections) Lookup(competitorID, column string, at time.Time) (Correction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	corr, ok := c.byKey[correctionKey{competitorID: competitorID, column: column}]
	if !ok || corr.ValidFrom.After(at) {
		return Correction{}, false
	}
	return corr, true
}

// LastValidity returns the latest validity time across all corrections,
// false when the table is empty. Preliminary/Final snapshots resolve their
// time point from it.
func (c *Corrections) LastValidity() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var last time.Time
	for _, corr := range c.byKey {
		if corr.ValidFrom.After(last) {
			last = corr.ValidFrom
		}
	}
	return last, !last.IsZero()
}

// Len returns the number of effective corrections.
func (c *Corrections) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byKey)
}
