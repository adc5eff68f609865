// Package event defines the immutable facts recorded in a race log.
//
// An Event is created once, appended to a log, and never mutated. It can be
// retracted later by a revocation tombstone, but it is never deleted. The
// payload is a closed set of variants declared in this package; analyzers
// dispatch over them with type switches.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is one timestamped fact about a race.
type Event struct {
	// ID uniquely identifies the event; revocations reference it.
	ID string
	// LogicalTime is the authoritative race time of the fact. It is not
	// required to be monotonic across a log; corrections may arrive late.
	LogicalTime time.Time
	// CreatedAt is the wall clock at recording time. A log enforces that it
	// never decreases across the physical append order.
	CreatedAt time.Time
	// Author identifies who recorded the event.
	Author string
	// PassID is the lap or attempt counter the event belongs to.
	PassID int
	// Competitors lists the involved competitor ids, possibly empty.
	Competitors []string
	// Payload carries the type-specific data.
	Payload Payload
}

// Option applies a configuration option to a new Event.
type Option func(*Event)

// WithID overrides the generated event id. Replicated events keep their
// original id so revocations resolve on every replica.
func WithID(id string) Option {
	return func(e *Event) {
		if id != "" {
			e.ID = id
		}
	}
}

// WithCreatedAt overrides the creation timestamp. Replication and replay
// paths use this to preserve the original wall clock.
func WithCreatedAt(ts time.Time) Option {
	return func(e *Event) {
		if !ts.IsZero() {
			e.CreatedAt = ts
		}
	}
}

// WithPassID sets the lap/attempt counter.
func WithPassID(pass int) Option {
	return func(e *Event) {
		if pass > 0 {
			e.PassID = pass
		}
	}
}

// WithCompetitors sets the involved competitor ids.
func WithCompetitors(ids ...string) Option {
	return func(e *Event) {
		if len(ids) > 0 {
			e.Competitors = append([]string(nil), ids...)
		}
	}
}

// New creates an event with a fresh id. CreatedAt is left zero unless set by
// an option; the log assigns it under its write lock so that creation order
// and creation time can never disagree.
func New(logical time.Time, author string, payload Payload, opts ...Option) Event {
	e := Event{
		ID:          uuid.NewString(),
		LogicalTime: logical,
		Author:      author,
		Payload:     payload,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Type returns the payload type tag of the event.
func (e Event) Type() Type {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.kind()
}
