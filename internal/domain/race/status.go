package race

import (
	"iter"

	"github.com/okian/regatta/internal/domain/event"
)

// lifecycle lists the legal successor statuses of each status. The log never
// rejects an out-of-sequence event; this table is advisory, used to flag
// suspicious appends and by conformance tests.
var lifecycle = map[event.Status][]event.Status{
	event.StatusUnscheduled:  {event.StatusPrescheduled, event.StatusScheduled},
	event.StatusPrescheduled: {event.StatusUnscheduled, event.StatusScheduled},
	event.StatusScheduled:    {event.StatusStartphase, event.StatusUnscheduled},
	event.StatusStartphase:   {event.StatusRunning, event.StatusScheduled},
	event.StatusRunning:      {event.StatusFinishing},
	event.StatusFinishing:    {event.StatusFinished, event.StatusRunning},
	event.StatusFinished:     {},
}

// CanPrecede reports whether moving from s directly to next follows the
// normal race lifecycle.
func CanPrecede(s, next event.Status) bool {
	for _, n := range lifecycle[s] {
		if n == next {
			return true
		}
	}
	return false
}

// started reports whether s is at or past the start phase and before the
// terminal status, i.e. the race span is open.
func started(s event.Status) bool {
	switch s {
	case event.StatusStartphase, event.StatusRunning, event.StatusFinishing:
		return true
	default:
		return false
	}
}

// foldStatus derives the current status purely from the unrevoked event
// sequence. The last status-changing event wins; start-time events imply
// the pre-start statuses when the race has not advanced past them. An event
// appended out of sequence simply has its implied status folded in
// consistently.
func foldStatus(events iter.Seq[event.Event]) event.Status {
	cur := event.StatusUnscheduled
	for e := range events {
		switch p := e.Payload.(type) {
		case event.StatusChanged:
			cur = p.Status
		case event.StartTimeProposed:
			if cur == event.StatusUnscheduled {
				cur = event.StatusPrescheduled
			}
		case event.StartTimeSet:
			if cur == event.StatusUnscheduled || cur == event.StatusPrescheduled {
				cur = event.StatusScheduled
			}
		}
	}
	return cur
}
