// Package types contains common read-model types used across the application
package types

import "time"

// RaceSummary is the read projection of one race's derived state.
type RaceSummary struct {
	RaceID    string     `json:"race_id"`
	Status    string     `json:"status"`
	Flags     []string   `json:"flags"`
	Course    *Course    `json:"course,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	Proposed  *time.Time `json:"proposed_start_time,omitempty"`
	Wind      *Wind      `json:"wind,omitempty"`
	Roster    []Boat     `json:"roster"`
	Version   uint64     `json:"version"`
}

// Course mirrors the course design for JSON consumers.
type Course struct {
	Name  string `json:"name"`
	Marks []Mark `json:"marks,omitempty"`
}

// Mark is one course mark.
type Mark struct {
	Name     string `json:"name"`
	Rounding string `json:"rounding,omitempty"`
}

// Wind is the latest wind observation.
type Wind struct {
	DirectionDeg float64 `json:"direction_deg"`
	SpeedKnots   float64 `json:"speed_knots"`
}

// Boat is one rostered competitor.
type Boat struct {
	CompetitorID string `json:"competitor_id"`
	Boat         string `json:"boat,omitempty"`
	SailNumber   string `json:"sail_number,omitempty"`
}

// Stats is the operational snapshot served by /stats.
type Stats struct {
	Races        int   `json:"races"`
	Leaderboards int   `json:"leaderboards"`
	Groups       int   `json:"groups"`
	TrackedFixes int   `json:"tracked_fixes"`
	QueueLen     int   `json:"queue_len"`
	DedupeSize   int64 `json:"dedupe_size"`
}
