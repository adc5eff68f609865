package event

import "time"

// Type identifies the kind of an event payload.
type Type string

// Payload type tags, one per variant.
const (
	TypeStatusChanged        Type = "race.status_changed"
	TypeStartTimeProposed    Type = "race.start_time_proposed"
	TypeStartTimeSet         Type = "race.start_time_set"
	TypeFlagChanged          Type = "race.flag_changed"
	TypeCourseChanged        Type = "race.course_changed"
	TypeWindFix              Type = "race.wind_fix"
	TypeCompetitorRegistered Type = "race.competitor_registered"
	TypeFinishPositioning    Type = "race.finish_positioning"
	TypeRevoked              Type = "log.revoked"
)

// Payload is the closed set of event payloads. All implementations live in
// this package; the unexported method keeps the set sealed so analyzers can
// rely on an exhaustive type switch.
type Payload interface {
	kind() Type
}

// Status is the race lifecycle position derived from status events.
type Status string

// Race statuses in lifecycle order. PRESCHEDULED is a side branch of
// UNSCHEDULED used while a start time is proposed but not committed.
const (
	StatusUnscheduled  Status = "UNSCHEDULED"
	StatusPrescheduled Status = "PRESCHEDULED"
	StatusScheduled    Status = "SCHEDULED"
	StatusStartphase   Status = "STARTPHASE"
	StatusRunning      Status = "RUNNING"
	StatusFinishing    Status = "FINISHING"
	StatusFinished     Status = "FINISHED"
)

// StatusChanged moves the race to a new lifecycle status.
type StatusChanged struct {
	Status Status `json:"status"`
}

// StartTimeProposed records a start time under discussion, not yet committed.
type StartTimeProposed struct {
	StartTime time.Time `json:"start_time"`
}

// StartTimeSet commits the official start time.
type StartTimeSet struct {
	StartTime time.Time `json:"start_time"`
}

// FlagChanged records a committee flag being raised or lowered.
type FlagChanged struct {
	Flag   string `json:"flag"`
	Raised bool   `json:"raised"`
}

// Mark is one rounding mark of a course design.
type Mark struct {
	Name     string `json:"name"`
	Rounding string `json:"rounding,omitempty"` // "port" or "starboard"
}

// Course is a named course design.
type Course struct {
	Name  string `json:"name"`
	Marks []Mark `json:"marks,omitempty"`
}

// CourseChanged replaces the current course design.
type CourseChanged struct {
	Course Course `json:"course"`
}

// WindFix records a wind observation on the course.
type WindFix struct {
	DirectionDeg float64 `json:"direction_deg"`
	SpeedKnots   float64 `json:"speed_knots"`
}

// CompetitorRegistered adds a competitor and boat to the race roster.
type CompetitorRegistered struct {
	CompetitorID string `json:"competitor_id"`
	Boat         string `json:"boat,omitempty"`
	SailNumber   string `json:"sail_number,omitempty"`
}

// Position is one slot in a finishing order.
type Position struct {
	CompetitorID string `json:"competitor_id"`
	Rank         int    `json:"rank"`
}

// FinishPositioning records the finishing order known so far. Confirmed
// marks the order as final for the race.
type FinishPositioning struct {
	Positions []Position `json:"positions"`
	Confirmed bool       `json:"confirmed"`
}

// Revoked is the tombstone appended by a log revocation. TargetID references
// the event being retracted.
type Revoked struct {
	TargetID string `json:"target_id"`
}

func (StatusChanged) kind() Type        { return TypeStatusChanged }
func (StartTimeProposed) kind() Type    { return TypeStartTimeProposed }
func (StartTimeSet) kind() Type         { return TypeStartTimeSet }
func (FlagChanged) kind() Type          { return TypeFlagChanged }
func (CourseChanged) kind() Type        { return TypeCourseChanged }
func (WindFix) kind() Type              { return TypeWindFix }
func (CompetitorRegistered) kind() Type { return TypeCompetitorRegistered }
func (FinishPositioning) kind() Type    { return TypeFinishPositioning }
func (Revoked) kind() Type              { return TypeRevoked }
