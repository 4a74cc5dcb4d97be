package models

import "time"

// MissionKind selects which activity advances a mission
type MissionKind string

const (
	MissionToolRuns     MissionKind = "tool_runs"
	MissionMinutesSaved MissionKind = "minutes_saved"
)

// MissionStatus is the derived state of a mission instance
type MissionStatus string

const (
	MissionAssigned   MissionStatus = "assigned"
	MissionInProgress MissionStatus = "in_progress"
	MissionCompleted  MissionStatus = "completed"
	MissionExpired    MissionStatus = "expired"
)

// Mission is one weekly goal instance embedded in a profile
type Mission struct {
	ID          string      `json:"id"`
	Kind        MissionKind `json:"kind"`
	Title       string      `json:"title"`
	Target      int64       `json:"target"`
	Current     int64       `json:"current"`
	Reward      int64       `json:"reward"`
	Completed   bool        `json:"completed"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	WeekStart   time.Time   `json:"week_start"`
	WeekEnd     time.Time   `json:"week_end"`
}

// Status derives the state machine position at now.
// Completed is terminal; an unfinished mission at or past WeekEnd is expired.
func (m *Mission) Status(now time.Time) MissionStatus {
	switch {
	case m.Completed:
		return MissionCompleted
	case !now.Before(m.WeekEnd):
		return MissionExpired
	case m.Current > 0:
		return MissionInProgress
	default:
		return MissionAssigned
	}
}
