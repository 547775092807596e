package models

import "time"

// CheckInEvent is emitted when a recognized identity produces its first
// attendance record of the day.
type CheckInEvent struct {
	IdentityID string    `json:"identity_id"`
	Name       string    `json:"name"`
	Date       string    `json:"date"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
}

// StrangerEvent is emitted when an unrecognized face passes the cooldown
// throttle. SubjectKey is a frame-region heuristic, not a stable identity.
type StrangerEvent struct {
	SubjectKey  string    `json:"subject_key"`
	X           int       `json:"x"`
	Y           int       `json:"y"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Confidence  float64   `json:"confidence"`
	Timestamp   time.Time `json:"timestamp"`
	SnapshotKey string    `json:"snapshot_key,omitempty"`
}
