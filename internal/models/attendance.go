package models

import "time"

// DateLayout is the calendar-date format used for attendance keys.
const DateLayout = "2006-01-02"

// Status of an attendance record.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
	StatusLate    Status = "Late"
	StatusLeave   Status = "Leave"
	StatusOther   Status = "Other"
)

// AttendanceRecord is one persisted (identity, date) attendance row.
// The persistence layer guarantees at most one record per identity per date.
type AttendanceRecord struct {
	IdentityID string    `json:"identity_id" db:"identity_id"`
	Name       string    `json:"name" db:"name"`
	Date       string    `json:"date" db:"date"`
	CheckIn    time.Time `json:"check_in" db:"check_in"`
	Status     Status    `json:"status" db:"status"`
}
