package tracking

import (
	"context"
	"time"
)

// Status is the session state machine: ACTIVE -> ENDED, no reopening.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusEnded  Status = "ENDED"
)

// Session is the authoritative "on duty and trackable" record for one user
// on one calendar day.
type Session struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	AttendanceID *string    `json:"attendance_id,omitempty"`
	Role         string     `json:"role"`
	CheckInTime  time.Time  `json:"check_in_time"`
	CheckOutTime *time.Time `json:"check_out_time,omitempty"`
	Status       Status     `json:"status"`
	SessionDate  string     `json:"session_date"`
	AutoStopped  bool       `json:"auto_stopped"`
}

// OpenVisit is the slice of an unfinished visit surfaced by the session
// status endpoint.
type OpenVisit struct {
	ID           string    `json:"id"`
	SequenceNo   int       `json:"sequence_no"`
	CustomerName string    `json:"customer_name"`
	StartTime    time.Time `json:"start_time"`
}

// VisitLookup resolves the highest-sequence open visit of a session, nil
// when every visit is closed.
type VisitLookup interface {
	OpenVisit(ctx context.Context, sessionID string) (*OpenVisit, error)
}
