package attendance

import "time"

// Attendance is the minimal daily check-in/out record. For field roles a
// check-in also auto-starts the day's tracking session, linked back here
// through the session's attendance id.
type Attendance struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Date         string     `json:"date"`
	CheckInTime  time.Time  `json:"check_in_time"`
	CheckOutTime *time.Time `json:"check_out_time,omitempty"`
}
