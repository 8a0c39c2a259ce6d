package route

import "time"

// SessionRef is the slice of a tracking session the generator needs:
// identity plus the time-span fallbacks used when a session has no visits.
type SessionRef struct {
	ID           string
	UserID       string
	CheckInTime  time.Time
	CheckOutTime *time.Time
}

type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Summary is the derived per-session aggregate, upserted on session end and
// recomputable on demand for a still-open session.
type Summary struct {
	SessionID       string     `json:"session_id"`
	UserID          string     `json:"user_id"`
	TotalVisits     int        `json:"total_visits"`
	TotalDistanceKm float64    `json:"total_distance_km"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	Polyline        []LatLng   `json:"polyline"`
	GeneratedAt     time.Time  `json:"generated_at"`
}

// VisitPoint is the visit projection returned with an admin route read.
type VisitPoint struct {
	ID                 string     `json:"id"`
	SequenceNo         int        `json:"sequence_no"`
	CustomerName       string     `json:"customer_name"`
	Notes              string     `json:"notes,omitempty"`
	Latitude           float64    `json:"latitude"`
	Longitude          float64    `json:"longitude"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            *time.Time `json:"end_time,omitempty"`
	DistanceFromPrevKm float64    `json:"distance_from_prev_km"`
}

type SalesmanInfo struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Detail is the full admin view of one user's day on the road.
type Detail struct {
	Salesman SalesmanInfo `json:"salesman"`
	Summary  Summary      `json:"summary"`
	Visits   []VisitPoint `json:"visits"`
}

// DailyRoute is one row of the "today's routes" admin overview.
type DailyRoute struct {
	UserID          string     `json:"user_id"`
	FullName        string     `json:"full_name"`
	Role            string     `json:"role"`
	Status          string     `json:"status"`
	CheckInTime     time.Time  `json:"check_in_time"`
	CheckOutTime    *time.Time `json:"check_out_time,omitempty"`
	TotalVisits     int        `json:"total_visits"`
	TotalDistanceKm float64    `json:"total_distance_km"`
}
