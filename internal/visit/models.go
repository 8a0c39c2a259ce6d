package visit

import "time"

// VisitLog is an immutable-once-closed record of a stop within a session.
// Sequence numbers are 1-based and gapless per session.
type VisitLog struct {
	ID                 string     `json:"id"`
	SessionID          string     `json:"session_id"`
	UserID             string     `json:"user_id"`
	SequenceNo         int        `json:"sequence_no"`
	CustomerName       string     `json:"customer_name"`
	Notes              string     `json:"notes,omitempty"`
	Latitude           float64    `json:"latitude"`
	Longitude          float64    `json:"longitude"`
	AccuracyM          float64    `json:"accuracy_m"`
	Address            string     `json:"address,omitempty"`
	VisitType          string     `json:"visit_type,omitempty"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            *time.Time `json:"end_time,omitempty"`
	EndLatitude        *float64   `json:"end_latitude,omitempty"`
	EndLongitude       *float64   `json:"end_longitude,omitempty"`
	DistanceFromPrevKm float64    `json:"distance_from_prev_km"`
}

type CheckInRequest struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	AccuracyM    float64 `json:"accuracy_m"`
	CustomerName string  `json:"customer_name"`
	Notes        string  `json:"notes"`
	Address      string  `json:"address"`
	VisitType    string  `json:"visit_type"`
}

type CheckOutRequest struct {
	VisitID   string  `json:"visit_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DayVisits is one user's visit list for a calendar day with totals.
type DayVisits struct {
	Date            string     `json:"date"`
	TotalVisits     int        `json:"total_visits"`
	TotalDistanceKm float64    `json:"total_distance_km"`
	Visits          []VisitLog `json:"visits"`
}
