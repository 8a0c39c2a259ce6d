package location

import "time"

// Position is the single "where is this person right now" row per user.
type Position struct {
	UserID      string    `json:"user_id"`
	SessionID   string    `json:"session_id"`
	Lat         float64   `json:"latitude"`
	Lng         float64   `json:"longitude"`
	AccuracyM   float64   `json:"accuracy_m"`
	IsActive    bool      `json:"is_active"`
	LastUpdated time.Time `json:"last_updated"`
}

// Marker is a position joined with the identity attributes the admin map
// displays.
type Marker struct {
	Position
	FullName    string     `json:"full_name"`
	Username    string     `json:"username"`
	PhotoURL    string     `json:"photo_url,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	CheckInTime *time.Time `json:"check_in_time,omitempty"`
}

type UpdateRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	AccuracyM float64 `json:"accuracy_m"`
}
