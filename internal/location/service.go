package location

import (
	"context"
	"encoding/json"
	"time"

	"backend-fieldtrack/internal/auth"
	"backend-fieldtrack/internal/db"
	"backend-fieldtrack/internal/shared/apperrors"
	"backend-fieldtrack/internal/shared/geo"
	"backend-fieldtrack/internal/stream"
)

// Upsert writes the single live-position row for a user, last writer wins.
// Exposed as a package function so session and visit transactions can run
// it against their own tx.
func Upsert(ctx context.Context, q db.Querier, p Position) error {
	_, err := q.Exec(ctx, `
		INSERT INTO live_locations (user_id, session_id, latitude, longitude, accuracy_m, is_active, last_updated)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			accuracy_m = EXCLUDED.accuracy_m,
			is_active = EXCLUDED.is_active,
			last_updated = NOW()
	`, p.UserID, p.SessionID, p.Lat, p.Lng, p.AccuracyM, p.IsActive)
	return err
}

// Deactivate flips is_active off, keeping the last known position around
// for display-as-stale.
func Deactivate(ctx context.Context, q db.Querier, userID string) error {
	_, err := q.Exec(ctx, `
		UPDATE live_locations
		SET is_active = false, last_updated = NOW()
		WHERE user_id = $1
	`, userID)
	return err
}

type Service struct {
	db  db.Querier
	hub *stream.Hub
}

func NewService(database db.Querier, hub *stream.Hub) *Service {
	return &Service{db: database, hub: hub}
}

// Update validates and stores a live position, then pushes it to map
// watchers. An exact (0,0) pair is the clients' no-fix sentinel and is
// rejected before any write.
func (s *Service) Update(ctx context.Context, userID, sessionID string, req UpdateRequest) (Position, error) {
	if !geo.ValidCoordinates(req.Latitude, req.Longitude) {
		return Position{}, apperrors.ErrInvalidCoordinates
	}

	p := Position{
		UserID:      userID,
		SessionID:   sessionID,
		Lat:         req.Latitude,
		Lng:         req.Longitude,
		AccuracyM:   req.AccuracyM,
		IsActive:    true,
		LastUpdated: time.Now(),
	}
	if err := Upsert(ctx, s.db, p); err != nil {
		return Position{}, err
	}

	s.Broadcast(p)
	return p, nil
}

// Stop marks the caller's live position inactive without ending the session.
func (s *Service) Stop(ctx context.Context, userID string) error {
	return Deactivate(ctx, s.db, userID)
}

// ListActive returns one marker per currently-active user for the admin
// map, newest update first. An empty or "ALL" role filter returns everyone.
func (s *Service) ListActive(ctx context.Context, roleFilter string) ([]Marker, error) {
	query := `
		SELECT ll.user_id, ll.session_id, ll.latitude, ll.longitude, ll.accuracy_m, ll.is_active, ll.last_updated,
		       u.full_name, u.username, COALESCE(u.photo_url,''), COALESCE(u.phone,''), u.email, u.role,
		       ts.check_in_time
		FROM live_locations ll
		JOIN users u ON ll.user_id = u.id
		LEFT JOIN tracking_sessions ts ON ll.session_id = ts.id
		WHERE ll.is_active = true`
	args := []any{}
	if roleFilter != "" && roleFilter != "ALL" {
		role, err := auth.ParseRole(roleFilter)
		if err != nil {
			return nil, err
		}
		query += ` AND u.role = $1`
		args = append(args, string(role))
	}
	query += ` ORDER BY ll.last_updated DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markers []Marker
	for rows.Next() {
		var m Marker
		if err := rows.Scan(&m.UserID, &m.SessionID, &m.Lat, &m.Lng, &m.AccuracyM, &m.IsActive, &m.LastUpdated,
			&m.FullName, &m.Username, &m.PhotoURL, &m.Phone, &m.Email, &m.Role, &m.CheckInTime); err != nil {
			return nil, err
		}
		markers = append(markers, m)
	}
	return markers, rows.Err()
}

// Broadcast pushes a position update onto the live map feed.
func (s *Service) Broadcast(p Position) {
	if s.hub == nil {
		return
	}
	payload, _ := json.Marshal(p)
	s.hub.Broadcast(stream.LiveChannel, payload)
}
