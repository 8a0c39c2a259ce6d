package visit

import (
	"context"
	"errors"
	"time"

	"backend-fieldtrack/internal/db"
	"backend-fieldtrack/internal/location"
	"backend-fieldtrack/internal/shared/apperrors"
	"backend-fieldtrack/internal/shared/geo"
	"backend-fieldtrack/internal/tracking"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var nowFn = time.Now

const visitCols = `id, session_id, user_id, sequence_no, customer_name, COALESCE(notes,''), latitude, longitude, accuracy_m,
	COALESCE(address,''), COALESCE(visit_type,''), start_time, end_time, end_latitude, end_longitude, distance_from_prev_km`

type Service struct {
	db db.DB
	tz *time.Location
}

func NewService(database db.DB, tz *time.Location) *Service {
	if tz == nil {
		tz = time.Local
	}
	return &Service{db: database, tz: tz}
}

func (s *Service) today() string {
	return nowFn().In(s.tz).Format("2006-01-02")
}

// CheckIn records the next stop in a session. The session row is locked
// before the max-sequence read so concurrent check-ins from the same device
// serialize instead of colliding on a sequence number. The stored distance
// is the great-circle increment from the previous visit, 0 for the first.
func (s *Service) CheckIn(ctx context.Context, sessionID, userID string, req CheckInRequest) (VisitLog, error) {
	if !geo.ValidCoordinates(req.Latitude, req.Longitude) {
		return VisitLog{}, apperrors.ErrInvalidCoordinates
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return VisitLog{}, err
	}
	defer tx.Rollback(ctx)

	var lockedID string
	err = tx.QueryRow(ctx, `SELECT id FROM tracking_sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&lockedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return VisitLog{}, apperrors.ErrNoActiveSession
	}
	if err != nil {
		return VisitLog{}, err
	}

	var prevSeq int
	var prevLat, prevLng float64
	err = tx.QueryRow(ctx, `
		SELECT sequence_no, latitude, longitude
		FROM visit_logs
		WHERE session_id = $1
		ORDER BY sequence_no DESC
		LIMIT 1
	`, sessionID).Scan(&prevSeq, &prevLat, &prevLng)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return VisitLog{}, err
	}

	v := VisitLog{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		UserID:       userID,
		SequenceNo:   prevSeq + 1,
		CustomerName: req.CustomerName,
		Notes:        req.Notes,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		AccuracyM:    req.AccuracyM,
		Address:      req.Address,
		VisitType:    req.VisitType,
		StartTime:    nowFn(),
	}
	if prevSeq > 0 {
		v.DistanceFromPrevKm = geo.RoundKm(geo.HaversineKm(prevLat, prevLng, v.Latitude, v.Longitude))
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO visit_logs (id, session_id, user_id, sequence_no, customer_name, notes, latitude, longitude,
			accuracy_m, address, visit_type, start_time, distance_from_prev_km)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, v.ID, v.SessionID, v.UserID, v.SequenceNo, v.CustomerName, v.Notes, v.Latitude, v.Longitude,
		v.AccuracyM, v.Address, v.VisitType, v.StartTime, v.DistanceFromPrevKm)
	if err != nil {
		return VisitLog{}, err
	}

	// A check-in is also the freshest position we have.
	err = location.Upsert(ctx, tx, location.Position{
		UserID:    userID,
		SessionID: sessionID,
		Lat:       v.Latitude,
		Lng:       v.Longitude,
		AccuracyM: v.AccuracyM,
		IsActive:  true,
	})
	if err != nil {
		return VisitLog{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return VisitLog{}, err
	}
	return v, nil
}

// CheckOut stamps the end of the caller's open visit. End coordinates are a
// soft field, stored only when they pass validation; a valid pair also
// refreshes the live position.
func (s *Service) CheckOut(ctx context.Context, userID string, req CheckOutRequest) (VisitLog, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return VisitLog{}, err
	}
	defer tx.Rollback(ctx)

	endAt := nowFn()
	var endLat, endLng *float64
	if geo.ValidCoordinates(req.Latitude, req.Longitude) {
		endLat, endLng = &req.Latitude, &req.Longitude
	}

	v, err := scanVisit(tx.QueryRow(ctx, `
		UPDATE visit_logs
		SET end_time = $3, end_latitude = $4, end_longitude = $5
		WHERE id = $1 AND user_id = $2 AND end_time IS NULL
		RETURNING `+visitCols+`
	`, req.VisitID, userID, endAt, endLat, endLng))
	if errors.Is(err, pgx.ErrNoRows) {
		return VisitLog{}, apperrors.ErrVisitNotFound
	}
	if err != nil {
		return VisitLog{}, err
	}

	if endLat != nil {
		err = location.Upsert(ctx, tx, location.Position{
			UserID:    userID,
			SessionID: v.SessionID,
			Lat:       *endLat,
			Lng:       *endLng,
			IsActive:  true,
		})
		if err != nil {
			return VisitLog{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return VisitLog{}, err
	}
	return v, nil
}

// OpenVisit implements the session-status lookup: the highest-sequence
// visit still missing an end time, nil when everything is closed.
func (s *Service) OpenVisit(ctx context.Context, sessionID string) (*tracking.OpenVisit, error) {
	var ov tracking.OpenVisit
	err := s.db.QueryRow(ctx, `
		SELECT id, sequence_no, customer_name, start_time
		FROM visit_logs
		WHERE session_id = $1 AND end_time IS NULL
		ORDER BY sequence_no DESC
		LIMIT 1
	`, sessionID).Scan(&ov.ID, &ov.SequenceNo, &ov.CustomerName, &ov.StartTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ov, nil
}

// SessionVisits returns a session's visits in sequence order.
func (s *Service) SessionVisits(ctx context.Context, sessionID string) ([]VisitLog, error) {
	return s.listVisits(ctx, `
		SELECT `+visitCols+`
		FROM visit_logs
		WHERE session_id = $1
		ORDER BY sequence_no
	`, sessionID)
}

// TodayVisits returns the caller's visits for today with running totals.
func (s *Service) TodayVisits(ctx context.Context, userID string) (DayVisits, error) {
	today := s.today()
	visits, err := s.listVisits(ctx, `
		SELECT v.id, v.session_id, v.user_id, v.sequence_no, v.customer_name, COALESCE(v.notes,''), v.latitude, v.longitude, v.accuracy_m,
			COALESCE(v.address,''), COALESCE(v.visit_type,''), v.start_time, v.end_time, v.end_latitude, v.end_longitude, v.distance_from_prev_km
		FROM visit_logs v
		JOIN tracking_sessions ts ON ts.id = v.session_id
		WHERE ts.user_id = $1 AND ts.session_date = $2
		ORDER BY v.sequence_no
	`, userID, today)
	if err != nil {
		return DayVisits{}, err
	}

	day := DayVisits{Date: today, Visits: visits, TotalVisits: len(visits)}
	for _, v := range visits {
		day.TotalDistanceKm += v.DistanceFromPrevKm
	}
	day.TotalDistanceKm = geo.RoundKm(day.TotalDistanceKm)
	return day, nil
}

// History returns the caller's most recent visits across sessions.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]VisitLog, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return s.listVisits(ctx, `
		SELECT `+visitCols+`
		FROM visit_logs
		WHERE user_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, userID, limit)
}

func (s *Service) listVisits(ctx context.Context, query string, args ...any) ([]VisitLog, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	visits := []VisitLog{}
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

func scanVisit(row pgx.Row) (VisitLog, error) {
	var v VisitLog
	err := row.Scan(&v.ID, &v.SessionID, &v.UserID, &v.SequenceNo, &v.CustomerName, &v.Notes,
		&v.Latitude, &v.Longitude, &v.AccuracyM, &v.Address, &v.VisitType,
		&v.StartTime, &v.EndTime, &v.EndLatitude, &v.EndLongitude, &v.DistanceFromPrevKm)
	return v, err
}
