package route

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"backend-fieldtrack/internal/db"
	"backend-fieldtrack/internal/shared/apperrors"
	"backend-fieldtrack/internal/shared/geo"

	"github.com/jackc/pgx/v5"
)

var nowFn = time.Now

// Generate derives the route summary for one session from its ordered
// visits and upserts the route_summaries row. Distances are the stored
// per-visit increments, never recomputed. Exposed as a package function so
// the session-end transaction can run it against its own tx.
func Generate(ctx context.Context, q db.Querier, ref SessionRef) (Summary, error) {
	s, err := summarize(ctx, q, ref)
	if err != nil {
		return Summary{}, err
	}

	polyline, err := json.Marshal(s.Polyline)
	if err != nil {
		return Summary{}, err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO route_summaries (session_id, user_id, total_visits, total_distance_km, start_time, end_time, polyline, generated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (session_id) DO UPDATE SET
			total_visits = EXCLUDED.total_visits,
			total_distance_km = EXCLUDED.total_distance_km,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			polyline = EXCLUDED.polyline,
			generated_at = EXCLUDED.generated_at
	`, s.SessionID, s.UserID, s.TotalVisits, s.TotalDistanceKm, s.StartTime, s.EndTime, polyline, s.GeneratedAt)
	if err != nil {
		return Summary{}, err
	}
	return s, nil
}

// summarize computes the summary values without touching route_summaries,
// so in-progress sessions can be previewed without freezing a stale row.
func summarize(ctx context.Context, q db.Querier, ref SessionRef) (Summary, error) {
	rows, err := q.Query(ctx, `
		SELECT latitude, longitude, start_time, end_time, distance_from_prev_km
		FROM visit_logs
		WHERE session_id = $1
		ORDER BY sequence_no
	`, ref.ID)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()

	s := Summary{
		SessionID:   ref.ID,
		UserID:      ref.UserID,
		Polyline:    []LatLng{},
		GeneratedAt: nowFn(),
	}

	var lastStart time.Time
	var lastEnd *time.Time
	for rows.Next() {
		var lat, lng, dist float64
		var start time.Time
		var end *time.Time
		if err := rows.Scan(&lat, &lng, &start, &end, &dist); err != nil {
			return Summary{}, err
		}
		if s.TotalVisits == 0 {
			first := start
			s.StartTime = &first
		}
		s.TotalVisits++
		s.TotalDistanceKm += dist
		s.Polyline = append(s.Polyline, LatLng{Latitude: lat, Longitude: lng})
		lastStart, lastEnd = start, end
	}
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}

	if s.TotalVisits == 0 {
		start := ref.CheckInTime
		s.StartTime = &start
		s.EndTime = ref.CheckOutTime
	} else if lastEnd != nil {
		s.EndTime = lastEnd
	} else {
		end := lastStart
		s.EndTime = &end
	}
	s.TotalDistanceKm = geo.RoundKm(s.TotalDistanceKm)
	return s, nil
}

type Service struct {
	db db.Querier
	tz *time.Location
}

func NewService(database db.Querier, tz *time.Location) *Service {
	if tz == nil {
		tz = time.Local
	}
	return &Service{db: database, tz: tz}
}

func (s *Service) today() string {
	return nowFn().In(s.tz).Format("2006-01-02")
}

// ForUserDate assembles the admin route view for one user and date. While
// the session is still ACTIVE the summary is computed live from the visits;
// ended sessions are served from the stored route_summaries row.
func (s *Service) ForUserDate(ctx context.Context, userID, date string) (Detail, error) {
	if date == "" {
		date = s.today()
	}

	var info SalesmanInfo
	err := s.db.QueryRow(ctx, `
		SELECT id, full_name, username, COALESCE(phone,''), email, role
		FROM users WHERE id = $1
	`, userID).Scan(&info.ID, &info.FullName, &info.Username, &info.Phone, &info.Email, &info.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return Detail{}, apperrors.ErrNotFound
	}
	if err != nil {
		return Detail{}, err
	}

	var ref SessionRef
	var status string
	err = s.db.QueryRow(ctx, `
		SELECT id, user_id, check_in_time, check_out_time, status
		FROM tracking_sessions
		WHERE user_id = $1 AND session_date = $2
	`, userID, date).Scan(&ref.ID, &ref.UserID, &ref.CheckInTime, &ref.CheckOutTime, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Detail{}, apperrors.ErrNotFound
	}
	if err != nil {
		return Detail{}, err
	}

	// An open session is always computed live so the view keeps up with new
	// visits; the stored row is only trusted once the session has ended.
	var summary Summary
	if status == "ACTIVE" {
		summary, err = summarize(ctx, s.db, ref)
	} else {
		summary, err = s.loadSummary(ctx, ref)
	}
	if err != nil {
		return Detail{}, err
	}

	visits, err := s.sessionVisits(ctx, ref.ID)
	if err != nil {
		return Detail{}, err
	}

	return Detail{Salesman: info, Summary: summary, Visits: visits}, nil
}

func (s *Service) loadSummary(ctx context.Context, ref SessionRef) (Summary, error) {
	var sum Summary
	var polyline []byte
	err := s.db.QueryRow(ctx, `
		SELECT session_id, user_id, total_visits, total_distance_km, start_time, end_time, polyline, generated_at
		FROM route_summaries WHERE session_id = $1
	`, ref.ID).Scan(&sum.SessionID, &sum.UserID, &sum.TotalVisits, &sum.TotalDistanceKm,
		&sum.StartTime, &sum.EndTime, &polyline, &sum.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Generate(ctx, s.db, ref)
	}
	if err != nil {
		return Summary{}, err
	}
	if err := json.Unmarshal(polyline, &sum.Polyline); err != nil {
		return Summary{}, err
	}
	return sum, nil
}

func (s *Service) sessionVisits(ctx context.Context, sessionID string) ([]VisitPoint, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, sequence_no, customer_name, COALESCE(notes,''), latitude, longitude, start_time, end_time, distance_from_prev_km
		FROM visit_logs
		WHERE session_id = $1
		ORDER BY sequence_no
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	visits := []VisitPoint{}
	for rows.Next() {
		var v VisitPoint
		if err := rows.Scan(&v.ID, &v.SequenceNo, &v.CustomerName, &v.Notes,
			&v.Latitude, &v.Longitude, &v.StartTime, &v.EndTime, &v.DistanceFromPrevKm); err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// AllToday returns the per-user overview of today's sessions: visit counts,
// distance so far and time spans, including still-active sessions.
func (s *Service) AllToday(ctx context.Context) ([]DailyRoute, error) {
	rows, err := s.db.Query(ctx, `
		SELECT ts.user_id, u.full_name, u.role, ts.status, ts.check_in_time, ts.check_out_time,
		       COUNT(v.id), COALESCE(SUM(v.distance_from_prev_km), 0)
		FROM tracking_sessions ts
		JOIN users u ON u.id = ts.user_id
		LEFT JOIN visit_logs v ON v.session_id = ts.id
		WHERE ts.session_date = $1
		GROUP BY ts.user_id, u.full_name, u.role, ts.status, ts.check_in_time, ts.check_out_time
		ORDER BY u.full_name
	`, s.today())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	routes := []DailyRoute{}
	for rows.Next() {
		var r DailyRoute
		if err := rows.Scan(&r.UserID, &r.FullName, &r.Role, &r.Status, &r.CheckInTime, &r.CheckOutTime,
			&r.TotalVisits, &r.TotalDistanceKm); err != nil {
			return nil, err
		}
		r.TotalDistanceKm = geo.RoundKm(r.TotalDistanceKm)
		routes = append(routes, r)
	}
	return routes, rows.Err()
}
