package tracking

import (
	"context"
	"errors"
	"time"

	"backend-fieldtrack/internal/db"
	"backend-fieldtrack/internal/location"
	"backend-fieldtrack/internal/route"
	"backend-fieldtrack/internal/shared/apperrors"
	"backend-fieldtrack/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

var nowFn = time.Now

const sessionCols = `id, user_id, attendance_id, role, check_in_time, check_out_time, status, to_char(session_date, 'YYYY-MM-DD'), auto_stopped`

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

// Start returns today's ACTIVE session for the user, creating one when none
// exists. A session already ENDED today cannot be restarted. The insert also
// seeds the user's live-location row, inactive until the first GPS update.
// A concurrent double-start loses on the (user_id, session_date) unique
// index; the boundary retry then lands on the return-existing path.
func (s *Service) Start(ctx context.Context, userID, role string, attendanceID *string) (Session, error) {
	today := s.today()

	sess, err := s.scanOne(s.db.QueryRow(ctx, `
		SELECT `+sessionCols+`
		FROM tracking_sessions
		WHERE user_id = $1 AND session_date = $2
	`, userID, today))
	if err == nil {
		if sess.Status == StatusActive {
			return sess, nil
		}
		return Session{}, apperrors.ErrSessionAlreadyEnded
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Session{}, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Session{}, err
	}
	defer tx.Rollback(ctx)

	sess = Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		AttendanceID: attendanceID,
		Role:         role,
		CheckInTime:  nowFn(),
		Status:       StatusActive,
		SessionDate:  today,
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO tracking_sessions (id, user_id, attendance_id, role, check_in_time, status, session_date, auto_stopped)
		VALUES ($1,$2,$3,$4,$5,$6,$7,false)
	`, sess.ID, sess.UserID, sess.AttendanceID, sess.Role, sess.CheckInTime, string(sess.Status), sess.SessionDate)
	if err != nil {
		return Session{}, err
	}

	if err := location.Upsert(ctx, tx, location.Position{UserID: userID, SessionID: sess.ID}); err != nil {
		return Session{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// ActiveSession returns today's session only while it is ACTIVE; a session
// that ended earlier today is not visible here.
func (s *Service) ActiveSession(ctx context.Context, userID string) (Session, error) {
	sess, err := s.scanOne(s.db.QueryRow(ctx, `
		SELECT `+sessionCols+`
		FROM tracking_sessions
		WHERE user_id = $1 AND session_date = $2 AND status = 'ACTIVE'
	`, userID, s.today()))
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, apperrors.ErrNoActiveSession
	}
	return sess, err
}

func (s *Service) ActiveSessionID(ctx context.Context, userID string) (string, error) {
	sess, err := s.ActiveSession(ctx, userID)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// End closes a session in one transaction: status flip, live-location
// deactivation and route summary upsert commit together or not at all.
// Ending a session that is no longer ACTIVE is a caller bug.
func (s *Service) End(ctx context.Context, sess Session, autoStopped bool) (route.Summary, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return route.Summary{}, err
	}
	defer tx.Rollback(ctx)

	checkOut := nowFn()
	tag, err := tx.Exec(ctx, `
		UPDATE tracking_sessions
		SET status = 'ENDED', check_out_time = $2, auto_stopped = $3
		WHERE id = $1 AND status = 'ACTIVE'
	`, sess.ID, checkOut, autoStopped)
	if err != nil {
		return route.Summary{}, err
	}
	if tag.RowsAffected() == 0 {
		return route.Summary{}, apperrors.ErrInvalidState
	}

	if err := location.Deactivate(ctx, tx, sess.UserID); err != nil {
		return route.Summary{}, err
	}

	summary, err := route.Generate(ctx, tx, route.SessionRef{
		ID:           sess.ID,
		UserID:       sess.UserID,
		CheckInTime:  sess.CheckInTime,
		CheckOutTime: &checkOut,
	})
	if err != nil {
		return route.Summary{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return route.Summary{}, err
	}
	return summary, nil
}

// Stop ends the caller's active session, failing when there is none. A valid
// final fix is recorded as the last known position before deactivation; the
// (0,0) sentinel and out-of-range pairs are silently dropped.
func (s *Service) Stop(ctx context.Context, userID string, lat, lng float64) (route.Summary, error) {
	sess, err := s.ActiveSession(ctx, userID)
	if err != nil {
		return route.Summary{}, err
	}
	if geo.ValidCoordinates(lat, lng) {
		err := location.Upsert(ctx, s.db, location.Position{
			UserID:    userID,
			SessionID: sess.ID,
			Lat:       lat,
			Lng:       lng,
			IsActive:  true,
		})
		if err != nil {
			return route.Summary{}, err
		}
	}
	return s.End(ctx, sess, false)
}

// CloseStale force-ends sessions left ACTIVE from a previous calendar day.
// Failures are logged per session so one bad row cannot block recovery of
// the rest. Returns the number of sessions closed.
func (s *Service) CloseStale(ctx context.Context) (int, error) {
	return s.closeBatch(ctx, `
		SELECT `+sessionCols+`
		FROM tracking_sessions
		WHERE status = 'ACTIVE' AND session_date < $1
	`, s.today())
}

// AutoStopAll force-ends every ACTIVE session, the daily cutoff sweep.
func (s *Service) AutoStopAll(ctx context.Context) (int, error) {
	return s.closeBatch(ctx, `
		SELECT `+sessionCols+`
		FROM tracking_sessions
		WHERE status = 'ACTIVE'
	`)
}

func (s *Service) closeBatch(ctx context.Context, query string, args ...any) (int, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := s.scanOne(rows)
		if err != nil {
			return 0, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	closed := 0
	for _, sess := range sessions {
		if _, err := s.End(ctx, sess, true); err != nil {
			log.Error().Err(err).Str("session_id", sess.ID).Str("user_id", sess.UserID).
				Msg("auto-stop failed")
			continue
		}
		closed++
	}
	return closed, nil
}

func (s *Service) scanOne(row pgx.Row) (Session, error) {
	var sess Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.AttendanceID, &sess.Role,
		&sess.CheckInTime, &sess.CheckOutTime, &sess.Status, &sess.SessionDate, &sess.AutoStopped)
	return sess, err
}
