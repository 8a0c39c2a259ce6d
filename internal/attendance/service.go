package attendance

import (
	"context"
	"errors"
	"time"

	"backend-fieldtrack/internal/auth"
	"backend-fieldtrack/internal/db"
	"backend-fieldtrack/internal/shared/apperrors"
	"backend-fieldtrack/internal/tracking"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

var nowFn = time.Now

// SessionStarter auto-starts the day's tracking session on a field-role
// check-in.
type SessionStarter interface {
	Start(ctx context.Context, userID, role string, attendanceID *string) (tracking.Session, error)
}

type Service struct {
	db      db.Querier
	tz      *time.Location
	starter SessionStarter
}

func NewService(database db.Querier, tz *time.Location, starter SessionStarter) *Service {
	if tz == nil {
		tz = time.Local
	}
	return &Service{db: database, tz: tz, starter: starter}
}

func (s *Service) today() string {
	return nowFn().In(s.tz).Format("2006-01-02")
}

// CheckIn records today's attendance, returning the existing record when
// the user already checked in. Field roles additionally get their tracking
// session started; a session that already ran its course today is logged
// and ignored, attendance itself still succeeds.
func (s *Service) CheckIn(ctx context.Context, userID string, role auth.Role) (Attendance, *tracking.Session, error) {
	today := s.today()

	att, err := s.scanOne(s.db.QueryRow(ctx, `
		SELECT id, user_id, to_char(date, 'YYYY-MM-DD'), check_in_time, check_out_time
		FROM attendances
		WHERE user_id = $1 AND date = $2
	`, userID, today))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Attendance{}, nil, err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		att = Attendance{
			ID:          uuid.NewString(),
			UserID:      userID,
			Date:        today,
			CheckInTime: nowFn(),
		}
		_, err = s.db.Exec(ctx, `
			INSERT INTO attendances (id, user_id, date, check_in_time)
			VALUES ($1,$2,$3,$4)
		`, att.ID, att.UserID, att.Date, att.CheckInTime)
		if err != nil {
			return Attendance{}, nil, err
		}
	}

	if s.starter == nil || !role.IsField() {
		return att, nil, nil
	}
	sess, err := s.starter.Start(ctx, userID, string(role), &att.ID)
	if err != nil {
		if apperrors.IsDomain(err) {
			log.Info().Err(err).Str("user_id", userID).Msg("session not auto-started")
			return att, nil, nil
		}
		return Attendance{}, nil, err
	}
	return att, &sess, nil
}

// CheckOut stamps today's attendance closed.
func (s *Service) CheckOut(ctx context.Context, userID string) (Attendance, error) {
	att, err := s.scanOne(s.db.QueryRow(ctx, `
		UPDATE attendances
		SET check_out_time = $3
		WHERE user_id = $1 AND date = $2 AND check_out_time IS NULL
		RETURNING id, user_id, to_char(date, 'YYYY-MM-DD'), check_in_time, check_out_time
	`, userID, s.today(), nowFn()))
	if errors.Is(err, pgx.ErrNoRows) {
		return Attendance{}, apperrors.ErrNotFound
	}
	return att, err
}

// Today returns the caller's attendance record for today.
func (s *Service) Today(ctx context.Context, userID string) (Attendance, error) {
	att, err := s.scanOne(s.db.QueryRow(ctx, `
		SELECT id, user_id, to_char(date, 'YYYY-MM-DD'), check_in_time, check_out_time
		FROM attendances
		WHERE user_id = $1 AND date = $2
	`, userID, s.today()))
	if errors.Is(err, pgx.ErrNoRows) {
		return Attendance{}, apperrors.ErrNotFound
	}
	return att, err
}

func (s *Service) scanOne(row pgx.Row) (Attendance, error) {
	var att Attendance
	err := row.Scan(&att.ID, &att.UserID, &att.Date, &att.CheckInTime, &att.CheckOutTime)
	return att, err
}
