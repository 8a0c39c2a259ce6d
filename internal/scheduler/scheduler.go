package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

var nowFn = time.Now

// SessionCloser is the slice of the session store the scheduler drives.
type SessionCloser interface {
	CloseStale(ctx context.Context) (int, error)
	AutoStopAll(ctx context.Context) (int, error)
}

// Scheduler owns the two time-driven jobs: stale-session recovery at
// startup and the daily forced cutoff at a fixed wall-clock time.
type Scheduler struct {
	closer SessionCloser
	tz     *time.Location
	hour   int
	minute int
}

// New parses cutoff as "HH:MM" business-local time, falling back to 18:30
// when malformed.
func New(closer SessionCloser, tz *time.Location, cutoff string) *Scheduler {
	if tz == nil {
		tz = time.Local
	}
	s := &Scheduler{closer: closer, tz: tz, hour: 18, minute: 30}
	if t, err := time.Parse("15:04", cutoff); err == nil {
		s.hour, s.minute = t.Hour(), t.Minute()
	} else if cutoff != "" {
		log.Warn().Str("cutoff", cutoff).Msg("invalid cutoff time, using 18:30")
	}
	return s
}

// Run recovers stale sessions once, then sleeps until each day's cutoff and
// force-ends whatever is still active. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if n, err := s.closer.CloseStale(ctx); err != nil {
		log.Error().Err(err).Msg("stale session recovery failed")
	} else if n > 0 {
		log.Info().Int("closed", n).Msg("recovered stale sessions")
	}

	for {
		next := s.nextCutoff(nowFn().In(s.tz))
		timer := time.NewTimer(next.Sub(nowFn()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if n, err := s.closer.AutoStopAll(ctx); err != nil {
				log.Error().Err(err).Msg("daily cutoff sweep failed")
			} else {
				log.Info().Int("closed", n).Msg("daily cutoff sweep done")
			}
		}
	}
}

func (s *Scheduler) nextCutoff(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, s.tz)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
