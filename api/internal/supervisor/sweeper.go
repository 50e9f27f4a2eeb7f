package supervisor

import (
	"context"
	"log/slog"
	"time"

	"screen-bot/api/internal/metrics"
	"screen-bot/api/internal/session"
)

// Sweeper purges expired sessions on a fixed period.
type Sweeper struct {
	Store    *session.Store
	Timeout  time.Duration
	Interval time.Duration
	Metrics  *metrics.Metrics
	Log      *slog.Logger
	Now      func() time.Time
}

// Run sweeps every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce runs one pass and returns the number of released artifacts.
func (s *Sweeper) SweepOnce() int {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	released, err := s.Store.SweepExpired(now, s.Timeout)
	if err != nil {
		// per-artifact failures are already logged by the store
		s.Log.Warn("sweep finished with errors", "error", err)
	}
	live := s.Store.Len()
	s.Metrics.Swept(len(released), live)
	if len(released) > 0 {
		s.Log.Info("sweep", "released", len(released), "sessions", live)
	}
	return len(released)
}
