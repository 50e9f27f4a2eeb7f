// Package supervisor owns the process lifetime: connecting to Telegram,
// polling, the expiry sweep, the HTTP side server and graceful shutdown.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"screen-bot/api/internal/telegram"
)

type Supervisor struct {
	Updates    Updater
	Dispatcher *telegram.Dispatcher
	Sweeper    *Sweeper
	HTTP       *http.Server // optional

	// ShutdownGrace bounds the wait for in-flight handlers.
	ShutdownGrace time.Duration
	Log           *slog.Logger
}

// Run blocks until ctx is cancelled or a component fails. On return no new
// update is accepted; handlers already running get ShutdownGrace to finish
// and are never cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return Poll(gctx, s.Updates, s.Dispatcher.Dispatch, s.Log.With("component", "poll"))
	})
	g.Go(func() error {
		return s.Sweeper.Run(gctx)
	})
	if s.HTTP != nil {
		g.Go(func() error {
			s.Log.Info("http listening", "addr", s.HTTP.Addr)
			if err := s.HTTP.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return s.HTTP.Shutdown(sctx)
		})
	}

	err := g.Wait()

	s.Log.Info("shutting down, waiting for running handlers", "grace", s.ShutdownGrace)
	s.Dispatcher.Close()
	if !s.Dispatcher.Wait(s.ShutdownGrace) {
		s.Log.Warn("handlers still running after grace period")
	}
	return err
}
