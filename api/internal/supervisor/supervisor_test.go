package supervisor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-bot/api/internal/capture"
	"screen-bot/api/internal/logger"
	"screen-bot/api/internal/metrics"
	"screen-bot/api/internal/session"
	"screen-bot/api/internal/telegram"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, logger.Noop(), func() error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	boom := errors.New("unauthorized")
	err := Retry(context.Background(), 4, time.Millisecond, logger.Noop(), func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, ErrTransportConnect)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, calls)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, 10, time.Hour, logger.Noop(), func() error {
		calls++
		cancel()
		return errors.New("timeout")
	})
	assert.ErrorIs(t, err, ErrTransportConnect)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestSweepOnce(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	st := session.NewStore(session.Options{Now: clock, Logger: logger.Noop()})

	p := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	_, err := st.Put(1, 1, 2, capture.Artifact{Path: p})
	require.NoError(t, err)

	m := metrics.New()
	sw := &Sweeper{Store: st, Timeout: 30 * time.Minute, Interval: time.Minute, Metrics: m, Log: logger.Noop(), Now: clock}

	assert.Equal(t, 0, sw.SweepOnce())
	now = now.Add(31 * time.Minute)
	assert.Equal(t, 1, sw.SweepOnce())

	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 0, st.Len())
	assert.Equal(t, 1.0, gathered(t, m, "screenbot_swept_artifacts_total"))
	assert.Equal(t, 0.0, gathered(t, m, "screenbot_sessions"))
}

func gathered(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	mfs, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, mt := range mf.GetMetric() {
			if c := mt.GetCounter(); c != nil {
				return c.GetValue()
			}
			if g := mt.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

type fakeUpdater struct {
	mu      sync.Mutex
	batches [][]tgbotapi.Update
	errs    []error
	offsets []int
}

func (f *fakeUpdater) GetUpdates(c tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.mu.Lock()
	f.offsets = append(f.offsets, c.Offset)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		f.mu.Unlock()
		return nil, err
	}
	if len(f.batches) > 0 {
		b := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return b, nil
	}
	f.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	return nil, nil
}

func (f *fakeUpdater) seenOffsets() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.offsets...)
}

func TestPollAdvancesOffset(t *testing.T) {
	up := &fakeUpdater{
		errs:    []error{errors.New("Too Many Requests: retry after 1")},
		batches: [][]tgbotapi.Update{{{UpdateID: 10}, {UpdateID: 11}}, {{UpdateID: 12}}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	var got []int
	done := make(chan error, 1)
	go func() {
		done <- Poll(ctx, up, func(u tgbotapi.Update) bool {
			got = append(got, u.UpdateID)
			if u.UpdateID == 12 {
				cancel()
			}
			return true
		}, logger.Noop())
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("poll did not stop")
	}
	assert.Equal(t, []int{10, 11, 12}, got)
	assert.Equal(t, []int{0, 0, 12}, up.seenOffsets()[:3])
}

func TestPollStopsWhenHandlerRefuses(t *testing.T) {
	up := &fakeUpdater{batches: [][]tgbotapi.Update{{{UpdateID: 1}, {UpdateID: 2}}}}
	var n int
	err := Poll(context.Background(), up, func(tgbotapi.Update) bool {
		n++
		return false
	}, logger.Noop())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunWaitsForInFlightHandlers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var finished atomic.Bool
	started := make(chan struct{})

	d := telegram.NewDispatcher(ctx, func(hctx context.Context, _ tgbotapi.Update) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		if hctx.Err() == nil {
			finished.Store(true)
		}
	}, logger.Noop())

	sv := &Supervisor{
		Updates: &fakeUpdater{batches: [][]tgbotapi.Update{{{
			UpdateID: 1,
			Message:  &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, From: &tgbotapi.User{ID: 1}},
		}}}},
		Dispatcher: d,
		Sweeper: &Sweeper{
			Store:    session.NewStore(session.Options{Logger: logger.Noop()}),
			Timeout:  time.Minute,
			Interval: time.Hour,
			Log:      logger.Noop(),
		},
		ShutdownGrace: 5 * time.Second,
		Log:           logger.Noop(),
	}

	done := make(chan error, 1)
	go func() { done <- sv.Run(ctx) }()

	<-started
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.True(t, finished.Load())
	assert.False(t, d.Dispatch(tgbotapi.Update{UpdateID: 2}))
}
