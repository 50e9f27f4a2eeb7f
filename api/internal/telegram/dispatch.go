package telegram

import (
	"context"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// HandlerFunc processes one update.
type HandlerFunc func(ctx context.Context, upd tgbotapi.Update)

// Dispatcher runs updates of one user in arrival order and different users
// concurrently. A lane goroutine lives only while its queue is non-empty.
type Dispatcher struct {
	handle HandlerFunc
	ctx    context.Context
	log    *slog.Logger

	mu     sync.Mutex
	lanes  map[int64][]tgbotapi.Update
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher detaches handlers from ctx cancellation: a shutdown signal
// stops intake, in-flight handlers finish on their own.
func NewDispatcher(ctx context.Context, handle HandlerFunc, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		handle: handle,
		ctx:    context.WithoutCancel(ctx),
		log:    log.With("component", "dispatch"),
		lanes:  make(map[int64][]tgbotapi.Update),
	}
}

// Dispatch queues upd on its user's lane. It returns false after Close.
func (d *Dispatcher) Dispatch(upd tgbotapi.Update) bool {
	key := laneKey(upd)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	if q, busy := d.lanes[key]; busy {
		d.lanes[key] = append(q, upd)
		return true
	}
	d.lanes[key] = []tgbotapi.Update{}
	d.wg.Add(1)
	go d.run(key, upd)
	return true
}

func (d *Dispatcher) run(key int64, upd tgbotapi.Update) {
	defer d.wg.Done()
	for {
		d.safeHandle(upd)

		d.mu.Lock()
		q := d.lanes[key]
		if len(q) == 0 {
			delete(d.lanes, key)
			d.mu.Unlock()
			return
		}
		upd, d.lanes[key] = q[0], q[1:]
		d.mu.Unlock()
	}
}

func (d *Dispatcher) safeHandle(upd tgbotapi.Update) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Error("handler panic", "update", upd.UpdateID, "panic", p)
		}
	}()
	d.handle(d.ctx, upd)
}

// Close stops accepting updates. Queued ones are still handled.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// Wait blocks until every lane drains or timeout passes. It reports whether
// the lanes drained.
func (d *Dispatcher) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func laneKey(upd tgbotapi.Update) int64 {
	switch {
	case upd.Message != nil && upd.Message.From != nil:
		return upd.Message.From.ID
	case upd.Message != nil && upd.Message.Chat != nil:
		return upd.Message.Chat.ID
	case upd.CallbackQuery != nil && upd.CallbackQuery.From != nil:
		return upd.CallbackQuery.From.ID
	}
	return 0
}
