package telegram

import (
	"context"
	"errors"
	"fmt"

	"screen-bot/api/internal/pipeline"
	"screen-bot/api/internal/session"
)

const historyLimit = 5

// singleShot captures once and answers without touching the session.
func (r *Router) singleShot(ctx context.Context, cid, uid int64) {
	art, err := r.Capturer.Capture(ctx)
	r.Metrics.Capture("single", err == nil)
	if err != nil {
		r.logger().Error("capture", "user", uid, "mode", "single", "error", err)
		r.send(ctx, cid, "❌ Failed to capture the screen.")
		return
	}
	defer func() {
		if err := art.Release(); err != nil {
			r.logger().Warn("release artifact", "path", art.Path, "error", err)
		}
	}()

	r.sendPhoto(ctx, cid, art.Path, "📸 "+art.CapturedAt.Format("15:04:05"))
	shot := r.Pipeline.Once(ctx, uid, art.Path)
	r.send(ctx, cid, shotText(shot))
}

func (r *Router) captureSlot(ctx context.Context, cid, uid int64, slot int) {
	if s, ok := r.Store.Get(uid); ok && s.Snapshot().Active {
		r.send(ctx, cid, busyText)
		return
	}
	art, err := r.Capturer.Capture(ctx)
	r.Metrics.Capture("slot", err == nil)
	if err != nil {
		r.logger().Error("capture", "user", uid, "slot", slot, "error", err)
		r.send(ctx, cid, fmt.Sprintf("❌ Failed to capture screenshot %d.", slot))
		return
	}

	replaced, err := r.Store.Put(uid, cid, slot, art)
	if err != nil {
		if rerr := art.Release(); rerr != nil {
			r.logger().Warn("release artifact", "path", art.Path, "error", rerr)
		}
		if errors.Is(err, session.ErrBusy) {
			r.send(ctx, cid, busyText)
			return
		}
		r.logger().Error("store screenshot", "user", uid, "slot", slot, "error", err)
		r.send(ctx, cid, "❌ Could not store the screenshot.")
		return
	}
	r.Metrics.Sessions(r.Store.Len())

	s, _ := r.Store.Get(uid)
	var occupied []int
	if s != nil {
		occupied = s.Snapshot().Occupied()
	}
	r.sendWithKeyboard(ctx, cid, savedText(slot, replaced, occupied), makeStackKeyboard())
}

// runBatch processes the caller's stack, keeping one progress message on
// screen at a time.
func (r *Router) runBatch(ctx context.Context, cid, uid int64) {
	s, ok := r.Store.Get(uid)
	if !ok {
		r.send(ctx, cid, nothingText)
		return
	}
	snap := s.Snapshot()
	if snap.Active {
		r.send(ctx, cid, busyText)
		return
	}
	// an empty stack still goes through Run: it restarts the session clock
	if n := len(snap.Occupied()); n > 0 {
		r.send(ctx, cid, fmt.Sprintf("🔎 Processing %d screenshot(s)…", n))
	}

	lastMsg := 0
	sum, err := r.Pipeline.Run(ctx, s, func(p pipeline.Progress) {
		id := r.send(ctx, cid, progressText(p))
		r.deleteMessage(cid, lastMsg)
		lastMsg = id
	})
	r.deleteMessage(cid, lastMsg)
	r.Metrics.Sessions(r.Store.Len())

	switch {
	case errors.Is(err, session.ErrBusy):
		r.send(ctx, cid, busyText)
	case err != nil:
		r.logger().Error("batch", "user", uid, "error", err)
		r.send(ctx, cid, "❌ Processing failed.")
	case sum.Empty():
		r.send(ctx, cid, nothingText)
	default:
		r.send(ctx, cid, summaryText(sum))
	}
}

func (r *Router) status(ctx context.Context, cid, uid int64) {
	s, ok := r.Store.Get(uid)
	if !ok {
		r.send(ctx, cid, statusText(session.Snapshot{}, r.now(), r.SessionTimeout))
		return
	}
	r.send(ctx, cid, statusText(s.Snapshot(), r.now(), r.SessionTimeout))
}

func (r *Router) reset(ctx context.Context, cid, uid int64) {
	if err := r.Store.Clear(uid); err != nil {
		if errors.Is(err, session.ErrBusy) {
			r.send(ctx, cid, busyText)
			return
		}
		r.logger().Warn("clear session", "user", uid, "error", err)
	}
	r.Metrics.Sessions(r.Store.Len())
	r.send(ctx, cid, "🗑 Stack cleared.")
}

func (r *Router) history(ctx context.Context, cid, uid int64) {
	if r.History == nil {
		r.send(ctx, cid, "History is not enabled on this bot.")
		return
	}
	rows, err := r.History.Recent(ctx, uid, historyLimit)
	if err != nil {
		r.logger().Error("load history", "user", uid, "error", err)
		r.send(ctx, cid, "❌ Could not load history.")
		return
	}
	r.send(ctx, cid, historyText(rows))
}
