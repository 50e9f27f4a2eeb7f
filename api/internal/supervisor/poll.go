package supervisor

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"screen-bot/api/internal/telegram"
)

// Updater is the long-polling half of *tgbotapi.BotAPI.
type Updater interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

const (
	pollTimeout   = 30 // seconds, Telegram long poll
	pollBaseDelay = 1 * time.Second
	pollMaxDelay  = 15 * time.Second
)

// Poll feeds updates to handle until ctx is done or handle refuses one.
// A pending GetUpdates is abandoned on cancel; its updates were never
// confirmed, so Telegram hands them out again on the next start.
func Poll(ctx context.Context, bot Updater, handle func(tgbotapi.Update) bool, log *slog.Logger) error {
	offset := 0
	for {
		if ctx.Err() != nil {
			log.Info("polling stopped")
			return nil
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = pollTimeout

		updates, err := getUpdates(ctx, bot, u)
		if ctx.Err() != nil {
			log.Info("polling stopped")
			return nil
		}
		if err != nil {
			d := telegram.RetryDelay(err)
			if d < pollBaseDelay {
				d = pollBaseDelay
			}
			if d > pollMaxDelay {
				d = pollMaxDelay
			}
			log.Warn("polling error", "error", err, "retry_in", d)
			_ = sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			if !handle(upd) {
				return nil
			}
		}
		if len(updates) == 0 {
			_ = sleep(ctx, 200*time.Millisecond)
		}
	}
}

type pollResult struct {
	updates []tgbotapi.Update
	err     error
}

func getUpdates(ctx context.Context, bot Updater, u tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	ch := make(chan pollResult, 1)
	go func() {
		ups, err := bot.GetUpdates(u)
		ch <- pollResult{ups, err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.updates, r.err
	}
}
