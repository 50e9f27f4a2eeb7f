package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrTransportConnect is returned once every start-up attempt has failed.
var ErrTransportConnect = errors.New("telegram: connect failed")

// Retry calls fn up to attempts times with a fixed pause between tries.
func Retry(ctx context.Context, attempts int, backoff time.Duration, log *slog.Logger, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		log.Warn("connect attempt failed", "attempt", i, "of", attempts, "error", err)
		if i == attempts {
			break
		}
		if werr := sleep(ctx, backoff); werr != nil {
			return fmt.Errorf("%w: %w", ErrTransportConnect, werr)
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrTransportConnect, attempts, err)
}

// Connect authenticates the bot token against Telegram.
func Connect(ctx context.Context, token string, attempts int, backoff time.Duration, log *slog.Logger) (*tgbotapi.BotAPI, error) {
	var bot *tgbotapi.BotAPI
	err := Retry(ctx, attempts, backoff, log, func() error {
		b, err := tgbotapi.NewBotAPI(token)
		if err != nil {
			return err
		}
		bot = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Info("telegram connected", "bot", bot.Self.UserName)
	return bot, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
