package telegram

import (
	"context"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"screen-bot/api/internal/capture"
	"screen-bot/api/internal/metrics"
	"screen-bot/api/internal/pipeline"
	"screen-bot/api/internal/session"
	"screen-bot/api/internal/store"
)

// Bot is the part of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Capturer produces one screenshot file.
type Capturer interface {
	Capture(ctx context.Context) (capture.Artifact, error)
}

// History lists finished runs. Nil when no database is configured.
type History interface {
	Recent(ctx context.Context, userID int64, limit int) ([]store.RunRow, error)
}

type Router struct {
	Bot      Bot
	Allowed  func(chatID int64) bool
	Store    *session.Store
	Pipeline *pipeline.Pipeline
	Capturer Capturer
	History  History
	Metrics  *metrics.Metrics
	Log      *slog.Logger

	// SessionTimeout is only used for /status.
	SessionTimeout time.Duration
	// RetryDelay overrides the delay before the single delivery retry.
	RetryDelay func(error) time.Duration
	Now        func() time.Time
}

// HandleUpdate routes one update. Chats outside the allow-list are dropped
// without a reply.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(ctx, *upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	cid := msg.Chat.ID
	if !r.allowed(cid) {
		r.logger().Debug("dropping message from unknown chat", "chat", cid)
		return
	}
	uid := userOf(msg)

	if msg.IsCommand() {
		r.handleCommand(ctx, msg.Command(), cid, uid)
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.EqualFold(text, shotKeyword):
		r.singleShot(ctx, cid, uid)
	case len(text) == 1 && text[0] >= '1' && text[0] <= '9':
		r.captureSlot(ctx, cid, uid, int(text[0]-'0'))
	case text == "0":
		r.runBatch(ctx, cid, uid)
	case text != "":
		r.send(ctx, cid, unknownText)
	}
}

func (r *Router) handleCommand(ctx context.Context, cmd string, cid, uid int64) {
	switch cmd {
	case "start", "help":
		r.send(ctx, cid, helpText)
	case "shot":
		r.singleShot(ctx, cid, uid)
	case "process":
		r.runBatch(ctx, cid, uid)
	case "status":
		r.status(ctx, cid, uid)
	case "reset":
		r.reset(ctx, cid, uid)
	case "history":
		r.history(ctx, cid, uid)
	default:
		r.send(ctx, cid, "Unknown command. "+unknownText)
	}
}

func (r *Router) handleCallback(ctx context.Context, cb tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	cid := cb.Message.Chat.ID
	if !r.allowed(cid) {
		r.logger().Debug("dropping callback from unknown chat", "chat", cid)
		return
	}
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, "")) // ack

	var uid int64 = cid
	if cb.From != nil {
		uid = cb.From.ID
	}
	// убрать клавиатуру, чтобы не нажимали повторно
	edit := tgbotapi.NewEditMessageReplyMarkup(cid, cb.Message.MessageID, tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	_, _ = r.Bot.Request(edit)

	switch cb.Data {
	case cbProcess:
		r.runBatch(ctx, cid, uid)
	case cbReset:
		r.reset(ctx, cid, uid)
	}
}

func (r *Router) allowed(chatID int64) bool {
	return r.Allowed != nil && r.Allowed(chatID)
}

func (r *Router) logger() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}

func (r *Router) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func userOf(msg *tgbotapi.Message) int64 {
	if msg.From != nil {
		return msg.From.ID
	}
	return msg.Chat.ID
}
