package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrDelivery wraps failed outbound messages.
var ErrDelivery = errors.New("telegram: delivery failed")

// Telegram caps messages at 4096 characters; longer replies go as a file.
const maxMessageLen = 4000

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

// IsTransient reports errors worth one more try: rate limits, 5xx and
// network timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *tgbotapi.Error
	if errors.As(err, &te) {
		return te.Code == 429 || te.Code >= 500 || te.RetryAfter > 0
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "too many requests") || strings.Contains(s, "timeout")
}

// RetryDelay picks the pause before retrying after err.
func RetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	var te *tgbotapi.Error
	if errors.As(err, &te) && te.RetryAfter > 0 {
		return time.Duration(te.RetryAfter) * time.Second
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 от Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

// deliver sends c, retrying once on a transient error.
func (r *Router) deliver(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m, err := r.Bot.Send(c)
	if err == nil || !IsTransient(err) {
		return m, wrapDelivery(err)
	}
	delay := r.retryDelay(err)
	r.logger().Warn("telegram send failed, retrying", "error", err, "in", delay)
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return m, fmt.Errorf("%w: %v", ErrDelivery, ctx.Err())
	case <-t.C:
	}
	m, err = r.Bot.Send(c)
	return m, wrapDelivery(err)
}

func wrapDelivery(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrDelivery, err)
}

func (r *Router) retryDelay(err error) time.Duration {
	if r.RetryDelay != nil {
		return r.RetryDelay(err)
	}
	return RetryDelay(err)
}

// send delivers text, switching to a document for long replies. Failures are
// logged, not returned: there is nobody to report them to.
func (r *Router) send(ctx context.Context, chatID int64, text string) int {
	if len([]rune(text)) > maxMessageLen {
		return r.sendDocument(ctx, chatID, "answer.txt", text)
	}
	m, err := r.deliver(ctx, tgbotapi.NewMessage(chatID, text))
	if err != nil {
		r.logger().Error("send message", "chat", chatID, "error", err)
		return 0
	}
	return m.MessageID
}

func (r *Router) sendWithKeyboard(ctx context.Context, chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := r.deliver(ctx, msg); err != nil {
		r.logger().Error("send message", "chat", chatID, "error", err)
	}
}

func (r *Router) sendDocument(ctx context.Context, chatID int64, name, text string) int {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: []byte(text)})
	doc.Caption = "📄 The reply is long, see the file."
	m, err := r.deliver(ctx, doc)
	if err != nil {
		r.logger().Error("send document", "chat", chatID, "error", err)
		return 0
	}
	return m.MessageID
}

func (r *Router) sendPhoto(ctx context.Context, chatID int64, path, caption string) {
	ph := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))
	ph.Caption = caption
	if _, err := r.deliver(ctx, ph); err != nil {
		r.logger().Error("send photo", "chat", chatID, "error", err)
	}
}

// deleteMessage is best effort.
func (r *Router) deleteMessage(chatID int64, msgID int) {
	if msgID == 0 {
		return
	}
	if _, err := r.Bot.Request(tgbotapi.NewDeleteMessage(chatID, msgID)); err != nil {
		r.logger().Debug("delete message", "chat", chatID, "msg", msgID, "error", err)
	}
}
