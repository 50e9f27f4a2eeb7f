package telegram

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"screen-bot/api/internal/pipeline"
	"screen-bot/api/internal/session"
	"screen-bot/api/internal/store"
	"screen-bot/api/internal/util"
)

const shotKeyword = "shot"

const (
	cbProcess = "stack_process"
	cbReset   = "stack_reset"
)

const helpText = `📸 Screen bot
• shot or /shot: take one screenshot, read it and answer
• 1…9: take a screenshot into that slot of your stack
• 0 or /process: read every stacked screenshot and answer them together
• /status: show your stack
• /reset: drop your stack
• /history: last processed stacks`

const unknownText = "Send 1…9 to stack a screenshot, 0 to process the stack, or /help."

const busyText = "⏳ Your stack is being processed, please wait."

const nothingText = "📭 Nothing to process. Send 1…9 first."

// Кнопки под сообщением о сохранённом скриншоте
func makeStackKeyboard() tgbotapi.InlineKeyboardMarkup {
	run := tgbotapi.NewInlineKeyboardButtonData("▶️ Process", cbProcess)
	drop := tgbotapi.NewInlineKeyboardButtonData("🗑 Reset", cbReset)
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(run, drop))
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}

func savedText(slot int, replaced bool, occupied []int) string {
	verb := "saved"
	if replaced {
		verb = "replaced"
	}
	return fmt.Sprintf("✅ Screenshot %d %s. Stack: %s (%d/%d). Send 0 to process.",
		slot, verb, joinInts(occupied), len(occupied), session.SlotCount)
}

func progressText(p pipeline.Progress) string {
	mark := "✅"
	if !p.OK {
		mark = "⚠️"
	}
	return fmt.Sprintf("⏳ %d/%d (%d%%): screenshot %d %s", p.Index, p.Total, p.Percent, p.Slot, mark)
}

func summaryText(s pipeline.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Processed %d screenshot(s) in %s\n", s.Total, s.Duration.Round(100*time.Millisecond))
	fmt.Fprintf(&b, "Extracted: %d, failed: %d", s.Succeeded, s.Failed)
	if len(s.FailedSlots) > 0 {
		fmt.Fprintf(&b, " (slot %s)", joinInts(s.FailedSlots))
	}
	b.WriteString("\n\n")
	if s.Answer != "" {
		b.WriteString("💡 Answer:\n")
		b.WriteString(s.Answer)
	} else {
		b.WriteString("ℹ️ ")
		b.WriteString(s.AnswerNote)
	}
	return b.String()
}

func shotText(s pipeline.Shot) string {
	var b strings.Builder
	if s.Text != "" {
		b.WriteString("📝 Text:\n")
		b.WriteString(s.Text)
		b.WriteString("\n\n")
	}
	if s.Answer != "" {
		b.WriteString("💡 Answer:\n")
		b.WriteString(s.Answer)
	} else {
		b.WriteString("ℹ️ ")
		b.WriteString(s.AnswerNote)
	}
	return b.String()
}

func statusText(snap session.Snapshot, now time.Time, timeout time.Duration) string {
	occ := snap.Occupied()
	if len(occ) == 0 {
		return "📭 Your stack is empty. Send 1…9 to add a screenshot."
	}
	age := now.Sub(snap.StartTime).Round(time.Second)
	left := (timeout - age).Round(time.Second)
	if left < 0 {
		left = 0
	}
	state := ""
	if snap.Active {
		state = "\n⏳ Processing right now."
	}
	return fmt.Sprintf("📚 Stack: %s (%d/%d)\nAge: %s, expires in %s.%s",
		joinInts(occ), len(occ), session.SlotCount, age, left, state)
}

func historyText(rows []store.RunRow) string {
	if len(rows) == 0 {
		return "No processed stacks yet."
	}
	var b strings.Builder
	b.WriteString("🗂 Recent stacks:\n")
	for _, r := range rows {
		ans := r.Answer
		if ans == "" {
			ans = r.AnswerNote
		}
		fmt.Fprintf(&b, "• %s: %d/%d ok, %.1fs: %s\n",
			r.CreatedAt.Format("02.01 15:04"), r.Succeeded, r.Total,
			float64(r.DurationMS)/1000, firstLine(ans, 80))
	}
	return strings.TrimRight(b.String(), "\n")
}

func firstLine(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + "…"
	}
	return util.Truncate(s, n)
}
