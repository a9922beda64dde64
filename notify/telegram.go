package notify

import (
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Report is what a finished run tells its operator
type Report struct {
	RunID    string
	Rows     int
	Skipped  int
	Families []string
	Files    []string
	SheetURL string
	Duration time.Duration
	Err      error
}

// Telegram sends run reports to a chat
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram creates a notifier for chatID using the bot token
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	log.Printf("Authorized on account %s\n", bot.Self.UserName)
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// Send delivers the report. Delivery failures are logged, never returned,
// so a broken chat cannot fail a run.
func (t *Telegram) Send(r Report) {
	msg := tgbotapi.NewMessage(t.chatID, FormatReport(r))
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		log.Printf("Error sending run report: %v\n", err)
	}
}

// FormatReport renders the report as a chat message
func FormatReport(r Report) string {
	var b strings.Builder
	switch {
	case r.Err != nil:
		fmt.Fprintf(&b, "❌ Run %s failed: %v\n", r.RunID, r.Err)
	case r.Skipped > 0:
		fmt.Fprintf(&b, "⚠️ Run %s finished with %d skipped combinations\n", r.RunID, r.Skipped)
	default:
		fmt.Fprintf(&b, "✅ Run %s finished\n", r.RunID)
	}

	fmt.Fprintf(&b, "\nRows: %d\n", r.Rows)
	if len(r.Families) > 0 {
		fmt.Fprintf(&b, "Families: %s\n", strings.Join(r.Families, ", "))
	}
	fmt.Fprintf(&b, "Duration: %s\n", r.Duration.Round(time.Second))
	if len(r.Files) > 0 {
		b.WriteString("\nFiles:\n")
		for _, f := range r.Files {
			fmt.Fprintf(&b, "• %s\n", f)
		}
	}
	if r.SheetURL != "" {
		fmt.Fprintf(&b, "\nView spreadsheet: %s\n", r.SheetURL)
	}
	return b.String()
}
