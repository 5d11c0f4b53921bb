package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"hostpilot/internal/models"
)

// BotAPI is the part of the Telegram client the notifier uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	bot      BotAPI
	chatID   int64
	cooldown time.Duration
	warnings bool
	now      func() time.Time
	sleep    func(time.Duration)

	mu       sync.Mutex
	lastSent map[string]time.Time
}

type TelegramOptions struct {
	// Cooldown suppresses a repeat of the same kind and severity.
	Cooldown time.Duration
	// IncludeWarnings also forwards warning-grade events.
	IncludeWarnings bool
}

// NewTelegramBot connects with token and checks it against the API.
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, newHTTPClient())
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return bot, nil
}

const requestTimeout = 10 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

func NewTelegram(bot BotAPI, chatID string, opts TelegramOptions) (*Telegram, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("telegram chat id %q: %w", chatID, err)
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 10 * time.Minute
	}
	return &Telegram{
		bot:      bot,
		chatID:   id,
		cooldown: opts.Cooldown,
		warnings: opts.IncludeWarnings,
		now:      time.Now,
		sleep:    time.Sleep,
		lastSent: map[string]time.Time{},
	}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Publish(ctx context.Context, snap models.MetricsSnapshot, events []models.AlertEvent) error {
	var lines []string
	for _, e := range events {
		if !e.IsCritical() && !t.warnings {
			continue
		}
		if !t.due(e) {
			continue
		}
		lines = append(lines, formatEvent(e))
	}
	if len(lines) == 0 {
		return nil
	}
	header := "hostpilot alert"
	if snap.Hostname != "" {
		header += " on " + snap.Hostname
	}
	return t.Send(ctx, header+"\n"+strings.Join(lines, "\n"))
}

// due reports whether e is outside the cooldown window and, if so, marks it
// as sent.
func (t *Telegram) due(e models.AlertEvent) bool {
	key := string(e.Kind) + "/" + string(e.Severity)
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	if last, ok := t.lastSent[key]; ok && now.Sub(last) < t.cooldown {
		return false
	}
	t.lastSent[key] = now
	return true
}

func (t *Telegram) Send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err = t.bot.Send(msg); err == nil {
			return nil
		}
		t.sleep(time.Duration(attempt) * 300 * time.Millisecond)
	}
	return fmt.Errorf("telegram send after 3 attempts: %w", err)
}

func formatEvent(e models.AlertEvent) string {
	mark := "⚠️"
	if e.IsCritical() {
		mark = "🔴"
	}
	return fmt.Sprintf("%s %s", mark, e.Message)
}
