package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/okian/goalpulse/internal/domain/model"
)

const telegramAPI = "https://api.telegram.org"

// Telegram sends alerts to a chat through the Bot API.
type Telegram struct {
	settings
	botToken string
	chatID   string
}

// NewTelegram registers the bot token and chat identifier.
func NewTelegram(botToken, chatID string, opts ...Option) (*Telegram, error) {
	if botToken == "" || chatID == "" {
		return nil, fmt.Errorf("%w: telegram bot token and chat id are required", ErrNotifierMisconfigured)
	}
	return &Telegram{
		settings: applyOptions("telegram", telegramAPI, opts),
		botToken: botToken,
		chatID:   chatID,
	}, nil
}

// Name identifies the notifier.
func (n *Telegram) Name() string { return "telegram" }

// Deliver posts a Markdown message to the chat.
func (n *Telegram) Deliver(ctx context.Context, a model.Alert) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimSuffix(n.endpoint, "/"), n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", telegramText(a))
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if err := do(n.client, req); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

func telegramText(a model.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*GoalPulse %s*\n", a.Tier)
	fmt.Fprintf(&b, "Fixture: %s\n", a.EntityID)
	fmt.Fprintf(&b, "Pressure: %.1f\n", a.Score)
	if a.PreviousTier != nil {
		fmt.Fprintf(&b, "Previous: %s\n", *a.PreviousTier)
	}
	b.WriteString(a.Timestamp.UTC().Format("15:04:05 MST"))
	return b.String()
}
