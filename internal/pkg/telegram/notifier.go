package telegram

import (
	"fmt"

	"github.com/go-resty/resty/v2"
)

// Notifier posts operator reports to a Telegram channel via the raw Bot
// API. A nil Notifier is valid and drops every message, so callers never
// need to guard.
type Notifier struct {
	chatID string
	client *resty.Client
}

// NewNotifier creates a notifier for the given bot token and chat. Returns
// nil when the token or chat is unset (notifications disabled).
func NewNotifier(token, chatID string) *Notifier {
	if token == "" || chatID == "" {
		return nil
	}
	return &Notifier{
		chatID: chatID,
		client: resty.New().SetBaseURL("https://api.telegram.org/bot" + token),
	}
}

// Send posts a text message with HTML parse mode.
func (n *Notifier) Send(text string) error {
	if n == nil {
		return nil
	}
	resp, err := n.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"chat_id":    n.chatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		Post("/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram sendMessage failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram sendMessage returned %s", resp.Status())
	}
	return nil
}
