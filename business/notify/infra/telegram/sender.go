// Package telegram delivers notifications via the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/cryptoking82/evm-arbitrage-bot/business/notify/app"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/httpclient"
)

// Ensure Sender implements the port.
var _ app.Sender = (*Sender)(nil)

const defaultBaseURL = "https://api.telegram.org"

// Sender posts events to a Telegram chat.
type Sender struct {
	token   string
	chatID  string
	baseURL string
	client  *httpclient.Client
}

// New creates a Sender for the given bot token and chat ID.
func New(token, chatID string) (*Sender, error) {
	client, err := httpclient.New(
		httpclient.WithProviderName("telegram"),
		httpclient.WithRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("telegram: create http client: %w", err)
	}

	return &Sender{
		token:   token,
		chatID:  chatID,
		baseURL: defaultBaseURL,
		client:  client,
	}, nil
}

// Send posts the event to the configured chat using the sendMessage API. The
// title is rendered in bold.
func (s *Sender) Send(ctx context.Context, event app.Event) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)

	payload := map[string]string{
		"chat_id":    s.chatID,
		"text":       fmt.Sprintf("*%s*\n%s", event.Title(), event.Body()),
		"parse_mode": "Markdown",
	}

	resp, err := s.client.PostJSON(ctx, url, payload)
	if err != nil {
		return fmt.Errorf("telegram: send request: %w", err)
	}
	if resp.IsError() {
		body := resp.Body()
		if len(body) > 1024 {
			body = body[:1024]
		}
		return fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Name returns the sender identifier.
func (s *Sender) Name() string {
	return "telegram"
}
