package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"FilingScanner/internal/ports"
)

const defaultBaseURL = "https://api.telegram.org"

// Notifier sends alert messages to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID, baseURL string) *Notifier {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Configured reports whether both token and chat are set.
func (n *Notifier) Configured() bool {
	return n.botToken != "" && n.chatID != ""
}

// Publish posts a plain-text message; previews are disabled so the filing
// link does not expand.
func (n *Notifier) Publish(ctx context.Context, message string) error {
	if !n.Configured() || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", message)
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}
