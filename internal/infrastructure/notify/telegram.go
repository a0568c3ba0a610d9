package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// telegramMessageLimit is the Bot API limit on a single message body
const telegramMessageLimit = 4096

// TelegramConfig holds Bot API settings
type TelegramConfig struct {
	BaseURL  string
	BotToken string
	ChatID   string
	Timeout  time.Duration
}

// TelegramNotifier sends messages through the Telegram Bot API sendMessage call
type TelegramNotifier struct {
	endpoint string
	chatID   string
	client   *http.Client
	logger   *zap.Logger
}

// telegramResponse is the Bot API response envelope
type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// NewTelegramNotifier validates cfg and creates the notifier
func NewTelegramNotifier(cfg TelegramConfig, logger *zap.Logger) (*TelegramNotifier, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, errors.New("telegram notifier requires a bot token and chat id")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramNotifier{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/bot" + cfg.BotToken + "/sendMessage",
		chatID:   cfg.ChatID,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.Named("telegram"),
	}, nil
}

// Notify posts message to the configured chat. Messages longer than the Bot
// API limit are split on line boundaries and sent in order.
func (n *TelegramNotifier) Notify(ctx context.Context, message string) error {
	for _, part := range splitMessage(message, telegramMessageLimit) {
		if err := n.send(ctx, part); err != nil {
			return err
		}
	}
	n.logger.Debug("Telegram message sent", zap.String("chat_id", n.chatID))
	return nil
}

func (n *TelegramNotifier) send(ctx context.Context, text string) error {
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		// The URL embeds the bot token.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read telegram response: %w", err)
	}

	var parsed telegramResponse
	if jsonErr := json.Unmarshal(body, &parsed); jsonErr != nil || resp.StatusCode != http.StatusOK || !parsed.OK {
		return fmt.Errorf("telegram sendMessage failed: status %d: %s", resp.StatusCode, parsed.Description)
	}
	return nil
}

// splitMessage breaks text into chunks of at most limit bytes, preferring
// line breaks as cut points.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var parts []string
	var current strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
			cut := runeBoundary(line, limit)
			parts = append(parts, line[:cut])
			line = line[cut:]
		}
		if current.Len()+len(line) > limit {
			parts = append(parts, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// runeBoundary returns the largest index <= limit that does not split a
// UTF-8 sequence.
func runeBoundary(s string, limit int) int {
	for i := limit; i > 0; i-- {
		if s[i]&0xC0 != 0x80 {
			return i
		}
	}
	return limit
}
