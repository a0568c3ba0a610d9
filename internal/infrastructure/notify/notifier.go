// Package notify delivers operator messages produced by the ledger, such as
// the weekly outstanding-balance summary and settlement notices.
package notify

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Notifier delivers a plain-text message
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// LogNotifier writes messages to the application log. It is the default
// driver for development and for deployments without a chat integration.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

// Notify logs the message at info level
func (n *LogNotifier) Notify(ctx context.Context, message string) error {
	n.logger.Info("Operator notification", zap.String("message", message))
	return nil
}

// New builds the notifier selected by cfg.Driver
func New(cfg config.NotifyConfig, logger *zap.Logger) (Notifier, error) {
	switch cfg.Driver {
	case "", "log":
		return NewLogNotifier(logger), nil
	case "telegram":
		return NewTelegramNotifier(TelegramConfig{
			BaseURL:  cfg.TelegramBaseURL,
			BotToken: cfg.TelegramBotToken,
			ChatID:   cfg.TelegramChatID,
			Timeout:  cfg.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}
}
