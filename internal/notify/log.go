// Package notify delivers reminder texts.
package notify

import (
	"context"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"substance-journal/internal/service"
)

var strict = bluemonday.StrictPolicy()

// Log writes reminders to the logger. Used when no Telegram bot is configured.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Notify(_ context.Context, text string) error {
	l.log.Info("reminder", zap.String("text", PlainText(text)))
	return nil
}

// PlainText strips Telegram HTML markup and entities.
func PlainText(text string) string {
	return html.UnescapeString(strict.Sanitize(text))
}

var _ service.Notifier = (*Log)(nil)
