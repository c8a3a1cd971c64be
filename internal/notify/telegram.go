package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"substance-journal/internal/model"
	"substance-journal/internal/service"
)

// Journal is what the bot reads to answer commands.
type Journal interface {
	DailyDigest(ctx context.Context, now time.Time) (string, error)
	List(ctx context.Context) ([]model.IngestionReminder, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers reminders to one private chat and answers a few commands
// from that chat.
type Telegram struct {
	api     sender
	updates func(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	stop    func()
	chatID  int64
	journal Journal
	log     *zap.Logger
	now     func() time.Time
}

func NewTelegram(token string, chatID int64, journal Journal, log *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("bot authorized", zap.String("account", api.Self.UserName))

	return &Telegram{
		api:     api,
		updates: api.GetUpdatesChan,
		stop:    api.StopReceivingUpdates,
		chatID:  chatID,
		journal: journal,
		log:     log,
		now:     time.Now,
	}, nil
}

// Notify sends text (Telegram HTML) to the configured chat.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.sendText(t.chatID, text)
}

// Start polls updates until ctx is cancelled.
func (t *Telegram) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := t.updates(updateConfig)

	t.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		t.stop()
	}()

	for update := range updates {
		if update.Message == nil || update.Message.Chat == nil {
			continue
		}
		if err := t.handleMessage(ctx, update.Message); err != nil {
			t.log.Warn("handle message", zap.Int64("chat_id", update.Message.Chat.ID), zap.Error(err))
		}
	}
	return nil
}

func (t *Telegram) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.Chat.ID != t.chatID {
		t.log.Debug("ignore foreign chat", zap.Int64("chat_id", msg.Chat.ID))
		return nil
	}
	if !msg.IsCommand() {
		return t.sendText(msg.Chat.ID, "Send /help for the list of commands.")
	}
	t.log.Info("command", zap.String("command", msg.Command()))

	switch msg.Command() {
	case "start", "help":
		return t.sendText(msg.Chat.ID, helpText)
	case "digest":
		text, err := t.journal.DailyDigest(ctx, t.now())
		if err != nil {
			return t.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the summary: %s", html.EscapeString(err.Error())))
		}
		return t.sendText(msg.Chat.ID, text)
	case "reminders":
		reminders, err := t.journal.List(ctx)
		if err != nil {
			return err
		}
		return t.sendText(msg.Chat.ID, formatReminders(reminders))
	default:
		return t.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

const helpText = "<b>Journal reminders</b>\n\nCommands:\n" +
	"• /digest — last 24 hours and reminders still due today\n" +
	"• /reminders — all reminders\n" +
	"• /help — this message"

func formatReminders(reminders []model.IngestionReminder) string {
	if len(reminders) == 0 {
		return "⏰ No reminders yet."
	}
	var sb strings.Builder
	sb.WriteString("⏰ <b>Reminders</b>\n")
	for _, r := range reminders {
		icon := "🟢"
		if !r.IsEnabled {
			icon = "⏸"
		}
		sb.WriteString(fmt.Sprintf("%s %s %s · %s", icon, r.Time, html.EscapeString(r.Title), schedule(r)))
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

func schedule(r model.IngestionReminder) string {
	switch r.RepeatPolicy {
	case model.RepeatWeekly:
		return "every " + r.Weekday.String()
	case model.RepeatOnce:
		if r.Date != nil {
			return "once on " + r.Date.Format("2006-01-02")
		}
		return "once"
	default:
		return "daily"
	}
}

func (t *Telegram) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := t.api.Send(msg)
	return err
}

var _ service.Notifier = (*Telegram)(nil)
