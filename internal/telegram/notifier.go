package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/mtzanidakis/evomap/internal/activity"
	"github.com/mtzanidakis/evomap/internal/config"
	"github.com/mtzanidakis/evomap/internal/dashboard"
	"github.com/mtzanidakis/evomap/internal/fleet"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const maxMessageLen = 4096

type sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// Notifier forwards activity entries for failing agents to a Telegram chat.
type Notifier struct {
	bot    sender
	chatID int64
}

func NewNotifier(cfg config.TelegramConfig) (*Notifier, error) {
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, errors.New("telegram token and chat id are required")
	}
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: cfg.ChatID}, nil
}

func (n *Notifier) Name() string {
	return "telegram"
}

func (n *Notifier) Publish(ctx context.Context, event dashboard.Event) error {
	if event.Type != dashboard.EventActivity {
		return nil
	}
	msg, ok := event.Payload.(activity.Message)
	if !ok || msg.Status != fleet.StatusError {
		return nil
	}
	return n.send(ctx, formatActivity(msg))
}

func (n *Notifier) send(ctx context.Context, text string) error {
	for _, chunk := range splitText(text, maxMessageLen) {
		if _, err := n.bot.SendMessage(ctx, tu.Message(tu.ID(n.chatID), chunk)); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}

func formatActivity(m activity.Message) string {
	return fmt.Sprintf("%s [%s] %s\n%s", m.AgentName, m.Status, m.Timestamp.Format("15:04:05"), m.Text)
}
