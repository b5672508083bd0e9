package bot

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Sender sends outbound Telegram messages. Workers use it for completion
// prompts and next-question delivery; it needs no leadership because only one
// handler invocation owns an event at a time.
type Sender struct {
	api *telego.Bot
}

// NewSender builds a sender from the bot token.
func NewSender(token string) (*Sender, error) {
	api, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Sender{api: api}, nil
}

// SendText delivers a plain text message to a chat.
func (s *Sender) SendText(ctx context.Context, chatID int64, text string) error {
	if _, err := s.api.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
