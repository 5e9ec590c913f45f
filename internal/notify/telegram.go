package notify

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSink delivers fired notifications as Telegram messages to a single
// chat.
type TelegramSink struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramSink(api *tgbotapi.BotAPI, chatID int64) *TelegramSink {
	return &TelegramSink{api: api, chatID: chatID}
}

func (s *TelegramSink) Deliver(ctx context.Context, n Notification) error {
	text := n.Title
	if n.Body != "" {
		text += "\n\n" + n.Body
	}
	msg := tgbotapi.NewMessage(s.chatID, text)
	_, err := s.api.Send(msg)
	return err
}
