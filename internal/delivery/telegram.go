package delivery

import (
	"context"
	"fmt"
	"html"

	"flulance/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type botClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramSender struct {
	bot botClient
}

// NewTelegramSender authenticates against the Bot API. apiEndpoint may be
// empty for the public endpoint.
func NewTelegramSender(token, apiEndpoint string) (*TelegramSender, error) {
	if apiEndpoint == "" {
		apiEndpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, apiEndpoint)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &TelegramSender{bot: bot}, nil
}

func (s *TelegramSender) Name() string { return "telegram" }

func (s *TelegramSender) Send(ctx context.Context, contact models.DeliveryContact, msg Message) error {
	if contact.TelegramChatID == nil || *contact.TelegramChatID == 0 {
		return ErrNoAddress
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	out := tgbotapi.NewMessage(*contact.TelegramChatID, telegramText(msg))
	out.ParseMode = tgbotapi.ModeHTML
	out.DisableWebPagePreview = true
	if _, err := s.bot.Send(out); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func telegramText(msg Message) string {
	text := fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(msg.Subject), html.EscapeString(msg.Body))
	if msg.Link != "" {
		text += fmt.Sprintf("\n<a href=\"%s\">Open</a>", html.EscapeString(msg.Link))
	}
	return text
}
