package sender

import (
	"context"
	"strconv"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/meetsmatch/notifyengine/internal/apperr"
	"github.com/meetsmatch/notifyengine/internal/chatmarkdown"
	"github.com/meetsmatch/notifyengine/internal/models"
	"github.com/sony/gobreaker"
)

// TelegramClient is the subset of *bot.Bot this transport needs.
type TelegramClient interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*tgmodels.Message, error)
}

// TelegramTransport delivers NotificationEvents of type Telegram, running
// the body through the chat-markdown converter first (spec §4.K/§6).
type TelegramTransport struct {
	client TelegramClient
	cb     *gobreaker.CircuitBreaker
}

func NewTelegramTransport(client TelegramClient) *TelegramTransport {
	return &TelegramTransport{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "telegram", MaxRequests: 1}),
	}
}

func (t *TelegramTransport) Send(ctx context.Context, event models.NotificationEvent) error {
	chatID, err := strconv.ParseInt(event.ToAddress, 10, 64)
	if err != nil {
		return apperr.NewDeliveryError("invalid telegram chat id", err, false)
	}

	body := chatmarkdown.Convert(event.Body)

	_, err = t.cb.Execute(func() (interface{}, error) {
		return t.client.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID:    chatID,
			Text:      body,
			ParseMode: tgmodels.ParseModeMarkdown,
		})
	})
	if err == nil {
		return nil
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return apperr.NewTelegramError("telegram circuit open", err, true)
	}
	return apperr.NewTelegramError("telegram send failed", err, true)
}
