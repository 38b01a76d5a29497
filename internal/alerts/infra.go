package alerts

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

type telegramInfra struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramInfra шлёт алерты в админский чат. Токен пустой — алерты
// выключены, возвращается noop.
func NewTelegramInfra(token string, chatID int64) (Notifier, error) {
	if token == "" || chatID == 0 {
		return noopInfra{}, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init alert bot: %w", err)
	}
	return &telegramInfra{bot: bot, chatID: chatID}, nil
}

func (i *telegramInfra) Notify(ctx context.Context, jobID uuid.UUID, err error, details string) error {
	text := fmt.Sprintf(
		"❗ Conversion job failed (%s)\n\nError: %v\n\nDetails: %s",
		jobID, err, details,
	)

	msg := tgbotapi.NewMessage(i.chatID, text)

	_, sendErr := i.bot.Send(msg)
	if sendErr != nil {
		log.Printf("[alerts] send fail: %v", sendErr)
		return sendErr
	}
	return nil
}

type noopInfra struct{}

func (noopInfra) Notify(ctx context.Context, jobID uuid.UUID, err error, details string) error {
	return nil
}
