package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/iabalyuk/weatherbot/storage"
	"github.com/iabalyuk/weatherbot/weatherapi"
	"go.uber.org/zap"
)

// sender is the part of the Telegram API the handlers need
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot is the Telegram weather bot
type Bot struct {
	api     *tgbotapi.BotAPI
	sender  sender
	client  *weatherapi.Client
	storage storage.SessionStore
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a new bot instance
func New(token string, client *weatherapi.Client, store storage.SessionStore, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := newBot(api, client, store, logger)
	b.api = api
	return b, nil
}

func newBot(s sender, client *weatherapi.Client, store storage.SessionStore, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		sender:  s,
		client:  client,
		storage: store,
		logger:  logger,
		now:     time.Now,
	}
}

// Start polls Telegram for updates and handles them one at a time until ctx is done
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Bot started", zap.String("username", b.api.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Bot stopping")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			}
		}
	}
}
