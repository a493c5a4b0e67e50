package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// send sends a text message with an optional reply markup. Failures are only logged.
func (b *Bot) send(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Error sending message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// transition logs a state machine error; the reply has already been decided
func (b *Bot) transition(err error, chatID int64) {
	if err != nil {
		b.logger.Error("Conversation transition failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
