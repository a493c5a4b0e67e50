package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/iabalyuk/weatherbot/storage"
	"github.com/iabalyuk/weatherbot/weatherapi"
	"go.uber.org/zap"
)

const (
	textWelcomeNew = "Welcome! 👋\n\n" +
		"I am your weather bot. To get started, tell me your city.\n" +
		"Please enter the city name:"
	textWelcomeBack = "Welcome back! ✅\n\n" +
		"Your current city: %s\n" +
		"Choose an option from the menu below:"
	textCitySaved       = "City %s saved successfully!"
	textRetryCity       = "❌ %s\nPlease try again:"
	textCityAgain       = "❌ %s\nPlease enter your city again:"
	textEnterCity       = "Enter the name of your city:"
	textCityExpected    = "Please send the city name as text:"
	textNoForecast      = "No forecast data available for %s."
	textServerError     = "❌ A server error occurred: %s. Please try again later."
	textServerErrorBare = "❌ A server error occurred. Please try again later."
	textPressStart      = "Hi! 👋\n\n" +
		"I am your weather bot. Press the 'Start' button to begin."
)

var weatherButtons = map[string]weatherapi.Endpoint{
	ButtonThreeDays: weatherapi.EndpointThreeDays,
	ButtonToday:     weatherapi.EndpointToday,
	ButtonNow:       weatherapi.EndpointNow,
}

// handleMessage routes an incoming message to its handler and persists the conversation
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	session, ok := b.storage.GetSession(chatID)
	if !ok {
		session = storage.Session{UserID: chatID, State: StateIdle}
	}
	conv := newConversation(session, b.logger)

	endpoint, isWeather := weatherButtons[text]
	switch {
	case isStartCommand(message, text):
		b.handleStart(ctx, conv, chatID)
	case conv.awaitingCity():
		b.handleCityInput(ctx, conv, chatID, text)
	case text == ButtonChangeCity:
		b.handleChangeCity(ctx, conv, chatID)
	case isWeather:
		b.handleWeather(ctx, conv, chatID, endpoint)
	default:
		b.send(chatID, textPressStart, startKeyboard())
	}

	if err := b.storage.SaveSession(conv.snapshot(b.now())); err != nil {
		b.logger.Error("Failed to save session", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func isStartCommand(message *tgbotapi.Message, text string) bool {
	if message.IsCommand() {
		return message.Command() == "start"
	}
	return text == ButtonStart
}

// handleStart greets users with a city on file and asks the rest for one
func (b *Bot) handleStart(ctx context.Context, conv *conversation, chatID int64) {
	city, err := b.client.GetUserCity(ctx, chatID)
	if err != nil {
		b.logger.Error("Failed to get user city", zap.Int64("chat_id", chatID), zap.Error(err))
		b.send(chatID, serverErrorText(err), nil)
		return
	}

	if city == "" {
		b.transition(conv.askCity(ctx, chatID), chatID)
		b.send(chatID, textWelcomeNew, removeKeyboard())
		return
	}

	b.transition(conv.citySaved(ctx), chatID)
	b.send(chatID, fmt.Sprintf(textWelcomeBack, city), mainMenuKeyboard())
}

// handleCityInput tries to save the text as the user's city
func (b *Bot) handleCityInput(ctx context.Context, conv *conversation, chatID int64, city string) {
	if city == "" {
		b.send(chatID, textCityExpected, removeKeyboard())
		return
	}

	record, err := b.client.SaveUserCity(ctx, conv.pendingUserID(chatID), city)
	if err != nil {
		var validationErr *weatherapi.ValidationError
		if errors.As(err, &validationErr) {
			b.send(chatID, fmt.Sprintf(textRetryCity, validationErr.Message), removeKeyboard())
			return
		}
		b.logger.Error("Failed to save user city", zap.Int64("chat_id", chatID), zap.Error(err))
		b.send(chatID, serverErrorText(err), removeKeyboard())
		return
	}

	saved := record.City
	if saved == "" {
		saved = city
	}
	b.transition(conv.citySaved(ctx), chatID)
	b.send(chatID, fmt.Sprintf(textCitySaved, saved), mainMenuKeyboard())
}

func (b *Bot) handleChangeCity(ctx context.Context, conv *conversation, chatID int64) {
	b.transition(conv.askCity(ctx, chatID), chatID)
	b.send(chatID, textEnterCity, removeKeyboard())
}

// handleWeather fetches a forecast and sends one message per record
func (b *Bot) handleWeather(ctx context.Context, conv *conversation, chatID int64, endpoint weatherapi.Endpoint) {
	report, err := b.client.GetWeather(ctx, chatID, endpoint)
	if err != nil {
		var validationErr *weatherapi.ValidationError
		if errors.As(err, &validationErr) {
			b.send(chatID, fmt.Sprintf(textCityAgain, validationErr.Message), removeKeyboard())
			b.transition(conv.askCity(ctx, chatID), chatID)
			return
		}
		b.logger.Error("Failed to get weather", zap.Int64("chat_id", chatID),
			zap.String("endpoint", string(endpoint)), zap.Error(err))
		b.send(chatID, serverErrorText(err), nil)
		return
	}

	messages := report.Messages()
	if len(messages) == 0 {
		b.send(chatID, fmt.Sprintf(textNoForecast, report.City), nil)
		return
	}
	for _, text := range messages {
		b.send(chatID, text, nil)
	}
}

// serverErrorText shows backend error details but hides transport internals
func serverErrorText(err error) string {
	var unavailable *weatherapi.ServiceUnavailableError
	if errors.As(err, &unavailable) {
		return fmt.Sprintf(textServerError, unavailable.Error())
	}
	return textServerErrorBare
}
