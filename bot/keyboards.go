package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Reply keyboard buttons. Pressing one sends its text as a message.
const (
	ButtonStart      = "Start"
	ButtonChangeCity = "Change city"
	ButtonThreeDays  = "3-day forecast"
	ButtonToday      = "Today"
	ButtonNow        = "Now"
)

// startKeyboard returns the keyboard shown before the user has started
func startKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonStart)),
	)
	keyboard.ResizeKeyboard = true
	return keyboard
}

// mainMenuKeyboard returns the keyboard with city and forecast options
func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonChangeCity)),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(ButtonThreeDays),
			tgbotapi.NewKeyboardButton(ButtonToday),
			tgbotapi.NewKeyboardButton(ButtonNow),
		),
	)
	keyboard.ResizeKeyboard = true
	return keyboard
}

func removeKeyboard() tgbotapi.ReplyKeyboardRemove {
	return tgbotapi.NewRemoveKeyboard(true)
}
