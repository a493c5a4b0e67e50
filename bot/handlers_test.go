package bot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/iabalyuk/weatherbot/storage"
	"github.com/iabalyuk/weatherbot/weatherapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatID int64 = 100

type recordingSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (r *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		r.sent = append(r.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (r *recordingSender) messages() []tgbotapi.MessageConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]tgbotapi.MessageConfig, len(r.sent))
	copy(out, r.sent)
	return out
}

func (r *recordingSender) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	msgs := r.messages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}

// fakeBackend answers every backend resource with a fixed status and body
type fakeBackend struct {
	mu       sync.Mutex
	routes   map[string]route
	requests []string
	payloads map[string]map[string]any
}

type route struct {
	status int
	body   string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{routes: map[string]route{}, payloads: map[string]map[string]any{}}
}

func (f *fakeBackend) on(path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = route{status: status, body: body}
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	if r.Method == http.MethodPost {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err == nil {
			f.payloads[r.URL.Path] = payload
		}
	}
	rt, ok := f.routes[r.URL.Path]
	f.mu.Unlock()

	if !ok {
		rt = route{status: http.StatusNotFound, body: `{"detail": "Not found."}`}
	}
	w.WriteHeader(rt.status)
	_, _ = io.WriteString(w, rt.body)
}

func (f *fakeBackend) requestLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeBackend) payload(path string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payloads[path]
}

func newTestBot(t *testing.T) (*Bot, *recordingSender, *fakeBackend, *storage.Storage) {
	t.Helper()

	backend := newFakeBackend()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client := weatherapi.NewClient(weatherapi.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	store := storage.New()
	s := &recordingSender{}
	return newBot(s, client, store, nil), s, backend, store
}

func textMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text}
}

func startCommand() *tgbotapi.Message {
	msg := textMessage("/start")
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}}
	return msg
}

func sessionOf(t *testing.T, store *storage.Storage) storage.Session {
	t.Helper()
	session, ok := store.GetSession(chatID)
	require.True(t, ok)
	return session
}

func awaitCity(t *testing.T, store *storage.Storage) {
	t.Helper()
	require.NoError(t, store.SaveSession(storage.Session{UserID: chatID, State: StateAwaitingCity, PendingUserID: chatID}))
}

const dayForecast = `{"city": "moscow", "forecast": [
	{"found_country": "Russia", "found_city": "Moscow", "date": "2024-03-05",
	 "temp_c": [10, 15, 12], "cloud": [20, 40, 30], "humidity": [50, 60, 55], "chance_of_rain": [10, 20, 15]},
	{"found_country": "Russia", "found_city": "Moscow", "date": "2024-03-06",
	 "temp_c": [1], "cloud": [1], "humidity": [1], "chance_of_rain": [1]},
	{"found_country": "Russia", "found_city": "Moscow", "date": "2024-03-07",
	 "temp_c": [2], "cloud": [2], "humidity": [2], "chance_of_rain": [2]}
]}`

func TestStartWithoutCityAsksForOne(t *testing.T) {
	b, sent, backend, store := newTestBot(t)
	backend.on("/city/100/", http.StatusOK, `{"city": null}`)

	b.handleMessage(context.Background(), startCommand())

	msg := sent.last(t)
	assert.Equal(t, textWelcomeNew, msg.Text)
	assert.IsType(t, tgbotapi.ReplyKeyboardRemove{}, msg.ReplyMarkup)

	session := sessionOf(t, store)
	assert.Equal(t, StateAwaitingCity, session.State)
	assert.Equal(t, chatID, session.PendingUserID)
}

func TestStartWithUnknownUserAsksForCity(t *testing.T) {
	b, sent, _, store := newTestBot(t)

	b.handleMessage(context.Background(), textMessage(ButtonStart))

	assert.Equal(t, textWelcomeNew, sent.last(t).Text)
	assert.Equal(t, StateAwaitingCity, sessionOf(t, store).State)
}

func TestStartWithCityShowsMenu(t *testing.T) {
	b, sent, backend, store := newTestBot(t)
	backend.on("/city/100/", http.StatusOK, `{"city": "Moscow", "user": 100}`)
	awaitCity(t, store)

	b.handleMessage(context.Background(), startCommand())

	msg := sent.last(t)
	assert.Contains(t, msg.Text, "Your current city: Moscow")
	assert.Equal(t, mainMenuKeyboard(), msg.ReplyMarkup)

	session := sessionOf(t, store)
	assert.Equal(t, StateIdle, session.State)
	assert.Zero(t, session.PendingUserID)
}

func TestStartBackendFailure(t *testing.T) {
	b, sent, backend, store := newTestBot(t)
	backend.on("/city/100/", http.StatusInternalServerError, `boom`)

	b.handleMessage(context.Background(), startCommand())

	assert.Equal(t, "❌ A server error occurred: service unavailable: boom. Please try again later.", sent.last(t).Text)
	assert.Equal(t, StateIdle, sessionOf(t, store).State)
}

func TestCityInputValidationErrorKeepsWaiting(t *testing.T) {
	b, sent, backend, store := newTestBot(t)
	backend.on("/city/", http.StatusBadRequest, `{"city": ["City not found"]}`)
	awaitCity(t, store)

	b.handleMessage(context.Background(), textMessage("Atlantis"))

	msg := sent.last(t)
	assert.Equal(t, "❌ City not found\nPlease try again:", msg.Text)
	assert.IsType(t, tgbotapi.ReplyKeyboardRemove{}, msg.ReplyMarkup)

	session := sessionOf(t, store)
	assert.Equal(t, StateAwaitingCity, session.State)
	assert.Equal(t, chatID, session.PendingUserID)
}

func TestCityInputSuccessReturnsToIdle(t *testing.T) {
	b, sent, backend, store := newTestBot(t)
	backend.on("/city/", http.StatusOK, `{"city": "Moscow", "user": 100}`)
	awaitCity(t, store)

	b.handleMessage(context.Background(), textMessage("moskva"))

	msg := sent.last(t)
	assert.Equal(t, "City Moscow saved successfully!", msg.Text)
	assert.Equal(t, mainMenuKeyboard(), msg.ReplyMarkup)
	assert.Equal(t, map[string]any{"city": "moskva", "user": 100.0}, backend.payload("/city/"))

	session := sessionOf(t, store)
	assert.Equal(t, StateIdle, session.State)
	assert.Zero(t, session.PendingUserID)
}

func TestCityInputUsesPendingUserID(t *testing.T) {
	b, _, backend, store := newTestBot(t)
	backend.on("/city/", http.StatusOK, `{"city": "Kazan", "user": 7}`)
	require.NoError(t, store.SaveSession(storage.Session{UserID: chatID, State: StateAwaitingCity, PendingUserID: 7}))

	b.handleMessage(context.Background(), textMessage("Kazan"))

	assert.Equal(t, 7.0, backend.payload("/city/")["user"])
}

func TestCityInputServerErrorKeepsWaiting(t *testing.T) {
	b, sent, backend, store := newTestBot(t)
	backend.on("/city/", http.StatusServiceUnavailable, `maintenance`)
	awaitCity(t, store)

	b.handleMessage(context.Background(), textMessage("Moscow"))

	assert.Contains(t, sent.last(t).Text, "maintenance")
	assert.Equal(t, StateAwaitingCity, sessionOf(t, store).State)
}

func TestCityInputWithoutTextSkipsBackend(t *testing.T) {
	b, sent, backend, store := newTestBot(t)
	awaitCity(t, store)

	b.handleMessage(context.Background(), textMessage(""))

	assert.Equal(t, textCityExpected, sent.last(t).Text)
	assert.Empty(t, backend.requestLog())
	assert.Equal(t, StateAwaitingCity, sessionOf(t, store).State)
}

func TestChangeCity(t *testing.T) {
	b, sent, backend, store := newTestBot(t)

	b.handleMessage(context.Background(), textMessage(ButtonChangeCity))

	assert.Equal(t, textEnterCity, sent.last(t).Text)
	assert.Empty(t, backend.requestLog())

	session := sessionOf(t, store)
	assert.Equal(t, StateAwaitingCity, session.State)
	assert.Equal(t, chatID, session.PendingUserID)
}

func TestThreeDayForecastSendsOneMessagePerDay(t *testing.T) {
	b, sent, backend, store := newTestBot(t)
	backend.on("/weather/weather_to_days/", http.StatusOK, dayForecast)

	b.handleMessage(context.Background(), textMessage(ButtonThreeDays))

	msgs := sent.messages()
	require.Len(t, msgs, 3)
	assert.Contains(t, msgs[0].Text, "📅 05.03.2024 from 00:00 to 23:00:")
	assert.Contains(t, msgs[0].Text, "Temperature: 10.0°C...15.0°C (avg 12.3°C)")
	assert.Contains(t, msgs[2].Text, "07.03.2024")
	assert.Equal(t, map[string]any{"user": 100.0, "days": 3.0}, backend.payload("/weather/weather_to_days/"))
	assert.Equal(t, StateIdle, sessionOf(t, store).State)
}

func TestTodayUsesDayFormatter(t *testing.T) {
	b, sent, backend, _ := newTestBot(t)
	backend.on("/weather/today/", http.StatusOK, `{"city": "moscow", "forecast": [
		{"found_country": "Russia", "found_city": "Moscow", "date": "2024-03-05",
		 "temp_c": [3, 4], "cloud": [90, 90], "humidity": [10, 10], "chance_of_rain": [0, 70]}]}`)

	b.handleMessage(context.Background(), textMessage(ButtonToday))

	msgs := sent.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "from 00:00 to 23:00")
	assert.Contains(t, msgs[0].Text, "Chance of rain: 70%")
	assert.NotContains(t, msgs[0].Text, "Conditions")
	assert.Equal(t, 1.0, backend.payload("/weather/today/")["days"])
}

func TestNowUsesInstantFormatter(t *testing.T) {
	b, sent, backend, _ := newTestBot(t)
	backend.on("/weather/now/", http.StatusOK, `{"city": "moscow", "forecast": [
		{"found_country": "Russia", "found_city": "Moscow", "date": "2024-03-05",
		 "temp_c": 5.5, "cloud": 80, "humidity": 90, "chance_of_rain": 60}]}`)

	b.handleMessage(context.Background(), textMessage(ButtonNow))

	msgs := sent.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "Temperature: 5.5°C")
	assert.Contains(t, msgs[0].Text, "Conditions: 🌧️ Rain")
}

func TestWeatherValidationErrorAsksForCity(t *testing.T) {
	b, sent, backend, store := newTestBot(t)
	backend.on("/weather/now/", http.StatusBadRequest, `{"detail": "City not recognised"}`)

	b.handleMessage(context.Background(), textMessage(ButtonNow))

	msg := sent.last(t)
	assert.Equal(t, "❌ City not recognised\nPlease enter your city again:", msg.Text)
	assert.IsType(t, tgbotapi.ReplyKeyboardRemove{}, msg.ReplyMarkup)

	session := sessionOf(t, store)
	assert.Equal(t, StateAwaitingCity, session.State)
	assert.Equal(t, chatID, session.PendingUserID)
}

func TestWeatherServerErrorKeepsState(t *testing.T) {
	b, sent, backend, store := newTestBot(t)
	backend.on("/weather/today/", http.StatusInternalServerError, `internal error`)

	b.handleMessage(context.Background(), textMessage(ButtonToday))

	msg := sent.last(t)
	assert.Equal(t, "❌ A server error occurred: service unavailable: internal error. Please try again later.", msg.Text)
	assert.Nil(t, msg.ReplyMarkup)
	assert.Equal(t, StateIdle, sessionOf(t, store).State)
}

func TestWeatherMalformedResponse(t *testing.T) {
	b, sent, backend, _ := newTestBot(t)
	backend.on("/weather/today/", http.StatusOK, `{"city": "moscow"}`)

	b.handleMessage(context.Background(), textMessage(ButtonToday))

	assert.Equal(t, textServerErrorBare, sent.last(t).Text)
}

func TestWeatherEmptyForecast(t *testing.T) {
	b, sent, backend, _ := newTestBot(t)
	backend.on("/weather/weather_to_days/", http.StatusOK, `{"city": "moscow", "forecast": []}`)

	b.handleMessage(context.Background(), textMessage(ButtonThreeDays))

	assert.Equal(t, "No forecast data available for moscow.", sent.last(t).Text)
}

func TestUnknownMessageShowsStartButton(t *testing.T) {
	b, sent, backend, store := newTestBot(t)

	b.handleMessage(context.Background(), textMessage("hello"))

	msg := sent.last(t)
	assert.Equal(t, textPressStart, msg.Text)
	assert.Equal(t, startKeyboard(), msg.ReplyMarkup)
	assert.Empty(t, backend.requestLog())
	assert.Equal(t, StateIdle, sessionOf(t, store).State)
}

func TestWaitingForCityTakesPrecedenceOverButtons(t *testing.T) {
	b, sent, backend, store := newTestBot(t)
	backend.on("/city/", http.StatusBadRequest, `{"city": ["Unknown city"]}`)
	awaitCity(t, store)

	b.handleMessage(context.Background(), textMessage(ButtonNow))

	assert.Equal(t, []string{"POST /city/"}, backend.requestLog())
	assert.Contains(t, sent.last(t).Text, "Unknown city")
}
