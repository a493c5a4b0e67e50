package bot

import (
	"context"
	"errors"
	"time"

	"github.com/iabalyuk/weatherbot/storage"
	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// Conversation states
const (
	StateIdle         = "idle"
	StateAwaitingCity = "awaiting_city"
)

const (
	eventAskCity = "ask_city"
	eventCitySaved = "city_saved"
)

// conversation is the per-chat state machine, rebuilt from its stored session on every message
type conversation struct {
	session storage.Session
	machine *fsm.FSM
}

func newConversation(session storage.Session, logger *zap.Logger) *conversation {
	initial := session.State
	if initial != StateIdle && initial != StateAwaitingCity {
		initial = StateIdle
	}

	c := &conversation{session: session}
	c.machine = fsm.NewFSM(
		initial,
		fsm.Events{
			{Name: eventAskCity, Src: []string{StateIdle, StateAwaitingCity}, Dst: StateAwaitingCity},
			{Name: eventCitySaved, Src: []string{StateIdle, StateAwaitingCity}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debug("Conversation state changed",
					zap.Int64("chat_id", session.UserID), zap.String("from", e.Src), zap.String("to", e.Dst))
			},
		},
	)
	return c
}

func (c *conversation) awaitingCity() bool {
	return c.machine.Is(StateAwaitingCity)
}

// askCity remembers whose city is being collected and waits for it
func (c *conversation) askCity(ctx context.Context, userID int64) error {
	c.session.PendingUserID = userID
	return c.fire(ctx, eventAskCity)
}

// citySaved returns to idle and forgets the pending user id
func (c *conversation) citySaved(ctx context.Context) error {
	c.session.PendingUserID = 0
	return c.fire(ctx, eventCitySaved)
}

// pendingUserID returns the remembered user id, falling back to the chat id
func (c *conversation) pendingUserID(chatID int64) int64 {
	if c.session.PendingUserID != 0 {
		return c.session.PendingUserID
	}
	return chatID
}

func (c *conversation) fire(ctx context.Context, event string) error {
	err := c.machine.Event(ctx, event)
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return err
	}
	return nil
}

// snapshot returns the session to persist
func (c *conversation) snapshot(now time.Time) storage.Session {
	s := c.session
	s.State = c.machine.Current()
	s.UpdatedAt = now
	return s
}
