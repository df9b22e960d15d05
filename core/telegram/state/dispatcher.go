package state

import (
	"log/slog"
	"sync"

	"github.com/m3rciful/langbot/core/logger"
	tghelpers "github.com/m3rciful/langbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Dispatcher routes free-form updates to the handler registered for the
// sender's current state.
type Dispatcher struct {
	store Store

	mu       sync.RWMutex
	handlers map[State]tele.HandlerFunc
}

// NewDispatcher constructs a Dispatcher reading states from store.
func NewDispatcher(store Store) *Dispatcher {
	return &Dispatcher{
		store:    store,
		handlers: make(map[State]tele.HandlerFunc),
	}
}

// Handle associates a state with its handler. Nil handlers are ignored.
func (d *Dispatcher) Handle(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[st] = h
}

func (d *Dispatcher) lookup(c tele.Context) (State, tele.HandlerFunc) {
	sender := c.Sender()
	if sender == nil || d.store == nil {
		return StateIdle, nil
	}
	ctx := tghelpers.BuildContext(c)
	st, err := d.store.State(ctx, sender.ID)
	if err != nil {
		logger.Warn(ctx, "store", "fsm.state",
			slog.String("status", "fail"),
			slog.Int64("user_id", sender.ID),
			slog.String("err", err.Error()),
		)
		return StateIdle, nil
	}
	d.mu.RLock()
	h := d.handlers[st]
	d.mu.RUnlock()
	return st, h
}

// InProgress reports whether the sender sits in a state that expects input.
func (d *Dispatcher) InProgress(c tele.Context) bool {
	st, h := d.lookup(c)
	return st != StateIdle && h != nil
}

// ManagerHandler executes the handler registered for the sender's state, if any.
func (d *Dispatcher) ManagerHandler(c tele.Context) error {
	st, h := d.lookup(c)
	ctx := tghelpers.BuildContext(c)
	logger.Debug(ctx, "tg", "fsm.manager",
		slog.String("status", "ok"),
		slog.String("state", string(st)),
	)
	if h == nil {
		return nil
	}
	return h(c)
}
