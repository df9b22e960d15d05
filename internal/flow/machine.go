package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/looplab/fsm"

	"github.com/m3rciful/langbot/core/logger"
	"github.com/m3rciful/langbot/core/telegram/state"
)

// ErrIllegalTransition is returned when an event does not apply to the
// user's current step.
var ErrIllegalTransition = errors.New("flow: illegal transition")

type edge struct {
	from  state.State
	event Event
}

// Machine applies the transition table to the steps kept in a state.Store.
type Machine struct {
	store  state.Store
	edges  map[edge]state.State
	events fsm.Events
}

// NewMachine validates table against the closed state and event sets and
// builds a Machine. Unknown names and conflicting edges are rejected here
// rather than at dispatch time.
func NewMachine(store state.Store, table []Transition) (*Machine, error) {
	if store == nil {
		return nil, fmt.Errorf("flow: nil store")
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("flow: empty transition table")
	}
	knownStates := make(map[state.State]struct{}, len(States))
	for _, st := range States {
		knownStates[st] = struct{}{}
	}
	knownEvents := make(map[Event]struct{}, len(Events))
	for _, ev := range Events {
		knownEvents[ev] = struct{}{}
	}

	m := &Machine{store: store, edges: make(map[edge]state.State)}
	for _, tr := range table {
		if _, ok := knownEvents[tr.Event]; !ok {
			return nil, fmt.Errorf("flow: unknown event %q", tr.Event)
		}
		if _, ok := knownStates[tr.To]; !ok {
			return nil, fmt.Errorf("flow: event %q targets unknown state %q", tr.Event, tr.To)
		}
		if len(tr.From) == 0 {
			return nil, fmt.Errorf("flow: event %q has no source state", tr.Event)
		}
		src := make([]string, 0, len(tr.From))
		for _, from := range tr.From {
			if _, ok := knownStates[from]; !ok {
				return nil, fmt.Errorf("flow: event %q leaves unknown state %q", tr.Event, from)
			}
			key := edge{from: from, event: tr.Event}
			if prev, dup := m.edges[key]; dup && prev != tr.To {
				return nil, fmt.Errorf("flow: event %q from %q leads to both %q and %q", tr.Event, from, prev, tr.To)
			}
			m.edges[key] = tr.To
			src = append(src, string(from))
		}
		m.events = append(m.events, fsm.EventDesc{Name: string(tr.Event), Src: src, Dst: string(tr.To)})
	}
	return m, nil
}

// Can reports whether ev applies in from.
func (m *Machine) Can(from state.State, ev Event) bool {
	_, ok := m.edges[edge{from: from, event: ev}]
	return ok
}

// Current returns the user's step.
func (m *Machine) Current(ctx context.Context, userID int64) (state.State, error) {
	st, err := m.store.State(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("flow: read state: %w", err)
	}
	return st, nil
}

// Fire applies ev to the user's current step and stores the result.
func (m *Machine) Fire(ctx context.Context, userID int64, ev Event) (state.State, error) {
	from, err := m.Current(ctx, userID)
	if err != nil {
		return "", err
	}
	to, err := m.next(ctx, from, ev)
	if err != nil {
		logger.Debug(ctx, "flow", "flow.transition",
			slog.String("status", "skip"),
			slog.Int64("user_id", userID),
			slog.String("from", string(from)),
			slog.String("trigger", string(ev)),
		)
		return from, err
	}
	if err := m.store.SetState(ctx, userID, to); err != nil {
		return from, fmt.Errorf("flow: write state: %w", err)
	}
	logger.Debug(ctx, "flow", "flow.transition",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("trigger", string(ev)),
	)
	return to, nil
}

func (m *Machine) next(ctx context.Context, from state.State, ev Event) (state.State, error) {
	f := fsm.NewFSM(string(from), m.events, fsm.Callbacks{})
	err := f.Event(ctx, string(ev))
	var noTransition fsm.NoTransitionError
	if err != nil && !errors.As(err, &noTransition) {
		return from, fmt.Errorf("%w: %s in %s", ErrIllegalTransition, ev, from)
	}
	return state.State(f.Current()), nil
}
