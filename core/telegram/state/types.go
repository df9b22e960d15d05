package state

import (
	"context"
	"errors"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// ErrNilStore is returned by constructors that receive no backing client.
var ErrNilStore = errors.New("state: nil backing client")

// Store persists conversation state per user.
//
// Update merges patch into the existing data; keys absent from patch are
// preserved. Data returns an empty non-nil map when the user has nothing
// stored. State returns StateIdle when no state was set.
type Store interface {
	Data(ctx context.Context, userID int64) (map[string]any, error)
	Update(ctx context.Context, userID int64, patch map[string]any) error
	Clear(ctx context.Context, userID int64) error
	SetState(ctx context.Context, userID int64, st State) error
	State(ctx context.Context, userID int64) (State, error)
}
