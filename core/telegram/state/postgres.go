package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresStore keeps conversation state in the conversation_state table.
// Rows not touched within ttl are treated as absent and removed by Purge.
type PostgresStore struct {
	db  *sqlx.DB
	ttl time.Duration
}

// NewPostgresStore constructs a postgres-backed Store.
func NewPostgresStore(db *sqlx.DB, ttl time.Duration) (*PostgresStore, error) {
	if db == nil {
		return nil, ErrNilStore
	}
	return &PostgresStore{db: db, ttl: ttl}, nil
}

func (s *PostgresStore) interval() string {
	secs := int64(s.ttl / time.Second)
	if secs <= 0 {
		// effectively never stale
		return "1000 years"
	}
	return fmt.Sprintf("%d seconds", secs)
}

// Data returns the user's stored values.
func (s *PostgresStore) Data(ctx context.Context, userID int64) (map[string]any, error) {
	query := `
		SELECT data
		FROM conversation_state
		WHERE user_id = $1 AND updated_at > NOW() - $2::interval
	`
	var raw []byte
	err := s.db.GetContext(ctx, &raw, query, userID, s.interval())
	if errors.Is(err, sql.ErrNoRows) {
		return make(map[string]any), nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: selecting data: %w", err)
	}
	return decodeObject(raw)
}

// Update merges patch into the stored JSONB document. A stale row starts
// over from an empty document.
func (s *PostgresStore) Update(ctx context.Context, userID int64, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("state: marshaling patch: %w", err)
	}

	query := `
		INSERT INTO conversation_state (user_id, state, data, updated_at)
		VALUES ($1, 'idle', $2::jsonb, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET data = CASE
				WHEN conversation_state.updated_at > NOW() - $3::interval THEN conversation_state.data
				ELSE '{}'::jsonb
			END || EXCLUDED.data,
			state = CASE
				WHEN conversation_state.updated_at > NOW() - $3::interval THEN conversation_state.state
				ELSE 'idle'
			END,
			updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, userID, string(raw), s.interval()); err != nil {
		return fmt.Errorf("state: updating data: %w", err)
	}
	return nil
}

// Clear deletes the user's row.
func (s *PostgresStore) Clear(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_state WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("state: deleting row: %w", err)
	}
	return nil
}

// SetState records the user's current dialog step.
func (s *PostgresStore) SetState(ctx context.Context, userID int64, st State) error {
	query := `
		INSERT INTO conversation_state (user_id, state, data, updated_at)
		VALUES ($1, $2, '{}'::jsonb, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET state = EXCLUDED.state,
			data = CASE
				WHEN conversation_state.updated_at > NOW() - $3::interval THEN conversation_state.data
				ELSE '{}'::jsonb
			END,
			updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, userID, string(st), s.interval()); err != nil {
		return fmt.Errorf("state: updating state: %w", err)
	}
	return nil
}

// State returns the user's current dialog step, or StateIdle if none exists.
func (s *PostgresStore) State(ctx context.Context, userID int64) (State, error) {
	query := `
		SELECT state
		FROM conversation_state
		WHERE user_id = $1 AND updated_at > NOW() - $2::interval
	`
	var st string
	err := s.db.GetContext(ctx, &st, query, userID, s.interval())
	if errors.Is(err, sql.ErrNoRows) {
		return StateIdle, nil
	}
	if err != nil {
		return StateIdle, fmt.Errorf("state: selecting state: %w", err)
	}
	if st == "" {
		return StateIdle, nil
	}
	return State(st), nil
}

// Purge removes stale rows and reports how many were deleted. It is a no-op
// without a ttl.
func (s *PostgresStore) Purge(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_state WHERE updated_at <= NOW() - $1::interval`, s.interval())
	if err != nil {
		return 0, fmt.Errorf("state: purging rows: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
