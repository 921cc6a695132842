package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stoa-edu/stoa/internal/model"
)

// SaveSessionState upserts the full session snapshot. This is the debounced
// persistence sink: it is called repeatedly for the same session and the
// last write wins.
func (s *Store) SaveSessionState(ctx context.Context, state *model.SessionState) error {
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_states (id, username, state, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET state = ?, updated_at = ?`,
		state.ID, state.Username, string(body), time.Now(), string(body), time.Now(),
	)
	return err
}

// GetSessionState loads a stored snapshot, or nil when none exists.
func (s *Store) GetSessionState(ctx context.Context, id string) (*model.SessionState, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM session_states WHERE id = ?`, id,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state model.SessionState
	if err := json.Unmarshal([]byte(body), &state); err != nil {
		return nil, fmt.Errorf("unmarshal session state %s: %w", id, err)
	}
	return &state, nil
}

// LatestSessionState returns the most recently written snapshot for a
// learner, or nil when they have none.
func (s *Store) LatestSessionState(ctx context.Context, username string) (*model.SessionState, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM session_states WHERE username = ? ORDER BY updated_at DESC LIMIT 1`, username,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state model.SessionState
	if err := json.Unmarshal([]byte(body), &state); err != nil {
		return nil, fmt.Errorf("unmarshal session state for %s: %w", username, err)
	}
	return &state, nil
}
