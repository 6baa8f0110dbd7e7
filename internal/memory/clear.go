package memory

import (
	"context"
	"fmt"
)

// ClearSession cascade-deletes one session's facts, messages, and row. If
// the current session is cleared, a fresh one replaces it.
func (s *Store) ClearSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		sessionID = s.sessionID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := deleteSessionTx(ctx, tx, sessionID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if sessionID == s.sessionID {
		return s.createSession(ctx)
	}
	return nil
}

// ClearCurrentSession clears the active session and starts a new one.
func (s *Store) ClearCurrentSession(ctx context.Context) error {
	return s.ClearSession(ctx, "")
}

// ClearAll removes every session, message, and fact, then creates a fresh
// session so the store is immediately usable.
func (s *Store) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM facts`,
		`DELETE FROM conversations`,
		`DELETE FROM sessions`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear all: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	return s.createSession(ctx)
}

// MemoryStats returns aggregate counts across all sessions.
func (s *Store) MemoryStats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&st.Conversations); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts`).Scan(&st.Facts); err != nil {
		return st, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&st.Sessions); err != nil {
		return st, err
	}
	return st, nil
}
