package memory

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// DefaultSessionTTL is how long a session stays adoptable after it starts.
const DefaultSessionTTL = 48 * time.Hour

// Store is the SQLite-backed memory store. Construction sweeps expired
// sessions and resolves (or creates) the current one, so stale rows are
// never visible to retrieval.
type Store struct {
	db        *sql.DB
	entropy   *rand.Rand
	ttl       time.Duration
	sessionID string
	now       func() time.Time
}

// Open opens or creates the memory database at the given path.
func Open(dbPath string, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		ttl:     ttl,
		now:     time.Now,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	ctx := context.Background()
	if err := s.sweepExpired(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("expiry sweep: %w", err)
	}
	if err := s.resolveSession(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id             TEXT PRIMARY KEY,
		started_at     TEXT NOT NULL,
		last_active    TEXT NOT NULL,
		auto_expire_at TEXT NOT NULL,
		user_cleared   INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_active ON sessions(last_active DESC);

	CREATE TABLE IF NOT EXISTS conversations (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		message    TEXT NOT NULL,
		is_user    INTEGER NOT NULL,
		category   TEXT,
		urgency    TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations(session_id, id DESC);

	CREATE TABLE IF NOT EXISTS facts (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id        TEXT NOT NULL REFERENCES sessions(id),
		fact_type         TEXT NOT NULL,
		fact_text         TEXT NOT NULL,
		source_message_id INTEGER,
		importance        REAL NOT NULL,
		embedding         BLOB,
		extracted_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_facts_session ON facts(session_id, importance DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) newID() string {
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

// sweepExpired cascade-deletes every expired or user-cleared session in one
// transaction, so retrieval never observes a half-deleted session.
func (s *Store) sweepExpired(ctx context.Context) error {
	now := s.now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM sessions WHERE auto_expire_at < ? OR user_cleared = 1`, now)
	if err != nil {
		return err
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		stale = append(stale, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range stale {
		if err := deleteSessionTx(ctx, tx, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// deleteSessionTx removes a session's facts, then messages, then the
// session row, within the caller's transaction.
func deleteSessionTx(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM facts WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete facts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("delete conversations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// resolveSession adopts the most-recently-active live session or creates a
// fresh one.
func (s *Store) resolveSession(ctx context.Context) error {
	now := s.now().UTC()
	nowStr := now.Format(time.RFC3339)

	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM sessions
		 WHERE auto_expire_at > ? AND user_cleared = 0
		 ORDER BY last_active DESC LIMIT 1`, nowStr).Scan(&id)
	if err == nil {
		s.sessionID = id
		_, err = s.db.ExecContext(ctx, `UPDATE sessions SET last_active = ? WHERE id = ?`, nowStr, id)
		return err
	}
	if err != sql.ErrNoRows {
		return err
	}
	return s.createSession(ctx)
}

func (s *Store) createSession(ctx context.Context) error {
	now := s.now().UTC()
	id := s.newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, last_active, auto_expire_at, user_cleared)
		 VALUES (?, ?, ?, ?, 0)`,
		id, now.Format(time.RFC3339), now.Format(time.RFC3339),
		now.Add(s.ttl).Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	s.sessionID = id
	return nil
}

// SessionID returns the current session's id.
func (s *Store) SessionID() string {
	return s.sessionID
}

// CurrentSession returns the current session row.
func (s *Store) CurrentSession(ctx context.Context) (Session, error) {
	var sess Session
	var started, active, expire string
	var cleared int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, last_active, auto_expire_at, user_cleared FROM sessions WHERE id = ?`,
		s.sessionID).Scan(&sess.ID, &started, &active, &expire, &cleared)
	if err != nil {
		return sess, err
	}
	sess.StartedAt, _ = time.Parse(time.RFC3339, started)
	sess.LastActive, _ = time.Parse(time.RFC3339, active)
	sess.AutoExpireAt, _ = time.Parse(time.RFC3339, expire)
	sess.UserCleared = cleared == 1
	return sess, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}
