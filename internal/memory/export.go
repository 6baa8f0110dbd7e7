package memory

import (
	"context"
	"database/sql"
	"time"
)

// Export bundles a session's rows for diagnostics and backup.
type Export struct {
	Sessions      []Session             `json:"sessions"`
	Conversations []ConversationMessage `json:"conversations"`
	Facts         []SemanticFact        `json:"facts"`
}

// ExportAll returns all stored rows, optionally filtered by session.
func (s *Store) ExportAll(ctx context.Context, sessionID string) (*Export, error) {
	out := &Export{}

	where, args := "", []interface{}{}
	if sessionID != "" {
		where = " WHERE id = ?"
		args = append(args, sessionID)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, last_active, auto_expire_at, user_cleared FROM sessions`+where+` ORDER BY started_at`, args...)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var sess Session
		var started, active, expire string
		var cleared int
		if err := rows.Scan(&sess.ID, &started, &active, &expire, &cleared); err != nil {
			rows.Close()
			return nil, err
		}
		sess.StartedAt, _ = time.Parse(time.RFC3339, started)
		sess.LastActive, _ = time.Parse(time.RFC3339, active)
		sess.AutoExpireAt, _ = time.Parse(time.RFC3339, expire)
		sess.UserCleared = cleared == 1
		out.Sessions = append(out.Sessions, sess)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	where, args = "", []interface{}{}
	if sessionID != "" {
		where = " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	rows, err = s.db.QueryContext(ctx,
		`SELECT id, session_id, message, is_user, category, urgency, created_at FROM conversations`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var m ConversationMessage
		var isUser int
		var category, urgency sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Message, &isUser, &category, &urgency, &createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		m.IsUser = isUser == 1
		m.Category = category.String
		m.Urgency = urgency.String
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out.Conversations = append(out.Conversations, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, session_id, fact_type, fact_text, source_message_id, importance, extracted_at FROM facts`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var f SemanticFact
		var src sql.NullInt64
		var extractedAt string
		if err := rows.Scan(&f.ID, &f.SessionID, &f.Type, &f.Text, &src, &f.Importance, &extractedAt); err != nil {
			return nil, err
		}
		if src.Valid {
			f.SourceMessageID = src.Int64
		}
		f.ExtractedAt, _ = time.Parse(time.RFC3339, extractedAt)
		out.Facts = append(out.Facts, f)
	}
	return out, rows.Err()
}
