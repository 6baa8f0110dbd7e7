package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StoreParams holds parameters for appending a conversation turn.
type StoreParams struct {
	Message   string
	IsUser    bool
	SessionID string // empty means current session
	Category  string
	Urgency   string
}

// StoreConversation appends an immutable turn and refreshes session
// activity. Returns the store-assigned message id.
func (s *Store) StoreConversation(ctx context.Context, p StoreParams) (int64, error) {
	sessionID := p.SessionID
	if sessionID == "" {
		sessionID = s.sessionID
	}
	now := s.now().UTC().Format(time.RFC3339)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (session_id, message, is_user, category, urgency, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, p.Message, boolInt(p.IsUser), nullable(p.Category), nullable(p.Urgency), now)
	if err != nil {
		return 0, fmt.Errorf("insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("message id: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_active = ? WHERE id = ?`, now, sessionID); err != nil {
		return id, fmt.Errorf("refresh session activity: %w", err)
	}
	return id, nil
}

// ExtractAndStore derives facts from message text and persists them tied to
// the session and source message. Best-effort: ordinary input that matches
// nothing stores nothing.
func (s *Store) ExtractAndStore(ctx context.Context, message, sessionID string, messageID int64) ([]SemanticFact, error) {
	if sessionID == "" {
		sessionID = s.sessionID
	}
	extracted := Extract(message)
	if len(extracted) == 0 {
		return nil, nil
	}

	now := s.now().UTC()
	facts := make([]SemanticFact, 0, len(extracted))
	for _, e := range extracted {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO facts (session_id, fact_type, fact_text, source_message_id, importance, embedding, extracted_at)
			 VALUES (?, ?, ?, ?, ?, NULL, ?)`,
			sessionID, string(e.Type), e.Text, nullableID(messageID), e.Importance, now.Format(time.RFC3339))
		if err != nil {
			return facts, fmt.Errorf("insert fact: %w", err)
		}
		id, _ := res.LastInsertId()
		facts = append(facts, SemanticFact{
			ID:              id,
			SessionID:       sessionID,
			Type:            e.Type,
			Text:            e.Text,
			SourceMessageID: messageID,
			Importance:      e.Importance,
			ExtractedAt:     now,
		})
	}
	return facts, nil
}

// RelevantFacts returns the session's facts ordered by importance
// descending, then recency descending, capped at limit.
func (s *Store) RelevantFacts(ctx context.Context, sessionID string, limit int) ([]SemanticFact, error) {
	if sessionID == "" {
		sessionID = s.sessionID
	}
	if limit <= 0 {
		limit = 3
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, fact_type, fact_text, source_message_id, importance, extracted_at
		 FROM facts WHERE session_id = ?
		 ORDER BY importance DESC, extracted_at DESC, id DESC
		 LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []SemanticFact
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
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// RecentConversations returns the most recent limit messages for a session
// in chronological (oldest-first) order.
func (s *Store) RecentConversations(ctx context.Context, sessionID string, limit int) ([]ConversationMessage, error) {
	if sessionID == "" {
		sessionID = s.sessionID
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, message, is_user, category, urgency, created_at
		 FROM conversations WHERE session_id = ?
		 ORDER BY id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []ConversationMessage
	for rows.Next() {
		var m ConversationMessage
		var isUser int
		var category, urgency sql.NullString
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Message, &isUser, &category, &urgency, &createdAt); err != nil {
			return nil, err
		}
		m.IsUser = isUser == 1
		m.Category = category.String
		m.Urgency = urgency.String
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The query fetches newest-first; callers expect true chronology.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableID(id int64) interface{} {
	if id <= 0 {
		return nil
	}
	return id
}
