package store

import (
	"fmt"

	"github.com/google/uuid"
)

// Message is one conversational turn recorded for context-window
// construction by adapters.
type Message struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	TokensIn  int
	TokensOut int
}

// CreateSession inserts a new session row and returns its ID.
func (s *Store) CreateSession() (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`INSERT INTO sessions (session_id) VALUES (?)`, id)
	if err != nil {
		return "", fmt.Errorf("store: create session: %w", err)
	}
	return id, nil
}

// AddMessage appends a message to a session and bumps its last-active
// timestamp.
func (s *Store) AddMessage(m Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`
		INSERT INTO messages (message_id, session_id, role, content, tokens_in, tokens_out)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, m.SessionID, m.Role, m.Content, m.TokensIn, m.TokensOut)
	if err != nil {
		return fmt.Errorf("store: add message: %w", err)
	}
	_, err = s.db.Exec(`UPDATE sessions SET last_active_at = strftime('%s', 'now') WHERE session_id = ?`, m.SessionID)
	return err
}

// ContextMessages returns up to limit most recent messages for a session,
// oldest first, for building generator context windows.
func (s *Store) ContextMessages(sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT message_id, session_id, role, content, tokens_in, tokens_out
		FROM messages WHERE session_id = ? ORDER BY created_at DESC LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.TokensIn, &m.TokensOut); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

func reverse(m []Message) {
	for i, j := 0, len(m)-1; i < j; i, j = i+1, j-1 {
		m[i], m[j] = m[j], m[i]
	}
}
