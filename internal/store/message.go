package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// InsertMessage stores m and bumps the conversation's last activity. A
// message carrying a client nonce already stored for the same sender and
// conversation is not inserted again: the stored copy is returned with
// inserted=false.
func (db *DB) InsertMessage(m Message) (Message, bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return Message{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`
		INSERT INTO messages (id, conversation_id, sender_id, sender_type, body, client_nonce, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, sender_id, client_nonce) WHERE client_nonce IS NOT NULL DO NOTHING`,
		m.ID, m.ConversationID, m.SenderID, m.SenderType, m.Body, nullable(m.ClientNonce), m.CreatedAt)
	if err != nil {
		return Message{}, false, fmt.Errorf("insert message: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		existing, err := scanMessage(tx.QueryRow(`
			SELECT seq, id, conversation_id, sender_id, sender_type, body, client_nonce, created_at
			FROM messages
			WHERE conversation_id = ? AND sender_id = ? AND client_nonce = ?`,
			m.ConversationID, m.SenderID, m.ClientNonce))
		if err != nil {
			return Message{}, false, fmt.Errorf("select duplicate: %w", err)
		}
		return existing, false, tx.Commit()
	}

	m.Seq, _ = res.LastInsertId()
	if _, err := tx.Exec(`
		UPDATE conversations SET last_message_at = MAX(last_message_at, ?) WHERE id = ?`,
		m.CreatedAt, m.ConversationID); err != nil {
		return Message{}, false, fmt.Errorf("touch conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Message{}, false, fmt.Errorf("commit: %w", err)
	}
	return m, true, nil
}

// ListMessages returns one page of a conversation in ascending order. Page 1
// holds the most recent limit messages.
func (db *DB) ListMessages(conversationID string, page, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	rows, err := db.Query(`
		SELECT seq, id, conversation_id, sender_id, sender_type, body, client_nonce, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ? OFFSET ?`, conversationID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// GetMessage returns a single message by id.
func (db *DB) GetMessage(id string) (Message, error) {
	m, err := scanMessage(db.QueryRow(`
		SELECT seq, id, conversation_id, sender_id, sender_type, body, client_nonce, created_at
		FROM messages WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	return m, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(r rowScanner) (Message, error) {
	var (
		m     Message
		nonce sql.NullString
	)
	if err := r.Scan(&m.Seq, &m.ID, &m.ConversationID, &m.SenderID, &m.SenderType, &m.Body, &nonce, &m.CreatedAt); err != nil {
		return Message{}, err
	}
	m.ClientNonce = nonce.String
	return m, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
