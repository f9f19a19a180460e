package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("not found")

// directKey identifies the direct thread between two members regardless of order.
func directKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

// FindOrCreateDirect returns the direct conversation between a and b,
// creating it with newID if it does not exist yet. a and b may be equal
// (a note-to-self thread).
func (db *DB) FindOrCreateDirect(a, b, memberType, newID string) (*Conversation, bool, error) {
	key := directKey(a, b)
	now := time.Now().UnixMilli()

	tx, err := db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`
		INSERT INTO conversations (id, direct_key, created_at, last_message_at)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(direct_key) DO NOTHING`, newID, key, now)
	if err != nil {
		return nil, false, fmt.Errorf("insert conversation: %w", err)
	}
	n, _ := res.RowsAffected()
	created := n > 0

	if created {
		for _, member := range uniq(a, b) {
			if _, err := tx.Exec(`
				INSERT INTO participants (conversation_id, member_id, member_type)
				VALUES (?, ?, ?)`, newID, member, memberType); err != nil {
				return nil, false, fmt.Errorf("insert participant: %w", err)
			}
		}
	}

	var id string
	if err := tx.QueryRow(`SELECT id FROM conversations WHERE direct_key = ?`, key).Scan(&id); err != nil {
		return nil, false, fmt.Errorf("select conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}

	c, err := db.GetConversation(id)
	if err != nil {
		return nil, false, err
	}
	return c, created, nil
}

// GetConversation returns a conversation with its participants.
func (db *DB) GetConversation(id string) (*Conversation, error) {
	c := &Conversation{ID: id}
	err := db.QueryRow(`SELECT created_at, last_message_at FROM conversations WHERE id = ?`, id).
		Scan(&c.CreatedAt, &c.LastMessageAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.Participants, err = db.participants(id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// IsParticipant reports whether memberID belongs to the conversation.
func (db *DB) IsParticipant(conversationID, memberID string) (bool, error) {
	var one int
	err := db.QueryRow(`
		SELECT 1 FROM participants WHERE conversation_id = ? AND member_id = ?`,
		conversationID, memberID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// ListConversations returns the conversations memberID takes part in, most
// recently active first, with unread counts computed for memberID.
func (db *DB) ListConversations(memberID string, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT c.id, c.created_at, c.last_message_at,
			(SELECT COUNT(*) FROM messages m
			 WHERE m.conversation_id = c.id
			   AND m.sender_id != p.member_id
			   AND m.created_at > p.last_read_at) AS unread
		FROM conversations c
		JOIN participants p ON p.conversation_id = c.id
		WHERE p.member_id = ?
		ORDER BY c.last_message_at DESC, c.created_at DESC
		LIMIT ?`, memberID, limit)
	if err != nil {
		return nil, err
	}

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.CreatedAt, &c.LastMessageAt, &c.UnreadCount); err != nil {
			_ = rows.Close()
			return nil, err
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range convs {
		if convs[i].Participants, err = db.participants(convs[i].ID); err != nil {
			return nil, err
		}
	}
	return convs, nil
}

// MarkRead moves memberID's read marker forward to at (Unix ms).
func (db *DB) MarkRead(conversationID, memberID string, at int64) error {
	res, err := db.Exec(`
		UPDATE participants SET last_read_at = MAX(last_read_at, ?)
		WHERE conversation_id = ? AND member_id = ?`, at, conversationID, memberID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) participants(conversationID string) ([]Participant, error) {
	rows, err := db.Query(`
		SELECT member_id, member_type, last_read_at
		FROM participants WHERE conversation_id = ?
		ORDER BY member_id`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ps []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.MemberID, &p.MemberType, &p.LastReadAt); err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return ps, rows.Err()
}

func uniq(ids ...string) []string {
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		dup := false
		for _, o := range out {
			if o == id {
				dup = true
			}
		}
		if !dup {
			out = append(out, id)
		}
	}
	return out
}
