package store

import (
	"strings"
	"time"
)

// InsertMessage stores a message. Re-inserting the same msg_id is a no-op.
func (db *DB) InsertMessage(m *Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (msg_id, account_id, conversation_id, author, body, outgoing, flags, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(msg_id) DO NOTHING`,
		m.MsgID, m.AccountID, m.ConversationID, m.Author, m.Body, m.Outgoing, m.Flags, m.Timestamp, time.Now().UnixMilli())
	return err
}

// ListMessages returns messages of a conversation using keyset pagination
// by timestamp, newest first.
func (db *DB) ListMessages(accountID, conversationID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT id, msg_id, account_id, conversation_id, author, body, outgoing, flags, timestamp
		FROM messages
		WHERE account_id = ? AND conversation_id = ? AND timestamp < ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, accountID, conversationID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

// SearchMessages returns messages whose body contains query, newest first.
func (db *DB) SearchMessages(query, accountID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + escapeLike(query) + "%"
	q := `
		SELECT id, msg_id, account_id, conversation_id, author, body, outgoing, flags, timestamp
		FROM messages
		WHERE body LIKE ? ESCAPE '\'`
	args := []any{pattern}
	if accountID != "" {
		q += " AND account_id = ?"
		args = append(args, accountID)
	}
	q += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

// MessageCount returns the total number of stored messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

func scanMessages(rows rowScanner) ([]Message, error) {
	defer func() { _ = rows.Close() }()
	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.MsgID, &m.AccountID, &m.ConversationID, &m.Author, &m.Body, &m.Outgoing, &m.Flags, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
