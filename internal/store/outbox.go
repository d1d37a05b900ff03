package store

import "time"

// QueueOutbox adds a message to the send outbox.
func (db *DB) QueueOutbox(clientMsgID, accountID, recipient, body string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO outbox (client_msg_id, account_id, recipient, body, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'queued', ?, ?)`,
		clientMsgID, accountID, recipient, body, now, now)
	return err
}

// MarkOutboxSending updates an outbox entry to 'sending' and counts the attempt.
func (db *DB) MarkOutboxSending(clientMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sending', attempts = attempts + 1, updated_at = ? WHERE client_msg_id = ?`, now, clientMsgID)
	return err
}

// MarkOutboxSent updates an outbox entry to 'sent'.
func (db *DB) MarkOutboxSent(clientMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'sent', error_message = '', updated_at = ? WHERE client_msg_id = ?`, now, clientMsgID)
	return err
}

// MarkOutboxFailed updates an outbox entry to 'failed' with an error message.
func (db *DB) MarkOutboxFailed(clientMsgID, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ?, updated_at = ? WHERE client_msg_id = ?`, errMsg, now, clientMsgID)
	return err
}

// RequeueOutbox puts a sending entry back in the queue, e.g. after the
// account dropped offline mid-send.
func (db *DB) RequeueOutbox(clientMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE outbox SET status = 'queued', updated_at = ? WHERE client_msg_id = ?`, now, clientMsgID)
	return err
}

// PendingOutbox returns queued entries for an account, oldest first.
func (db *DB) PendingOutbox(accountID string) ([]OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, client_msg_id, account_id, recipient, body, status, error_message, attempts, created_at
		FROM outbox WHERE status = 'queued' AND account_id = ? ORDER BY created_at ASC, id ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ClientMsgID, &e.AccountID, &e.Recipient, &e.Body, &e.Status, &e.ErrorMessage, &e.Attempts, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// OutboxStatus returns the status of an entry, or "" when unknown.
func (db *DB) OutboxStatus(clientMsgID string) (string, error) {
	var status string
	err := db.QueryRow(`SELECT status FROM outbox WHERE client_msg_id = ?`, clientMsgID).Scan(&status)
	if err != nil {
		return "", err
	}
	return status, nil
}
