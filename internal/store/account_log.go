package store

import "time"

// AppendAccountLog adds a line to the account's system log.
func (db *DB) AppendAccountLog(accountID, kind, message string, at time.Time) error {
	_, err := db.Exec(`
		INSERT INTO account_log (account_id, kind, message, logged_at)
		VALUES (?, ?, ?, ?)`,
		accountID, kind, message, at.UnixMilli())
	return err
}

// AccountLog returns the most recent entries for an account, newest first.
func (db *DB) AccountLog(accountID string, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT id, account_id, kind, message, logged_at
		FROM account_log
		WHERE account_id = ?
		ORDER BY logged_at DESC, id DESC
		LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Kind, &e.Message, &e.LoggedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteAccountLog drops every log line of an account.
func (db *DB) DeleteAccountLog(accountID string) error {
	_, err := db.Exec(`DELETE FROM account_log WHERE account_id = ?`, accountID)
	return err
}
