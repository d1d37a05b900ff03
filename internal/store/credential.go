package store

import (
	"database/sql"
	"errors"
	"time"
)

// PutCredential stores secret for (accountID, provider), replacing any
// previous value.
func (db *DB) PutCredential(accountID, provider string, secret []byte) error {
	_, err := db.Exec(`
		INSERT INTO credentials (account_id, provider, secret, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id, provider) DO UPDATE SET
			secret = excluded.secret,
			updated_at = excluded.updated_at`,
		accountID, provider, secret, time.Now().UnixMilli())
	return err
}

// GetCredential returns the stored secret. ok is false when none exists.
func (db *DB) GetCredential(accountID, provider string) (secret []byte, ok bool, err error) {
	err = db.QueryRow(`SELECT secret FROM credentials WHERE account_id = ? AND provider = ?`,
		accountID, provider).Scan(&secret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return secret, true, nil
}

// DeleteCredential removes the stored secret, if any.
func (db *DB) DeleteCredential(accountID, provider string) error {
	_, err := db.Exec(`DELETE FROM credentials WHERE account_id = ? AND provider = ?`, accountID, provider)
	return err
}
