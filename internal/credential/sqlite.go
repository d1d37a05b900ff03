package credential

import (
	"context"

	"github.com/matheus3301/imcore/internal/store"
	"github.com/rotisserie/eris"
)

// SQLite stores passwords in the profile database in plain text. Prefer
// Age when the profile directory may be shared.
type SQLite struct {
	db *store.DB
}

// NewSQLite creates a provider backed by db.
func NewSQLite(db *store.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) ID() string   { return "sqlite" }
func (s *SQLite) Name() string { return "Profile database (plain text)" }

func (s *SQLite) Read(_ context.Context, accountID string) (string, error) {
	secret, ok, err := s.db.GetCredential(accountID, s.ID())
	if err != nil {
		return "", eris.Wrap(err, "query credential")
	}
	if !ok {
		return "", ErrNotFound
	}
	return string(secret), nil
}

func (s *SQLite) Write(_ context.Context, accountID, password string) error {
	return eris.Wrap(s.db.PutCredential(accountID, s.ID(), []byte(password)), "store credential")
}

func (s *SQLite) Clear(_ context.Context, accountID string) error {
	return eris.Wrap(s.db.DeleteCredential(accountID, s.ID()), "delete credential")
}
