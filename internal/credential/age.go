package credential

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"github.com/matheus3301/imcore/internal/store"
	"github.com/rotisserie/eris"
)

// Age stores passwords in the profile database encrypted to an age X25519
// identity kept in a key file next to it.
type Age struct {
	db        *store.DB
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewAge loads the identity at keyPath, generating it (mode 0600) when the
// file does not exist.
func NewAge(db *store.DB, keyPath string) (*Age, error) {
	identity, err := loadOrCreateIdentity(keyPath)
	if err != nil {
		return nil, err
	}
	return &Age{db: db, identity: identity, recipient: identity.Recipient()}, nil
}

func loadOrCreateIdentity(path string) (*age.X25519Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, eris.Wrapf(err, "parse age identity %s", path)
		}
		return identity, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrapf(err, "read age identity %s", path)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, eris.Wrap(err, "generate age identity")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, eris.Wrap(err, "create key dir")
	}
	if err := os.WriteFile(path, []byte(identity.String()+"\n"), 0o600); err != nil {
		return nil, eris.Wrapf(err, "write age identity %s", path)
	}
	return identity, nil
}

func (a *Age) ID() string   { return "age" }
func (a *Age) Name() string { return "Profile database (age encrypted)" }

// Recipient returns the public key passwords are encrypted to.
func (a *Age) Recipient() string { return a.recipient.String() }

func (a *Age) Read(_ context.Context, accountID string) (string, error) {
	ciphertext, ok, err := a.db.GetCredential(accountID, a.ID())
	if err != nil {
		return "", eris.Wrap(err, "query credential")
	}
	if !ok {
		return "", ErrNotFound
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), a.identity)
	if err != nil {
		return "", eris.Wrap(err, "decrypt credential")
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", eris.Wrap(err, "read decrypted credential")
	}
	return string(plaintext), nil
}

func (a *Age) Write(_ context.Context, accountID, password string) error {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, a.recipient)
	if err != nil {
		return eris.Wrap(err, "create age encryptor")
	}
	if _, err := io.WriteString(w, password); err != nil {
		return eris.Wrap(err, "encrypt credential")
	}
	if err := w.Close(); err != nil {
		return eris.Wrap(err, "finalize age encryption")
	}
	return eris.Wrap(a.db.PutCredential(accountID, a.ID(), buf.Bytes()), "store credential")
}

func (a *Age) Clear(_ context.Context, accountID string) error {
	return eris.Wrap(a.db.DeleteCredential(accountID, a.ID()), "delete credential")
}
