// Package profile lays out the per-profile directory under ~/.imcore.
// A profile owns one daemon, one accounts.xml and one blist.xml.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/matheus3301/imcore/internal/config"
)

const DefaultName = "main"

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that name conforms to profile naming rules.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid profile name %q: must match ^[a-z0-9_-]{1,64}$", name)
	}
	return nil
}

// Resolve determines the active profile name using precedence:
// 1. flagOverride (--profile flag)
// 2. config.toml default_profile
// 3. "main"
func Resolve(flagOverride string, cfg *config.Config) string {
	if flagOverride != "" {
		return flagOverride
	}
	if cfg != nil && cfg.DefaultProfile != "" {
		return cfg.DefaultProfile
	}
	return DefaultName
}

// Profile is a named directory of user data.
type Profile struct {
	Name string
	Dir  string
}

// New returns the profile name rooted at base/profiles/name.
func New(base, name string) (*Profile, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return &Profile{Name: name, Dir: filepath.Join(base, "profiles", name)}, nil
}

// Open returns the profile name under ~/.imcore.
func Open(name string) (*Profile, error) {
	base, err := config.Dir()
	if err != nil {
		return nil, err
	}
	return New(base, name)
}

// Find resolves the profile a client should talk to. base overrides
// ~/.imcore; the profile name comes from flagOverride or base/config.toml.
func Find(flagOverride, base string) (*Profile, error) {
	if base == "" {
		dir, err := config.Dir()
		if err != nil {
			return nil, err
		}
		base = dir
	}
	cfg, err := config.LoadOrDefault(filepath.Join(base, "config.toml"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return New(base, Resolve(flagOverride, cfg))
}

// AccountsPath is the accounts.xml document.
func (p *Profile) AccountsPath() string { return filepath.Join(p.Dir, "accounts.xml") }

// BlistPath is the blist.xml document.
func (p *Profile) BlistPath() string { return filepath.Join(p.Dir, "blist.xml") }

// DBPath is the app-owned imcore.db: history, outbox, credentials and
// account logs.
func (p *Profile) DBPath() string { return filepath.Join(p.Dir, "imcore.db") }

// WhatsAppDBPath is the whatsmeow device store of one account.
func (p *Profile) WhatsAppDBPath(accountID string) string {
	return filepath.Join(p.Dir, "whatsapp", accountID+".db")
}

// IdentityPath is the age identity protecting stored passwords.
func (p *Profile) IdentityPath() string { return filepath.Join(p.Dir, "identity.age") }

func (p *Profile) SocketPath() string { return filepath.Join(p.Dir, "daemon.sock") }
func (p *Profile) LockPath() string   { return filepath.Join(p.Dir, "LOCK") }
func (p *Profile) LogDir() string     { return filepath.Join(p.Dir, "logs") }
func (p *Profile) LogPath() string    { return filepath.Join(p.LogDir(), "imd.log") }

// EnsureDir creates the profile directory tree with proper permissions.
func (p *Profile) EnsureDir() error {
	dirs := []string{
		p.Dir,
		p.LogDir(),
		filepath.Join(p.Dir, "whatsapp"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
