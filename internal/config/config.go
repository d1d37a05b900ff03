// Package config reads the global ~/.imcore/config.toml.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/matheus3301/imcore/internal/account"
	"github.com/matheus3301/imcore/internal/proxy"
)

// Duration is a time.Duration written as a string such as "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config represents the global ~/.imcore/config.toml.
type Config struct {
	DefaultProfile string      `toml:"default_profile"`
	Core           Core        `toml:"core"`
	Credentials    Credentials `toml:"credentials"`
	Proxy          Proxy       `toml:"proxy"`
	Reconnect      Reconnect   `toml:"reconnect"`
	Metrics        Metrics     `toml:"metrics"`
	Log            Log         `toml:"log"`
}

type Core struct {
	SaveDelay  Duration `toml:"save_delay"`
	SystemLog  bool     `toml:"system_log"`
	AutoOnline bool     `toml:"auto_online"`
}

type Credentials struct {
	// Provider is "age", "sqlite" or "memory".
	Provider string `toml:"provider"`
}

// Proxy is the global proxy accounts fall back to.
type Proxy struct {
	Type     string `toml:"type"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type Reconnect struct {
	Enabled bool     `toml:"enabled"`
	Initial Duration `toml:"initial"`
	Max     Duration `toml:"max"`
	Burst   int      `toml:"burst"`
}

type Log struct {
	// Level is debug, info, warn or error. It can change while the
	// daemon runs.
	Level string `toml:"level"`
}

type Metrics struct {
	// Listen is the address of the metrics endpoint; empty disables it.
	Listen string `toml:"listen"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	p := account.DefaultReconnectPolicy
	return &Config{
		DefaultProfile: "main",
		Core: Core{
			SaveDelay:  Duration{5 * time.Second},
			SystemLog:  true,
			AutoOnline: true,
		},
		Credentials: Credentials{Provider: "age"},
		Proxy:       Proxy{Type: proxy.None.String()},
		Reconnect: Reconnect{
			Enabled: p.Enabled,
			Initial: Duration{p.Initial},
			Max:     Duration{p.Max},
			Burst:   p.Burst,
		},
		Metrics: Metrics{Listen: "127.0.0.1:9464"},
		Log:     Log{Level: "info"},
	}
}

// Dir is ~/.imcore.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".imcore"), nil
}

// DefaultPath is ~/.imcore/config.toml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads config from the given path on top of Default. Returns nil
// and an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default when the file does not
// exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// GlobalProxy converts the [proxy] section. An unknown type is an error.
func (c *Config) GlobalProxy() (*proxy.Info, error) {
	if c.Proxy.Type == "" {
		return &proxy.Info{Type: proxy.None}, nil
	}
	t, ok := proxy.ParseType(c.Proxy.Type)
	if !ok || t == proxy.UseGlobal {
		return nil, fmt.Errorf("proxy type %q: %w", c.Proxy.Type, proxy.ErrUnsupported)
	}
	return &proxy.Info{
		Type:     t,
		Host:     c.Proxy.Host,
		Port:     c.Proxy.Port,
		Username: c.Proxy.Username,
		Password: c.Proxy.Password,
	}, nil
}

// ReconnectPolicy converts the [reconnect] section.
func (c *Config) ReconnectPolicy() account.ReconnectPolicy {
	p := account.ReconnectPolicy{
		Enabled: c.Reconnect.Enabled,
		Initial: c.Reconnect.Initial.Duration,
		Max:     c.Reconnect.Max.Duration,
		Burst:   c.Reconnect.Burst,
	}
	def := account.DefaultReconnectPolicy
	if p.Initial <= 0 {
		p.Initial = def.Initial
	}
	if p.Max < p.Initial {
		p.Max = p.Initial
	}
	if p.Burst <= 0 {
		p.Burst = def.Burst
	}
	return p
}

// Watch calls fn with the reloaded file each time it is written or
// recreated, until ctx is done. The parent directory is watched so
// editors that replace the file are followed.
func Watch(ctx context.Context, path string, fn func(*Config, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			fn(Load(path))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fn(nil, err)
		}
	}
}
