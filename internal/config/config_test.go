package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/imcore/internal/proxy"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.Core.SaveDelay = Duration{2 * time.Second}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.Core.SaveDelay.Duration != 2*time.Second {
		t.Errorf("SaveDelay = %v, want 2s", loaded.Core.SaveDelay)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}

	cfg, err := LoadOrDefault("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.DefaultProfile != "main" || !cfg.Core.AutoOnline {
		t.Errorf("LoadOrDefault() = %+v, want defaults", cfg)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[reconnect]
initial = "1s"
max = "30s"

[proxy]
type = "socks5"
host = "127.0.0.1"
port = 1080
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	p := cfg.ReconnectPolicy()
	if !p.Enabled || p.Initial != time.Second || p.Max != 30*time.Second || p.Burst != 5 {
		t.Errorf("ReconnectPolicy() = %+v", p)
	}
	if cfg.Metrics.Listen != "127.0.0.1:9464" {
		t.Errorf("Metrics.Listen = %q", cfg.Metrics.Listen)
	}

	info, err := cfg.GlobalProxy()
	if err != nil {
		t.Fatalf("GlobalProxy() error = %v", err)
	}
	if info.Type != proxy.SOCKS5 || info.Address() != "127.0.0.1:1080" {
		t.Errorf("GlobalProxy() = %+v", info)
	}
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[core]\nsave_delay = \"soon\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for bad duration")
	}
}

func TestGlobalProxyRejectsUnknownType(t *testing.T) {
	for _, typ := range []string{"carrier-pigeon", "global"} {
		cfg := Default()
		cfg.Proxy.Type = typ
		if _, err := cfg.GlobalProxy(); err == nil {
			t.Errorf("GlobalProxy(%q) expected error", typ)
		}
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan *Config, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config, err error) {
			if err == nil {
				got <- cfg
			}
		})
	}()

	// The watcher may not be registered yet; keep rewriting until a
	// reload is observed.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-got:
			if cfg.DefaultProfile != "reloaded" {
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Watch() error = %v", err)
			}
			return
		case <-tick.C:
			cfg := Default()
			cfg.DefaultProfile = "reloaded"
			if err := Save(path, cfg); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}
