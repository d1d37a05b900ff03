package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/imcore/internal/api"
	"github.com/matheus3301/imcore/internal/config"
	"github.com/matheus3301/imcore/internal/lock"
	"github.com/matheus3301/imcore/internal/profile"
	"github.com/matheus3301/imcore/internal/protocols/mock"
	"go.uber.org/fx"
)

// testParams writes a config that keeps metrics on an ephemeral port and
// returns params rooted in a short temp dir (macOS 104-char socket limit).
func testParams(t *testing.T) Params {
	t.Helper()
	base, err := os.MkdirTemp("/tmp", "imcore-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(base) })

	cfg := config.Default()
	cfg.Metrics.Listen = "127.0.0.1:0"
	cfg.Credentials.Provider = "memory"
	if err := config.Save(filepath.Join(base, "config.toml"), cfg); err != nil {
		t.Fatal(err)
	}
	return Params{
		Profile:    "test",
		BaseDir:    base,
		SocketPath: filepath.Join(base, "d.sock"),
	}
}

func TestFxModuleWiring(t *testing.T) {
	if err := fx.ValidateApp(Module(testParams(t)), fx.NopLogger); err != nil {
		t.Fatalf("ValidateApp() error = %v", err)
	}
}

func TestDaemonLifecycle(t *testing.T) {
	p := testParams(t)
	app := fx.New(Module(p), fx.NopLogger)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	conn, err := api.Dial(p.SocketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()

	st, err := api.NewCoreClient(conn).Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Profile != "test" || st.State != "READY" {
		t.Errorf("status = %+v, want profile test READY", st)
	}
	if len(st.Protocols) != 2 {
		t.Errorf("protocols = %+v, want mock and whatsapp", st.Protocols)
	}

	accounts := api.NewAccountClient(conn)
	if _, err := accounts.Add(ctx, &api.AddAccountRequest{Username: "alice", ProtocolID: mock.ID, Enabled: true}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	prof, err := profile.New(p.BaseDir, p.Profile)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lock.Acquire(prof.LockPath(), lock.Owner{}); err == nil {
		t.Error("profile lock not held while running")
	}

	if err := app.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if _, err := os.Stat(p.SocketPath); !os.IsNotExist(err) {
		t.Errorf("socket left behind: %v", err)
	}
	if _, err := os.Stat(prof.AccountsPath()); err != nil {
		t.Errorf("accounts.xml not written on stop: %v", err)
	}
	lk, err := lock.Acquire(prof.LockPath(), lock.Owner{})
	if err != nil {
		t.Fatalf("lock not released: %v", err)
	}
	_ = lk.Release()
}

func TestSecondDaemonFails(t *testing.T) {
	p := testParams(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first := fx.New(Module(p), fx.NopLogger)
	if err := first.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = first.Stop(ctx) }()

	p.SocketPath = filepath.Join(p.BaseDir, "d2.sock")
	second := fx.New(Module(p), fx.NopLogger)
	if err := second.Err(); err == nil {
		t.Error("second daemon started on a locked profile")
	}
}
