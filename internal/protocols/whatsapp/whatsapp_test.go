package whatsapp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/request"
)

type fakeAccount struct {
	protocol.Account
	id string
}

func (a fakeAccount) ID() string { return a.id }

type fakeConn struct {
	protocol.Connection
	id string
}

func (c fakeConn) ID() string               { return c.id }
func (c fakeConn) Context() context.Context { return context.Background() }

type fakePrompter struct {
	closed []string
}

func (p *fakePrompter) Info(handle, accountID, title, primary, data string) *request.Request {
	return &request.Request{Handle: handle, AccountID: accountID, Data: data}
}

func (p *fakePrompter) CloseWithHandle(handle string) int {
	p.closed = append(p.closed, handle)
	return 0
}

func TestCanConnectCreatesStoreDir(t *testing.T) {
	base := t.TempDir()
	p := New(Options{DeviceStore: func(id string) string {
		return filepath.Join(base, "whatsapp", id+".db")
	}})

	if err := p.CanConnect(context.Background(), fakeAccount{id: "acct"}); err != nil {
		t.Fatalf("CanConnect() error = %v", err)
	}
	if info, err := os.Stat(filepath.Join(base, "whatsapp")); err != nil || !info.IsDir() {
		t.Errorf("device store dir not created: %v", err)
	}

	if err := New(Options{}).CanConnect(context.Background(), fakeAccount{id: "acct"}); err == nil {
		t.Error("CanConnect() expected error without a device store")
	}
}

func TestCapabilities(t *testing.T) {
	var p protocol.Protocol = New(Options{})
	if _, ok := protocol.As[protocol.Client](p); !ok {
		t.Error("missing Client")
	}
	if _, ok := protocol.As[protocol.IM](p); !ok {
		t.Error("missing IM")
	}
	if _, ok := protocol.As[protocol.Typer](p); !ok {
		t.Error("missing Typer")
	}
	if got := protocol.Normalize(p, nil, "+1 555 0100"); got != "15550100@s.whatsapp.net" {
		t.Errorf("Normalize() = %q", got)
	}
}

func TestCloseWithoutSession(t *testing.T) {
	prompts := &fakePrompter{}
	p := New(Options{Prompter: prompts})
	conn := fakeConn{id: "c1"}

	if err := p.Close(conn); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(prompts.closed) != 1 || prompts.closed[0] != "c1" {
		t.Errorf("closed prompts = %v", prompts.closed)
	}
	if err := p.SendIM(context.Background(), conn, "1", "hi"); !errors.Is(err, errNoSession) {
		t.Errorf("SendIM() error = %v, want errNoSession", err)
	}
	if d := p.SendTyping(conn, "1", protocol.Typing); d != 0 {
		t.Errorf("SendTyping() = %v", d)
	}
}
