package proxy

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestTypeRoundTrip(t *testing.T) {
	for typ, name := range typeNames {
		got, ok := ParseType(name)
		if !ok || got != typ {
			t.Errorf("ParseType(%q) = (%v, %v), want %v", name, got, ok, typ)
		}
		if typ.String() != name {
			t.Errorf("%d.String() = %q, want %q", typ, typ.String(), name)
		}
	}
	if _, ok := ParseType("carrier-pigeon"); ok {
		t.Error("unknown type parsed")
	}
}

func TestIsDefault(t *testing.T) {
	var nilInfo *Info
	if !nilInfo.IsDefault() {
		t.Error("nil info not default")
	}
	if !(&Info{}).IsDefault() {
		t.Error("zero info not default")
	}
	if (&Info{Port: 8080}).IsDefault() {
		t.Error("info with port reported default")
	}
	if (&Info{Type: None}).IsDefault() {
		t.Error("type none reported default")
	}
}

func TestResolve(t *testing.T) {
	global := &Info{Type: SOCKS5, Host: "proxy.local", Port: 1080}
	r := NewResolver(global)

	got, err := r.Resolve(nil)
	if err != nil || got.Type != SOCKS5 || got.Host != "proxy.local" {
		t.Fatalf("Resolve(nil) = %+v, %v", got, err)
	}
	got.Host = "mutated"
	if global.Host != "proxy.local" {
		t.Error("Resolve returned the global info without copying")
	}

	own := &Info{Type: HTTP, Host: "h", Port: 3128}
	got, _ = r.Resolve(own)
	if got.Type != HTTP || got.Port != 3128 {
		t.Errorf("Resolve(own) = %+v", got)
	}

	none := NewResolver(nil)
	got, _ = none.Resolve(&Info{Type: UseGlobal})
	if got.Type != None {
		t.Errorf("Resolve without global = %v, want none", got.Type)
	}
}

func TestResolveEnvVar(t *testing.T) {
	r := NewResolver(nil)
	r.Getenv = func(key string) string {
		if key == "HTTP_PROXY" {
			return "socks5://alice:pw@10.0.0.1:9999"
		}
		return ""
	}
	got, err := r.Resolve(&Info{Type: UseEnvVar})
	if err != nil {
		t.Fatal(err)
	}
	want := Info{Type: SOCKS5, Host: "10.0.0.1", Port: 9999, Username: "alice", Password: "pw"}
	if *got != want {
		t.Errorf("Resolve(envvar) = %+v, want %+v", *got, want)
	}
}

func TestParseURLDefaults(t *testing.T) {
	got, err := ParseURL("http://proxy.example")
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != HTTP || got.Port != 8080 {
		t.Errorf("ParseURL(http) = %+v", got)
	}
	if _, err := ParseURL("gopher://x"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("ParseURL(gopher) err = %v, want ErrUnsupported", err)
	}
}

func TestDialerUnsupported(t *testing.T) {
	for _, typ := range []Type{HTTP, SOCKS4} {
		if _, err := Dialer(&Info{Type: typ, Host: "h", Port: 1}); !errors.Is(err, ErrUnsupported) {
			t.Errorf("Dialer(%s) err = %v, want ErrUnsupported", typ, err)
		}
	}
	if _, err := Dialer(&Info{Type: SOCKS5, Host: "127.0.0.1", Port: 1080}); err != nil {
		t.Errorf("Dialer(socks5) err = %v", err)
	}
}

func TestConnectorDirectDial(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			_ = c.Close()
		}
	}()

	c := NewConnector(NewResolver(nil))
	conn, err := c.Dial(context.Background(), "conn-1", nil, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	_ = conn.Close()
	if n := c.Pending("conn-1"); n != 0 {
		t.Errorf("Pending() after dial = %d, want 0", n)
	}
}

func TestConnectorCancelHandle(t *testing.T) {
	c := NewConnector(NewResolver(nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.register("conn-1", cancel)
	c.register("conn-2", func() {})

	if n := c.CancelHandle("conn-1"); n != 1 {
		t.Errorf("CancelHandle() = %d, want 1", n)
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("attempt not cancelled")
	}
	if c.Pending("conn-2") != 1 {
		t.Error("unrelated handle cancelled")
	}
}
