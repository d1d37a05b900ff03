package account

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/imcore/internal/connerr"
	"github.com/matheus3301/imcore/internal/protocols/mock"
	"github.com/matheus3301/imcore/internal/proxy"
)

const legacyDocument = `<?xml version='1.0' encoding='UTF-8' ?>
<account version='1.0'>
 <account>
  <protocol>prpl-jabber</protocol>
  <name>alice@example.org</name>
  <require_password>1</require_password>
  <enabled>1</enabled>
  <alias>Alice</alias>
  <userinfo>hello</userinfo>
  <settings>
   <setting name='require_tls' type='bool'>0</setting>
   <setting name='port' type='int'>abc</setting>
   <setting name='priority' type='int'>5</setting>
   <setting name='ratio' type='float'>1.5</setting>
   <setting type='string'>nameless</setting>
  </settings>
  <settings ui='gtk-gaim'>
   <setting name='auto-login' type='bool'>1</setting>
  </settings>
  <proxy><type>global</type></proxy>
  <current_error><type>99</type><description>boom</description></current_error>
 </account>
 <account><name>orphan</name></account>
 <account>
  <protocol>prpl-mock</protocol>
  <username>bob</username>
  <enabled>0</enabled>
  <proxy><type>socks5</type><host>127.0.0.1</host><port>1080</port></proxy>
  <current_error/>
 </account>
</account>
`

func TestDecodeLegacyDocument(t *testing.T) {
	h := newHarness(t)
	accounts, err := Decode(h.env, []byte(legacyDocument))
	if err != nil {
		t.Fatal(err)
	}
	if got := usernames(accounts); !slices.Equal(got, []string{"alice@example.org", "bob"}) {
		t.Fatalf("accounts = %v", got)
	}

	alice := accounts[0]
	if alice.ID() != GenerateID("prpl-jabber", "alice@example.org") {
		t.Errorf("ID() = %q", alice.ID())
	}
	if !alice.RequirePassword() || !alice.Enabled() {
		t.Errorf("require_password = %v, enabled = %v", alice.RequirePassword(), alice.Enabled())
	}
	if alice.Alias() != "Alice" || alice.UserInfo() != "hello" {
		t.Errorf("alias = %q, userinfo = %q", alice.Alias(), alice.UserInfo())
	}
	if alice.Int("priority", 0) != 5 {
		t.Error("int setting lost")
	}
	for _, name := range []string{"port", "ratio", "auto-login"} {
		if _, ok := alice.Setting(name); ok {
			t.Errorf("setting %q should have been skipped", name)
		}
	}
	if got := alice.String("connection_security", ""); got != "opportunistic_tls" {
		t.Errorf("connection_security = %q", got)
	}
	if alice.Proxy() != nil {
		t.Errorf("default proxy kept: %+v", alice.Proxy())
	}
	if e := alice.Error(); e == nil || e.Kind != connerr.OtherError || e.Description != "boom" {
		t.Errorf("Error() = %+v", e)
	}
	if alice.Connection() != nil {
		t.Error("decoding connected an enabled account")
	}

	bob := accounts[1]
	if bob.Enabled() || bob.Error() != nil {
		t.Errorf("bob enabled = %v, error = %v", bob.Enabled(), bob.Error())
	}
	want := &proxy.Info{Type: proxy.SOCKS5, Host: "127.0.0.1", Port: 1080}
	if p := bob.Proxy(); p == nil || *p != *want {
		t.Errorf("Proxy() = %+v", p)
	}
}

func TestXMPPSecurityMigration(t *testing.T) {
	tests := []struct {
		name     string
		settings string
		want     string
	}{
		{"default", ``, "require_tls"},
		{"old ssl", `<setting name='old_ssl' type='bool'>1</setting>`, "old_ssl"},
		{"optional tls", `<setting name='require_tls' type='bool'>0</setting>`, "opportunistic_tls"},
		{"already set", `<setting name='connection_security' type='string'>none</setting>`, "none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			doc := `<account version='1.0'><account><protocol>prpl-jabber</protocol><name>a@b</name>` +
				`<settings>` + tt.settings + `</settings></account></account>`
			accounts, err := Decode(h.env, []byte(doc))
			if err != nil {
				t.Fatal(err)
			}
			if got := accounts[0].String("connection_security", ""); got != tt.want {
				t.Errorf("connection_security = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := newHarness(t)
	a := h.account("alice")
	a.SetAlias("Alice")
	a.SetUserInfo("about me")
	a.SetRequirePassword(true)
	a.SetString("server", "example.org")
	a.SetString("resource", "")
	a.SetInt("port", 5222)
	a.SetBool("tls", false)
	a.SetProxy(&proxy.Info{Type: proxy.HTTP, Host: "proxy", Port: 3128, Username: "u", Password: "p"})
	a.SetError(connerr.NewInfo(connerr.CertExpired, "expired"))

	data, err := Encode([]*Account{a})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `<account version="1.0">`) {
		t.Errorf("missing root element:\n%s", data)
	}

	out, err := Decode(h.env, data)
	if err != nil {
		t.Fatal(err)
	}
	b := out[0]
	if b.ID() != a.ID() || b.Username() != "alice" || b.ProtocolID() != mock.ID {
		t.Errorf("identity = %s %s %s", b.ID(), b.Username(), b.ProtocolID())
	}
	if !b.Enabled() || !b.RequirePassword() || b.Alias() != "Alice" || b.UserInfo() != "about me" {
		t.Errorf("fields not restored: %+v", b)
	}
	if b.String("server", "") != "example.org" || b.Int("port", 0) != 5222 || b.Bool("tls", true) {
		t.Error("settings not restored")
	}
	if got := b.String("resource", "DEFAULT"); got != "" {
		t.Errorf("empty string setting = %q, want it kept", got)
	}
	if p := b.Proxy(); p == nil || *p != *a.Proxy() {
		t.Errorf("Proxy() = %+v", p)
	}
	if !b.Error().Equal(a.Error()) {
		t.Errorf("Error() = %v, want %v", b.Error(), a.Error())
	}
}

func TestTransientErrorNotPersisted(t *testing.T) {
	h := newHarness(t)
	a := h.account("alice")
	a.SetError(connerr.NewInfo(connerr.NetworkError, "reset"))

	data, err := Encode([]*Account{a})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<current_error></current_error>") {
		t.Errorf("expected an empty current_error:\n%s", data)
	}
	out, err := Decode(h.env, data)
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Error() != nil {
		t.Errorf("transient error restored: %v", out[0].Error())
	}
}

func TestManagerLoadSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.xml")

	h := newHarness(t)
	m := NewManager(h.env, path, time.Second)
	if err := m.Save(); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("Save() before Load = %v", err)
	}
	if err := m.Load(); err != nil {
		t.Fatalf("Load() of missing file = %v", err)
	}
	for _, name := range []string{"a", "b", "c"} {
		m.Add(m.NewAccount(name, mock.ID))
	}
	if err := m.Flush(); err != nil {
		t.Fatal(err)
	}

	h2 := newHarness(t)
	m2 := NewManager(h2.env, path, time.Second)
	if err := m2.Load(); err != nil {
		t.Fatal(err)
	}
	if got := usernames(m2.All()); !slices.Equal(got, []string{"c", "b", "a"}) {
		t.Errorf("loaded order = %v", got)
	}
	if m2.SavePending() {
		t.Error("loading scheduled a save")
	}
}

func TestSaveDebounceCoalesces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.xml")
	h := newHarness(t)
	m := NewManager(h.env, path, 5*time.Second)
	if err := m.Load(); err != nil {
		t.Fatal(err)
	}
	a := m.NewAccount("alice", mock.ID)
	m.Add(a)

	h.loop.Advance(3 * time.Second)
	a.SetAlias("x")
	h.loop.Advance(time.Second)
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("written too early: %v", err)
	}
	h.loop.Advance(time.Second)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("not written after the first deadline: %v", err)
	}
	if !strings.Contains(string(data), "<alias>x</alias>") {
		t.Errorf("later change missing from the save:\n%s", data)
	}
	if m.SavePending() {
		t.Error("save still pending")
	}
}
