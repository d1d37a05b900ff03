package keys

import (
	"reflect"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/imcore/internal/tui/ui"
)

func TestPageBindingShadowsGlobal(t *testing.T) {
	r := NewRegistry()
	var got string
	r.AddGlobal("quit", &Action{Key: tcell.KeyRune, Rune: 'q', Handler: func() { got = "global" }})
	r.AddPage("thread", "back", &Action{Key: tcell.KeyRune, Rune: 'q', Handler: func() { got = "page" }})

	if !r.Dispatch("thread", tcell.KeyRune, 'q') || got != "page" {
		t.Fatalf("thread: got %q, want page", got)
	}
	if !r.Dispatch("accounts", tcell.KeyRune, 'q') || got != "global" {
		t.Fatalf("accounts: got %q, want global", got)
	}
	if r.Dispatch("accounts", tcell.KeyRune, 'x') {
		t.Fatal("unbound rune should not match")
	}
}

func TestSpecialKeys(t *testing.T) {
	r := NewRegistry()
	hit := false
	r.AddGlobal("refresh", &Action{Key: tcell.KeyCtrlR, Handler: func() { hit = true }})

	if !r.Dispatch("any", tcell.KeyCtrlR, 0) || !hit {
		t.Fatal("ctrl-r not dispatched")
	}
}

func TestHintsOrder(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal("quit", &Action{Label: "q", Description: "Quit", Visible: true})
	r.AddGlobal("help", &Action{Label: "?", Description: "Help", Visible: true})
	r.AddGlobal("hidden", &Action{Label: "h", Description: "Secret"})
	r.AddPage("accounts", "toggle", &Action{Label: "e", Description: "Enable", Visible: true})

	want := []ui.MenuHint{
		{Key: "e", Description: "Enable"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
	}
	if got := r.Hints("accounts"); !reflect.DeepEqual(got, want) {
		t.Fatalf("Hints = %v, want %v", got, want)
	}
}
