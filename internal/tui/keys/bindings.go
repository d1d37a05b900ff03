package keys

import (
	"sort"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/imcore/internal/tui/ui"
)

// Action is a key bound to a handler.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Label       string
	Description string
	Handler     func()
	Visible     bool
}

// Matches reports whether key and r trigger the action. r is only
// consulted for tcell.KeyRune.
func (a *Action) Matches(key tcell.Key, r rune) bool {
	if a.Key != tcell.KeyRune {
		return key == a.Key
	}
	return key == tcell.KeyRune && r == a.Rune
}

// Registry holds global bindings and bindings scoped to a page.
type Registry struct {
	global map[string]*Action
	pages  map[string]map[string]*Action
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		global: make(map[string]*Action),
		pages:  make(map[string]map[string]*Action),
	}
}

// AddGlobal binds name in every page.
func (r *Registry) AddGlobal(name string, a *Action) {
	r.global[name] = a
}

// AddPage binds name only while page is in front.
func (r *Registry) AddPage(page, name string, a *Action) {
	if r.pages[page] == nil {
		r.pages[page] = make(map[string]*Action)
	}
	r.pages[page][name] = a
}

// Hints returns the menu entries of the visible bindings for page, page
// bindings first, each group sorted by binding name.
func (r *Registry) Hints(page string) []ui.MenuHint {
	var hints []ui.MenuHint
	for _, m := range []map[string]*Action{r.pages[page], r.global} {
		for _, a := range sorted(m) {
			if a.Visible {
				hints = append(hints, ui.MenuHint{Key: a.Label, Description: a.Description})
			}
		}
	}
	return hints
}

// HandleEvent runs the first action matching ev.
func (r *Registry) HandleEvent(page string, ev *tcell.EventKey) bool {
	return r.Dispatch(page, ev.Key(), ev.Rune())
}

// Dispatch runs the first action matching key and ch. Page bindings
// shadow global ones.
func (r *Registry) Dispatch(page string, key tcell.Key, ch rune) bool {
	for _, a := range sorted(r.pages[page]) {
		if a.Matches(key, ch) {
			a.Handler()
			return true
		}
	}
	for _, a := range sorted(r.global) {
		if a.Matches(key, ch) {
			a.Handler()
			return true
		}
	}
	return false
}

func sorted(m map[string]*Action) []*Action {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Action, 0, len(names))
	for _, name := range names {
		out = append(out, m[name])
	}
	return out
}
