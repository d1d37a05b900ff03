package protocol

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrNotFound          = errors.New("protocol not found")
	ErrDuplicate         = errors.New("protocol already registered")
	ErrMissingCapability = errors.New("protocol missing required capability")
)

// Registry holds the available protocols by id.
type Registry struct {
	mu        sync.RWMutex
	protocols map[string]Protocol
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{protocols: make(map[string]Protocol)}
}

// Register adds p. Capabilities are checked here, once.
func (r *Registry) Register(p Protocol) error {
	if p.ID() == "" {
		return fmt.Errorf("register protocol: empty id")
	}
	if _, ok := As[Client](p); !ok {
		return fmt.Errorf("register %s: %w: client", p.ID(), ErrMissingCapability)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.protocols[p.ID()]; ok {
		return fmt.Errorf("register %s: %w", p.ID(), ErrDuplicate)
	}
	r.protocols[p.ID()] = p
	return nil
}

// Unregister removes the protocol with id.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.protocols[id]; !ok {
		return fmt.Errorf("unregister %s: %w", id, ErrNotFound)
	}
	delete(r.protocols, id)
	return nil
}

// Find returns the protocol with id.
func (r *Registry) Find(id string) (Protocol, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.protocols[id]
	return p, ok
}

// All returns the registered protocols sorted by id.
func (r *Registry) All() []Protocol {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Protocol, 0, len(r.protocols))
	for _, p := range r.protocols {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Capabilities lists the optional capabilities p implements.
func Capabilities(p Protocol) []string {
	var caps []string
	if _, ok := As[Normalizer](p); ok {
		caps = append(caps, "normalize")
	}
	if _, ok := As[Keepaliver](p); ok {
		caps = append(caps, "keepalive")
	}
	if _, ok := As[StatusSetter](p); ok {
		caps = append(caps, "set-status")
	}
	if _, ok := As[Privacy](p); ok {
		caps = append(caps, "privacy")
	}
	if _, ok := As[IM](p); ok {
		caps = append(caps, "im")
	}
	if _, ok := As[Typer](p); ok {
		caps = append(caps, "typing")
	}
	if _, ok := As[Chat](p); ok {
		caps = append(caps, "chat")
	}
	return caps
}
