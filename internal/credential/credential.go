// Package credential stores account passwords behind pluggable providers.
//
// Provider methods may block. Manager runs them off the event loop and
// delivers results back on it.
package credential

import (
	"context"
	"sort"
	"sync"

	"github.com/matheus3301/imcore/internal/eventloop"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var (
	ErrNoProvider = eris.New("no active credential provider")
	ErrNotFound   = eris.New("credential not found")
	ErrDuplicate  = eris.New("credential provider already registered")
)

// Provider is a password backend.
type Provider interface {
	ID() string
	Name() string
	// Read returns ErrNotFound when no password is stored.
	Read(ctx context.Context, accountID string) (string, error)
	Write(ctx context.Context, accountID, password string) error
	Clear(ctx context.Context, accountID string) error
}

// Manager owns the registered providers and routes requests to the active
// one.
type Manager struct {
	loop   *eventloop.Loop
	logger *zap.Logger

	mu        sync.RWMutex
	providers map[string]Provider
	active    Provider
}

// NewManager creates a manager with no providers.
func NewManager(loop *eventloop.Loop, logger *zap.Logger) *Manager {
	return &Manager{
		loop:      loop,
		logger:    logger,
		providers: make(map[string]Provider),
	}
}

// Register adds p. The first registered provider becomes active.
func (m *Manager) Register(p Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[p.ID()]; ok {
		return eris.Wrapf(ErrDuplicate, "register %s", p.ID())
	}
	m.providers[p.ID()] = p
	if m.active == nil {
		m.active = p
	}
	return nil
}

// Unregister removes the provider with id. Removing the active provider
// leaves none active.
func (m *Manager) Unregister(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return eris.Wrapf(ErrNoProvider, "unregister %s", id)
	}
	delete(m.providers, id)
	if m.active == p {
		m.active = nil
	}
	return nil
}

// SetActive selects the provider used for reads and writes.
func (m *Manager) SetActive(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return eris.Wrapf(ErrNoProvider, "activate %s", id)
	}
	m.active = p
	m.logger.Info("credential provider activated", zap.String("provider", id))
	return nil
}

// Active returns the active provider, or nil.
func (m *Manager) Active() Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Providers returns the registered provider ids, sorted.
func (m *Manager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.providers))
	for id := range m.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ReadPassword fetches the stored password for accountID. done runs on the
// loop. A missing password is reported as ErrNotFound.
func (m *Manager) ReadPassword(ctx context.Context, accountID string, done func(string, error)) {
	p := m.Active()
	if p == nil {
		m.loop.Post(func() { done("", ErrNoProvider) })
		return
	}
	eventloop.Await(m.loop, ctx, func(ctx context.Context) (string, error) {
		pw, err := p.Read(ctx, accountID)
		if err != nil {
			return "", eris.Wrapf(err, "read password for %s", accountID)
		}
		return pw, nil
	}, done)
}

// WritePassword stores password for accountID. done may be nil.
func (m *Manager) WritePassword(ctx context.Context, accountID, password string, done func(error)) {
	m.run(ctx, "write", accountID, func(ctx context.Context, p Provider) error {
		return p.Write(ctx, accountID, password)
	}, done)
}

// ClearPassword removes any stored password for accountID. done may be nil.
func (m *Manager) ClearPassword(ctx context.Context, accountID string, done func(error)) {
	m.run(ctx, "clear", accountID, func(ctx context.Context, p Provider) error {
		return p.Clear(ctx, accountID)
	}, done)
}

func (m *Manager) run(ctx context.Context, op, accountID string, f func(context.Context, Provider) error, done func(error)) {
	if done == nil {
		done = func(err error) {
			if err != nil {
				m.logger.Warn("credential "+op+" failed", zap.String("account", accountID), zap.Error(err))
			}
		}
	}
	p := m.Active()
	if p == nil {
		m.loop.Post(func() { done(ErrNoProvider) })
		return
	}
	eventloop.Await(m.loop, ctx, func(ctx context.Context) (struct{}, error) {
		if err := f(ctx, p); err != nil {
			return struct{}{}, eris.Wrapf(err, "%s password for %s", op, accountID)
		}
		return struct{}{}, nil
	}, func(_ struct{}, err error) { done(err) })
}
