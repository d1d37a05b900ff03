package credential

import (
	"context"
	"sync"
)

// Memory keeps passwords for the life of the process.
type Memory struct {
	mu      sync.Mutex
	secrets map[string]string
	writes  int
}

// NewMemory creates an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{secrets: make(map[string]string)}
}

func (m *Memory) ID() string   { return "memory" }
func (m *Memory) Name() string { return "In-memory (not persisted)" }

func (m *Memory) Read(_ context.Context, accountID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pw, ok := m.secrets[accountID]
	if !ok {
		return "", ErrNotFound
	}
	return pw, nil
}

func (m *Memory) Write(_ context.Context, accountID, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[accountID] = password
	m.writes++
	return nil
}

func (m *Memory) Clear(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, accountID)
	return nil
}

// Writes reports how many Write calls the provider served.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
