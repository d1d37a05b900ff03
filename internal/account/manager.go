package account

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/persist"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/signal"
	"go.uber.org/zap"
)

// Change names an account and the property or setting that changed.
type Change struct {
	Account *Account
	Name    string
}

type subscription struct {
	changed      signal.Handle
	setting      signal.Handle
	connected    signal.Handle
	disconnected signal.Handle
}

// Manager owns the registered accounts, newest first, and persists them to
// accounts.xml.
type Manager struct {
	env    *Env
	logger *zap.Logger
	path   string
	saver  *persist.Saver
	loaded bool
	// loading suppresses saves while the document is being read back.
	loading bool

	accounts []*Account
	subs     map[*Account]subscription
	online   bool

	Added               signal.Signal[*Account]
	Removed             signal.Signal[*Account]
	AccountChanged      signal.Signal[Change]
	SettingChanged      signal.Signal[Change]
	AccountConnected    signal.Signal[*Account]
	AccountDisconnected signal.Signal[*Account]
	OnlineChanged       signal.Signal[bool]
}

// NewManager creates a manager persisting to path. An empty path keeps
// accounts in memory only.
func NewManager(env *Env, path string, saveDelay time.Duration) *Manager {
	m := &Manager{
		env:    env,
		logger: env.Logger.Named("accounts"),
		path:   path,
		subs:   make(map[*Account]subscription),
	}
	m.saver = persist.NewSaver(env.Loop, saveDelay, m.Save, m.logger)
	return m
}

// Env returns the collaborators accounts are created with.
func (m *Manager) Env() *Env { return m.env }

// NewAccount creates an unregistered account bound to the manager's
// environment.
func (m *Manager) NewAccount(username, protocolID string) *Account {
	return New(m.env, "", username, protocolID)
}

// Add registers a at the front of the list and connects it when it is
// enabled and the manager is online. Adding a registered account does
// nothing.
func (m *Manager) Add(a *Account) {
	if slices.Contains(m.accounts, a) {
		return
	}
	m.accounts = slices.Insert(m.accounts, 0, a)
	a.manager = m

	m.subs[a] = subscription{
		changed: a.Changed.Connect(func(prop string) {
			if prop == PropEnabled {
				m.enabledChanged(a)
			}
			m.AccountChanged.Emit(Change{Account: a, Name: prop})
		}),
		setting: a.SettingChanged.Connect(func(name string) {
			m.SettingChanged.Emit(Change{Account: a, Name: name})
		}),
		connected: a.Connected.Connect(func(a *Account) {
			m.AccountConnected.Emit(a)
		}),
		disconnected: a.Disconnected.Connect(func(a *Account) {
			m.AccountDisconnected.Emit(a)
		}),
	}

	m.scheduleSave()
	m.Added.Emit(a)
	m.env.publish(bus.AccountAdded, a.payload(""))

	if m.online && a.enabled {
		a.Connect()
	}
}

func (m *Manager) enabledChanged(a *Account) {
	if a.enabled && m.online {
		a.Connect()
	} else if a.IsConnected() {
		if err := a.Disconnect(); err != nil {
			m.logger.Warn("disconnect on disable failed", zap.Error(err))
		}
	}
}

// Remove unregisters a. Its error is cleared so listeners drop anything
// tied to it.
func (m *Manager) Remove(a *Account) {
	if i := slices.Index(m.accounts, a); i >= 0 {
		m.accounts = slices.Delete(m.accounts, i, i+1)
	}
	if sub, ok := m.subs[a]; ok {
		a.Changed.Disconnect(sub.changed)
		a.SettingChanged.Disconnect(sub.setting)
		a.Connected.Disconnect(sub.connected)
		a.Disconnected.Disconnect(sub.disconnected)
		delete(m.subs, a)
	}

	m.scheduleSave()
	a.SetError(nil)
	a.manager = nil

	m.Removed.Emit(a)
	m.env.publish(bus.AccountRemoved, a.payload(""))
}

// Delete disables a, unregisters it and clears its stored password.
func (m *Manager) Delete(a *Account) {
	a.SetEnabled(false)
	m.env.Requests.CloseWithHandle(a.id)
	m.Remove(a)
	if m.env.Credentials == nil {
		return
	}
	m.env.Credentials.ClearPassword(context.Background(), a.id, func(err error) {
		if err != nil {
			m.logger.Warn("failed to remove password", zap.String("account", a.username), zap.Error(err))
		}
	})
}

// Reorder moves a to index. The index refers to the list before a is
// taken out.
func (m *Manager) Reorder(a *Account, index int) error {
	old := slices.Index(m.accounts, a)
	if old < 0 {
		m.logger.Error("unregistered account found during reorder", zap.String("account", a.username))
		return fmt.Errorf("reorder %s: %w", a.username, ErrPrecondition)
	}
	m.accounts = slices.Delete(m.accounts, old, old+1)
	if index > old {
		index--
	}
	index = min(max(index, 0), len(m.accounts))
	m.accounts = slices.Insert(m.accounts, index, a)
	m.scheduleSave()
	return nil
}

// Online reports whether the manager wants enabled accounts connected.
func (m *Manager) Online() bool { return m.online }

// SetOnline connects or disconnects every enabled account.
func (m *Manager) SetOnline(online bool) {
	if m.online == online {
		return
	}
	m.online = online

	for _, a := range slices.Clone(m.accounts) {
		if !a.enabled {
			continue
		}
		if online {
			if !a.presence.IsOnline() {
				a.Connect()
			}
		} else if !a.IsDisconnected() && !a.IsDisconnecting() {
			if err := a.Disconnect(); err != nil {
				m.logger.Warn("disconnect failed", zap.String("account", a.username), zap.Error(err))
			}
		}
	}
	m.OnlineChanged.Emit(online)
}

// NetworkChanged brings the manager online when the network comes back.
func (m *Manager) NetworkChanged(available bool) {
	if available {
		m.SetOnline(true)
	}
}

// All returns the registered accounts in list order.
func (m *Manager) All() []*Account { return slices.Clone(m.accounts) }

// Len reports the number of registered accounts.
func (m *Manager) Len() int { return len(m.accounts) }

// ForEach calls fn for every account in list order.
func (m *Manager) ForEach(fn func(*Account)) {
	for _, a := range slices.Clone(m.accounts) {
		fn(a)
	}
}

// FindByID returns the account with id.
func (m *Manager) FindByID(id string) *Account {
	return m.FindCustom(func(a *Account) bool { return a.id == id })
}

// Find returns the account of protocolID whose username normalizes to the
// same value as username.
func (m *Manager) Find(username, protocolID string) *Account {
	for _, a := range m.accounts {
		if a.protocolID != protocolID {
			continue
		}
		p, ok := a.Protocol()
		if !ok {
			if a.username == username {
				return a
			}
			continue
		}
		if protocol.Normalize(p, a, a.username) == protocol.Normalize(p, a, username) {
			return a
		}
	}
	return nil
}

// FindCustom returns the first account for which match is true.
func (m *Manager) FindCustom(match func(*Account) bool) *Account {
	for _, a := range m.accounts {
		if match(a) {
			return a
		}
	}
	return nil
}

func (m *Manager) filter(keep func(*Account) bool) []*Account {
	var out []*Account
	for _, a := range m.accounts {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func (m *Manager) Enabled() []*Account {
	return m.filter(func(a *Account) bool { return a.enabled })
}

func (m *Manager) Disabled() []*Account {
	return m.filter(func(a *Account) bool { return !a.enabled })
}

func (m *Manager) Connected() []*Account {
	return m.filter(func(a *Account) bool { return a.IsConnected() })
}

func (m *Manager) scheduleSave() {
	if m.loading {
		return
	}
	m.saver.Schedule()
}

// SetSaveDelay changes the debounce used for later saves.
func (m *Manager) SetSaveDelay(d time.Duration) { m.saver.SetDelay(d) }

// SavePending reports whether a save is scheduled.
func (m *Manager) SavePending() bool { return m.saver.Pending() }

// Flush writes a pending save now.
func (m *Manager) Flush() error { return m.saver.Flush() }

// Load reads accounts.xml and registers every account in file order. A
// missing file is not an error.
func (m *Manager) Load() error {
	m.loaded = true
	if m.path == "" {
		return nil
	}
	accounts, err := ReadFile(m.env, m.path)
	if err != nil {
		return err
	}
	m.loading = true
	for i := len(accounts) - 1; i >= 0; i-- {
		m.Add(accounts[i])
	}
	m.loading = false
	m.logger.Info("accounts loaded", zap.Int("count", len(accounts)))
	return nil
}

// Save writes accounts.xml now.
func (m *Manager) Save() error {
	if !m.loaded {
		m.logger.Error("attempted to save accounts before they were read")
		return ErrNotLoaded
	}
	if m.path == "" {
		return nil
	}
	data, err := Encode(m.accounts)
	if err != nil {
		return err
	}
	return persist.WriteFile(m.path, data)
}
