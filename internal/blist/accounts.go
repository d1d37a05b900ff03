package blist

import (
	"errors"

	"github.com/matheus3301/imcore/internal/account"
	"github.com/matheus3301/imcore/internal/presence"
	"go.uber.org/zap"
)

// AddAccount marks the account signed on so its buddies count as current.
func (l *List) AddAccount(accountID string) {
	if l.visible[accountID] {
		return
	}
	l.visible[accountID] = true
	for _, b := range l.AccountBuddies(accountID) {
		l.adjust(l.nodes[b].parent, Counts{Current: 1})
	}
}

// RemoveAccount marks the account signed off. Its buddies stop counting as
// current and go offline.
func (l *List) RemoveAccount(accountID string) {
	if !l.visible[accountID] {
		return
	}
	delete(l.visible, accountID)
	for _, b := range l.AccountBuddies(accountID) {
		l.adjust(l.nodes[b].parent, Counts{Current: -1})
		l.nodes[b].presence.SetPrimitive(presence.Offline)
	}
}

// ClearProtocolData drops backend state from the account's buddies.
func (l *List) ClearProtocolData(accountID string) {
	for _, b := range l.AccountBuddies(accountID) {
		l.nodes[b].protoData = nil
	}
}

// IsAccountVisible reports whether the account is signed on.
func (l *List) IsAccountVisible(accountID string) bool { return l.visible[accountID] }

func (l *List) accountAdded(a *account.Account) {
	l.accountTable(a.ID())
}

// accountRemoved drops the account's buddies and its lookup table.
func (l *List) accountRemoved(a *account.Account) {
	l.RemoveAccount(a.ID())
	for _, b := range l.AccountBuddies(a.ID()) {
		if err := l.RemoveBuddy(b); err != nil {
			l.logger.Warn("failed to remove buddy", zap.Error(err))
		}
	}
	delete(l.buddies, a.ID())
}

func (l *List) rosterBuddy(ev account.RosterEvent) {
	accountID := ev.Connection.Owner().ID()
	g := l.FindGroup(ev.Group)
	if g == None {
		g = l.AddGroup(ev.Group, l.lastSibling(l.root))
	}
	b, err := l.AddBuddy(accountID, ev.Name, ev.Alias, None, g)
	if errors.Is(err, ErrDuplicate) {
		if l.nodes[b].alias == "" && ev.Alias != "" {
			_ = l.SetAlias(b, ev.Alias)
		}
		return
	}
	if err != nil {
		l.logger.Warn("roster buddy rejected", zap.String("name", ev.Name), zap.Error(err))
	}
}

func (l *List) buddyStatus(ev account.BuddyStatusEvent) {
	for _, b := range l.FindBuddies(ev.Connection.Owner().ID(), ev.Name) {
		l.SetBuddyOnline(b, ev.Online)
	}
}

// Attach follows m's accounts and the roster and status updates of their
// connections. The returned function detaches.
func (l *List) Attach(m *account.Manager) func() {
	conns := m.Env().Connections
	added := m.Added.Connect(l.accountAdded)
	removed := m.Removed.Connect(l.accountRemoved)
	roster := conns.Roster.Connect(l.rosterBuddy)
	status := conns.BuddyStatus.Connect(l.buddyStatus)
	for _, a := range m.All() {
		l.accountAdded(a)
	}
	return func() {
		m.Added.Disconnect(added)
		m.Removed.Disconnect(removed)
		conns.Roster.Disconnect(roster)
		conns.BuddyStatus.Disconnect(status)
	}
}

var _ account.BuddyList = (*List)(nil)
