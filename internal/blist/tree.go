package blist

import (
	"fmt"

	"github.com/matheus3301/imcore/internal/account"
	"github.com/matheus3301/imcore/internal/presence"
)

// adjust applies d to id and every counting ancestor of it.
func (l *List) adjust(id NodeID, d Counts) {
	if d == (Counts{}) {
		return
	}
	for n := id; n != None; n = l.nodes[n].parent {
		if k := l.nodes[n].kind; k == KindGroup || k == KindContact {
			l.nodes[n].counts = l.nodes[n].counts.add(d)
		}
	}
}

func (l *List) buddyCounts(n *node) Counts {
	c := Counts{Total: 1}
	if l.visible[n.accountID] {
		c.Current = 1
	}
	if n.presence.IsOnline() {
		c.Online = 1
	}
	return c
}

// unlink detaches id from its siblings and parent without touching counts.
func (l *List) unlink(id NodeID) {
	n := &l.nodes[id]
	if n.prev != None {
		l.nodes[n.prev].next = n.next
	} else if n.parent != None {
		l.nodes[n.parent].child = n.next
	} else if l.root == id {
		l.root = n.next
	}
	if n.next != None {
		l.nodes[n.next].prev = n.prev
	}
	n.parent, n.prev, n.next = None, None, None
}

// linkAfter inserts id after sibling, or first under parent when sibling
// is None. parent None means the group level.
func (l *List) linkAfter(id, parent, sibling NodeID) {
	n := &l.nodes[id]
	n.parent = parent
	if sibling != None {
		s := &l.nodes[sibling]
		n.prev = sibling
		n.next = s.next
		if s.next != None {
			l.nodes[s.next].prev = id
		}
		s.next = id
		return
	}
	var head *NodeID
	if parent == None {
		head = &l.root
	} else {
		head = &l.nodes[parent].child
	}
	n.prev = None
	n.next = *head
	if *head != None {
		l.nodes[*head].prev = id
	}
	*head = id
}

func (l *List) canonicalGroupName(name string) string {
	if name == "" || name == DefaultGroupName || (l.localizedDefault != "" && name == l.localizedDefault) {
		return DefaultGroupName
	}
	return name
}

// FindGroup looks a group up by folded name. The empty name and the
// localized default name resolve to the default group.
func (l *List) FindGroup(name string) NodeID {
	return l.groups[l.fold.key(l.canonicalGroupName(name))]
}

// DefaultGroup returns the default group, creating it first in the list
// when missing.
func (l *List) DefaultGroup() NodeID {
	if g := l.FindGroup(DefaultGroupName); g != None {
		return g
	}
	return l.AddGroup(DefaultGroupName, None)
}

// AddGroup places the group named name after the group after, or first.
// An existing group with the same folded name is moved instead of
// created.
func (l *List) AddGroup(name string, after NodeID) NodeID {
	name = l.canonicalGroupName(name)
	if _, ok := l.get(after, KindGroup); !ok {
		after = None
	}

	g := l.FindGroup(name)
	if g != None {
		if g == after {
			return g
		}
		l.unlink(g)
	} else {
		g = l.alloc(node{kind: KindGroup, name: name})
		l.groups[l.fold.key(name)] = g
	}
	l.linkAfter(g, None, after)
	l.scheduleSave()
	l.emitAdded(g)
	return g
}

// UpdateGroupsCache moves the cache entry of g from its current name to
// newName.
func (l *List) UpdateGroupsCache(g NodeID, newName string) {
	n, ok := l.get(g, KindGroup)
	if !ok {
		return
	}
	delete(l.groups, l.fold.key(n.name))
	l.groups[l.fold.key(newName)] = g
}

// RenameGroup renames g. When another group already has the new name, g's
// contacts are merged into it and g is removed.
func (l *List) RenameGroup(g NodeID, newName string) (NodeID, error) {
	n, ok := l.get(g, KindGroup)
	if !ok {
		return None, fmt.Errorf("rename group %d: %w", g, ErrInvalidNode)
	}
	newName = l.canonicalGroupName(newName)
	if n.name == newName {
		return g, nil
	}

	if other := l.FindGroup(newName); other != None && other != g {
		for _, c := range l.Children(g) {
			if _, err := l.AddContact(c, other, l.LastChild(other)); err != nil {
				return None, err
			}
		}
		if err := l.RemoveGroup(g); err != nil {
			return None, err
		}
		return other, nil
	}

	l.UpdateGroupsCache(g, newName)
	n.name = newName
	l.scheduleSave()
	l.emitAliased(g)
	return g, nil
}

// RemoveGroup removes an empty group.
func (l *List) RemoveGroup(g NodeID) error {
	n, ok := l.get(g, KindGroup)
	if !ok {
		return fmt.Errorf("remove group %d: %w", g, ErrInvalidNode)
	}
	if n.child != None {
		return fmt.Errorf("remove group %q: %w", n.name, ErrNotEmpty)
	}
	if n.name == DefaultGroupName {
		l.logger.Warn("removing the default group")
	}
	ev := l.event(g)
	l.unlink(g)
	delete(l.groups, l.fold.key(n.name))
	l.release(g)
	l.scheduleSave()
	l.emitRemoved(ev)
	return nil
}

// AddContact places contact after the contact after, or first in group.
// A None contact creates a new one. Without a usable group the default
// group is used. Moving a contact moves its counts with it.
func (l *List) AddContact(contact, group, after NodeID) (NodeID, error) {
	created := false
	if contact == None {
		contact = l.alloc(node{kind: KindContact})
		created = true
	} else if _, ok := l.get(contact, KindContact); !ok {
		return None, fmt.Errorf("add contact %d: %w", contact, ErrInvalidNode)
	}
	if contact == after {
		return contact, nil
	}

	var g NodeID
	if a, ok := l.get(after, KindContact); ok {
		g = a.parent
	} else {
		after = None
		if _, ok := l.get(group, KindGroup); ok {
			g = group
		} else {
			g = l.DefaultGroup()
		}
	}

	n := &l.nodes[contact]
	old := n.parent
	if old != None {
		l.adjust(old, n.counts.neg())
		l.unlink(contact)
	}
	l.linkAfter(contact, g, after)
	l.adjust(g, l.nodes[contact].counts)

	if old != None && old != g {
		for _, b := range l.Children(contact) {
			l.rekey(b, old, g)
		}
	}

	l.scheduleSave()
	if created {
		l.emitAdded(contact)
	}
	return contact, nil
}

// RemoveContact removes a contact and all of its buddies.
func (l *List) RemoveContact(c NodeID) error {
	n, ok := l.get(c, KindContact)
	if !ok {
		return fmt.Errorf("remove contact %d: %w", c, ErrInvalidNode)
	}
	for _, b := range l.Children(c) {
		l.removeBuddy(b)
	}
	ev := l.event(c)
	l.adjust(n.parent, n.counts.neg())
	l.unlink(c)
	l.release(c)
	l.scheduleSave()
	l.emitRemoved(ev)
	return nil
}

// SetAlias sets a contact's or buddy's local alias.
func (l *List) SetAlias(id NodeID, alias string) error {
	k := l.Kind(id)
	if k != KindContact && k != KindBuddy {
		return fmt.Errorf("alias %d: %w", id, ErrInvalidNode)
	}
	if l.nodes[id].alias == alias {
		return nil
	}
	l.nodes[id].alias = alias
	l.scheduleSave()
	l.emitAliased(id)
	return nil
}

func (l *List) accountTable(accountID string) map[buddyKey]NodeID {
	t, ok := l.buddies[accountID]
	if !ok {
		t = make(map[buddyKey]NodeID)
		l.buddies[accountID] = t
	}
	return t
}

func (l *List) rekey(b NodeID, from, to NodeID) {
	n := &l.nodes[b]
	t := l.accountTable(n.accountID)
	if t[buddyKey{n.name, from}] == b {
		delete(t, buddyKey{n.name, from})
	}
	t[buddyKey{n.name, to}] = b
}

// AddBuddy adds a buddy of account accountID to contact. With contact
// None a new contact is appended to group (or the default group). Names
// are compared exactly; a buddy already present in the group is returned
// with ErrDuplicate.
func (l *List) AddBuddy(accountID, name, alias string, contact, group NodeID) (NodeID, error) {
	if accountID == "" || name == "" {
		return None, fmt.Errorf("add buddy %q: %w", name, ErrInvalidNode)
	}

	if c, ok := l.get(contact, KindContact); ok {
		group = c.parent
	} else {
		if _, ok := l.get(group, KindGroup); !ok {
			group = l.DefaultGroup()
		}
		contact = None
	}
	if b := l.FindBuddyInGroup(accountID, name, group); b != None {
		return b, fmt.Errorf("add buddy %q: %w", name, ErrDuplicate)
	}
	if contact == None {
		var err error
		if contact, err = l.AddContact(None, group, l.LastChild(group)); err != nil {
			return None, err
		}
	}

	p := presence.New()
	b := l.alloc(node{kind: KindBuddy, name: name, alias: alias, accountID: accountID, presence: p})
	p.Changed.Connect(func(ch presence.Change) { l.presenceChanged(b, ch) })

	l.linkAfter(b, contact, l.LastChild(contact))
	l.adjust(contact, l.buddyCounts(&l.nodes[b]))
	l.accountTable(accountID)[buddyKey{name, group}] = b

	l.scheduleSave()
	l.emitAdded(b)
	return b, nil
}

// MoveBuddy moves b to the end of contact. A contact left empty is
// removed.
func (l *List) MoveBuddy(b, contact NodeID) error {
	n, ok := l.get(b, KindBuddy)
	if !ok {
		return fmt.Errorf("move buddy %d: %w", b, ErrInvalidNode)
	}
	dst, ok := l.get(contact, KindContact)
	if !ok {
		return fmt.Errorf("move buddy to %d: %w", contact, ErrInvalidNode)
	}
	src := n.parent
	if src == contact {
		return nil
	}
	fromGroup, toGroup := l.nodes[src].parent, dst.parent
	if other := l.FindBuddyInGroup(n.accountID, n.name, toGroup); other != None && fromGroup != toGroup {
		return fmt.Errorf("move buddy %q: %w", n.name, ErrDuplicate)
	}

	d := l.buddyCounts(n)
	l.adjust(src, d.neg())
	l.unlink(b)
	l.linkAfter(b, contact, l.LastChild(contact))
	l.adjust(contact, d)
	if fromGroup != toGroup {
		l.rekey(b, fromGroup, toGroup)
	}
	l.scheduleSave()

	if l.nodes[src].child == None {
		return l.RemoveContact(src)
	}
	return nil
}

// RemoveBuddy removes b. Its contact goes with it when left empty.
func (l *List) RemoveBuddy(b NodeID) error {
	n, ok := l.get(b, KindBuddy)
	if !ok {
		return fmt.Errorf("remove buddy %d: %w", b, ErrInvalidNode)
	}
	c := n.parent
	l.removeBuddy(b)
	if l.nodes[c].child == None {
		return l.RemoveContact(c)
	}
	return nil
}

func (l *List) removeBuddy(b NodeID) {
	n := &l.nodes[b]
	ev := l.event(b)
	group := l.nodes[n.parent].parent
	l.adjust(n.parent, l.buddyCounts(n).neg())
	if t := l.buddies[n.accountID]; t != nil && t[buddyKey{n.name, group}] == b {
		delete(t, buddyKey{n.name, group})
	}
	l.unlink(b)
	l.release(b)
	l.scheduleSave()
	l.emitRemoved(ev)
}

// FindBuddyInGroup returns the buddy named exactly name in group.
func (l *List) FindBuddyInGroup(accountID, name string, group NodeID) NodeID {
	return l.buddies[accountID][buddyKey{name, group}]
}

// FindBuddy returns the first buddy named exactly name, searching groups
// in list order.
func (l *List) FindBuddy(accountID, name string) NodeID {
	t := l.buddies[accountID]
	if len(t) == 0 {
		return None
	}
	for _, g := range l.Groups() {
		if b := t[buddyKey{name, g}]; b != None {
			return b
		}
	}
	return None
}

// FindBuddies returns every buddy of the account named exactly name.
func (l *List) FindBuddies(accountID, name string) []NodeID {
	t := l.buddies[accountID]
	var out []NodeID
	for _, g := range l.Groups() {
		if b := t[buddyKey{name, g}]; b != None {
			out = append(out, b)
		}
	}
	return out
}

// AccountBuddies returns every buddy of the account.
func (l *List) AccountBuddies(accountID string) []NodeID {
	var out []NodeID
	for _, b := range l.Buddies() {
		if l.nodes[b].accountID == accountID {
			out = append(out, b)
		}
	}
	return out
}

// SetBuddyOnline marks a buddy available or offline.
func (l *List) SetBuddyOnline(b NodeID, online bool) {
	n, ok := l.get(b, KindBuddy)
	if !ok {
		return
	}
	if online {
		if !n.presence.IsOnline() {
			n.presence.SetPrimitive(presence.Available)
		}
		return
	}
	n.presence.SetPrimitive(presence.Offline)
}

func (l *List) presenceChanged(b NodeID, ch presence.Change) {
	n, ok := l.get(b, KindBuddy)
	if !ok || ch.Field != presence.FieldPrimitive {
		return
	}
	switch now := n.presence.IsOnline(); {
	case now && !ch.WasOnline:
		l.adjust(n.parent, Counts{Online: 1})
	case !now && ch.WasOnline:
		l.adjust(n.parent, Counts{Online: -1})
	}
}

func (l *List) nodeSettings(id NodeID) map[string]account.Setting {
	n := &l.nodes[id]
	if n.settings == nil {
		n.settings = make(map[string]account.Setting)
	}
	return n.settings
}

func (l *List) setSetting(id NodeID, name string, s account.Setting) {
	if l.Kind(id) == 0 || name == "" {
		return
	}
	l.nodeSettings(id)[name] = s
	l.scheduleSave()
}

func (l *List) SetString(id NodeID, name, v string) {
	l.setSetting(id, name, account.Setting{Type: account.SettingString, Str: v})
}

func (l *List) SetInt(id NodeID, name string, v int) {
	l.setSetting(id, name, account.Setting{Type: account.SettingInt, Int: v})
}

func (l *List) SetBool(id NodeID, name string, v bool) {
	l.setSetting(id, name, account.Setting{Type: account.SettingBool, Bool: v})
}

// RemoveSetting deletes a node setting.
func (l *List) RemoveSetting(id NodeID, name string) {
	if l.Kind(id) == 0 {
		return
	}
	if _, ok := l.nodes[id].settings[name]; ok {
		delete(l.nodes[id].settings, name)
		l.scheduleSave()
	}
}

func (l *List) setting(id NodeID, name string, t account.SettingType) (account.Setting, bool) {
	if l.Kind(id) == 0 {
		return account.Setting{}, false
	}
	s, ok := l.nodes[id].settings[name]
	return s, ok && s.Type == t
}

func (l *List) String(id NodeID, name, def string) string {
	if s, ok := l.setting(id, name, account.SettingString); ok {
		return s.Str
	}
	return def
}

func (l *List) Int(id NodeID, name string, def int) int {
	if s, ok := l.setting(id, name, account.SettingInt); ok {
		return s.Int
	}
	return def
}

func (l *List) Bool(id NodeID, name string, def bool) bool {
	if s, ok := l.setting(id, name, account.SettingBool); ok {
		return s.Bool
	}
	return def
}
