// Package blist is the buddy list: groups of contacts, each holding one or
// more buddies, kept in an arena addressed by NodeID.
//
// Groups and contacts carry denormalized counts of the buddies below them.
// The counts are adjusted by exactly the delta of every mutation and never
// recomputed by walking the tree.
package blist

import (
	"errors"
	"time"

	"github.com/matheus3301/imcore/internal/account"
	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/eventloop"
	"github.com/matheus3301/imcore/internal/persist"
	"github.com/matheus3301/imcore/internal/presence"
	"github.com/matheus3301/imcore/internal/signal"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultGroupName is the name of the group buddies land in when none is
// given.
const DefaultGroupName = "Buddies"

var (
	ErrInvalidNode = errors.New("invalid buddy list node")
	ErrNotEmpty    = errors.New("group is not empty")
	ErrDuplicate   = errors.New("buddy already in group")
	ErrNotLoaded   = errors.New("buddy list not loaded")
)

// NodeID addresses a node. Removed ids are never reused.
type NodeID uint32

// None is the zero NodeID.
const None NodeID = 0

// Kind is a node type.
type Kind int

const (
	KindGroup Kind = iota + 1
	KindContact
	KindBuddy
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindContact:
		return "contact"
	case KindBuddy:
		return "buddy"
	default:
		return "none"
	}
}

// Counts are the buddy totals below a group or contact. Current counts
// buddies whose account is signed on; Online counts buddies whose presence
// is online.
type Counts struct {
	Total   int
	Current int
	Online  int
}

func (c Counts) add(d Counts) Counts {
	return Counts{c.Total + d.Total, c.Current + d.Current, c.Online + d.Online}
}

func (c Counts) neg() Counts {
	return Counts{-c.Total, -c.Current, -c.Online}
}

// NodeEvent describes a node that was added, removed or aliased.
type NodeEvent struct {
	ID        NodeID
	Kind      Kind
	Name      string
	AccountID string
	Group     string
}

type node struct {
	kind                      Kind
	parent, child, prev, next NodeID

	counts    Counts
	name      string
	alias     string
	accountID string
	presence  *presence.Presence
	protoData any
	settings  map[string]account.Setting
}

type buddyKey struct {
	name  string
	group NodeID
}

// folder computes group name keys: case folded, then collated.
type folder struct {
	caser cases.Caser
	coll  *collate.Collator
	buf   collate.Buffer
}

func newFolder() *folder {
	return &folder{caser: cases.Fold(), coll: collate.New(language.Und)}
}

func (f *folder) key(name string) string {
	k := string(f.coll.KeyFromString(&f.buf, f.caser.String(name)))
	f.buf.Reset()
	return k
}

// FoldName returns the key two group names share when they should be
// treated as the same group.
func FoldName(name string) string {
	return newFolder().key(name)
}

// Options configure a List.
type Options struct {
	Loop   *eventloop.Loop
	Logger *zap.Logger
	Bus    *bus.Bus
	// Path is where blist.xml lives. Empty keeps the list in memory.
	Path      string
	SaveDelay time.Duration
}

// List is the buddy list. It is confined to the event loop.
type List struct {
	logger *zap.Logger
	bus    *bus.Bus
	fold   *folder

	nodes []node
	root  NodeID

	groups  map[string]NodeID
	buddies map[string]map[buddyKey]NodeID
	visible map[string]bool

	localizedDefault string

	path    string
	saver   *persist.Saver
	loaded  bool
	loading bool

	NodeAdded   signal.Signal[NodeEvent]
	NodeRemoved signal.Signal[NodeEvent]
	NodeAliased signal.Signal[NodeEvent]
}

// New creates an empty list.
func New(opts Options) *List {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &List{
		logger:  logger.Named("blist"),
		bus:     opts.Bus,
		fold:    newFolder(),
		nodes:   make([]node, 1),
		groups:  make(map[string]NodeID),
		buddies: make(map[string]map[buddyKey]NodeID),
		visible: make(map[string]bool),
		path:    opts.Path,
	}
	l.saver = persist.NewSaver(opts.Loop, opts.SaveDelay, l.Save, l.logger)
	return l
}

func (l *List) get(id NodeID, kind Kind) (*node, bool) {
	if id == None || int(id) >= len(l.nodes) {
		return nil, false
	}
	n := &l.nodes[id]
	if n.kind != kind {
		return nil, false
	}
	return n, true
}

func (l *List) alloc(n node) NodeID {
	l.nodes = append(l.nodes, n)
	return NodeID(len(l.nodes) - 1)
}

func (l *List) release(id NodeID) {
	l.nodes[id] = node{}
}

// Kind reports the type of id, zero when id is not a live node.
func (l *List) Kind(id NodeID) Kind {
	if id == None || int(id) >= len(l.nodes) {
		return 0
	}
	return l.nodes[id].kind
}

// Name returns a group's or buddy's name.
func (l *List) Name(id NodeID) string {
	if l.Kind(id) == 0 {
		return ""
	}
	return l.nodes[id].name
}

// Alias returns a contact's or buddy's local alias.
func (l *List) Alias(id NodeID) string {
	if l.Kind(id) == 0 {
		return ""
	}
	return l.nodes[id].alias
}

// DisplayName is the alias when set. A contact without one falls back to
// its first buddy.
func (l *List) DisplayName(id NodeID) string {
	switch l.Kind(id) {
	case KindBuddy:
		if a := l.nodes[id].alias; a != "" {
			return a
		}
		return l.nodes[id].name
	case KindContact:
		if a := l.nodes[id].alias; a != "" {
			return a
		}
		if c := l.nodes[id].child; c != None {
			return l.DisplayName(c)
		}
		return ""
	default:
		return l.Name(id)
	}
}

// Parent returns the node's parent, None for groups.
func (l *List) Parent(id NodeID) NodeID {
	if l.Kind(id) == 0 {
		return None
	}
	return l.nodes[id].parent
}

// Children returns the node's children in order.
func (l *List) Children(id NodeID) []NodeID {
	if l.Kind(id) == 0 {
		return nil
	}
	return l.siblings(l.nodes[id].child)
}

// Groups returns the groups in order.
func (l *List) Groups() []NodeID { return l.siblings(l.root) }

func (l *List) siblings(first NodeID) []NodeID {
	var out []NodeID
	for n := first; n != None; n = l.nodes[n].next {
		out = append(out, n)
	}
	return out
}

func (l *List) lastSibling(first NodeID) NodeID {
	last := None
	for n := first; n != None; n = l.nodes[n].next {
		last = n
	}
	return last
}

// LastChild returns the node's last child.
func (l *List) LastChild(id NodeID) NodeID {
	if l.Kind(id) == 0 {
		return None
	}
	return l.lastSibling(l.nodes[id].child)
}

// Counts returns the buddy totals of a group or contact. A buddy reports
// its own contribution.
func (l *List) Counts(id NodeID) Counts {
	switch l.Kind(id) {
	case KindGroup, KindContact:
		return l.nodes[id].counts
	case KindBuddy:
		return l.buddyCounts(&l.nodes[id])
	}
	return Counts{}
}

// BuddyAccount returns the id of the account a buddy belongs to.
func (l *List) BuddyAccount(id NodeID) string {
	if n, ok := l.get(id, KindBuddy); ok {
		return n.accountID
	}
	return ""
}

// Presence returns a buddy's presence.
func (l *List) Presence(id NodeID) *presence.Presence {
	if n, ok := l.get(id, KindBuddy); ok {
		return n.presence
	}
	return nil
}

// ProtocolData returns backend state attached to a buddy.
func (l *List) ProtocolData(id NodeID) any {
	if n, ok := l.get(id, KindBuddy); ok {
		return n.protoData
	}
	return nil
}

// SetProtocolData attaches backend state to a buddy. It is dropped when
// the account's connection goes away.
func (l *List) SetProtocolData(id NodeID, v any) {
	if n, ok := l.get(id, KindBuddy); ok {
		n.protoData = v
	}
}

// Buddies returns every buddy in tree order.
func (l *List) Buddies() []NodeID {
	var out []NodeID
	for _, g := range l.Groups() {
		for _, c := range l.Children(g) {
			out = append(out, l.Children(c)...)
		}
	}
	return out
}

func (l *List) event(id NodeID) NodeEvent {
	n := &l.nodes[id]
	ev := NodeEvent{ID: id, Kind: n.kind, Name: n.name, AccountID: n.accountID}
	switch n.kind {
	case KindContact:
		ev.Name = n.alias
		ev.Group = l.Name(n.parent)
	case KindBuddy:
		ev.Group = l.Name(l.Parent(n.parent))
	}
	return ev
}

func (l *List) publish(kind string, ev NodeEvent) {
	if l.bus == nil {
		return
	}
	l.bus.Emit(kind, bus.NodePayload{
		Kind:      ev.Kind.String(),
		Name:      ev.Name,
		AccountID: ev.AccountID,
		Group:     ev.Group,
	})
}

func (l *List) emitAdded(id NodeID) {
	ev := l.event(id)
	l.NodeAdded.Emit(ev)
	l.publish(bus.BlistNodeAdded, ev)
}

func (l *List) emitRemoved(ev NodeEvent) {
	l.NodeRemoved.Emit(ev)
	l.publish(bus.BlistNodeRemoved, ev)
}

func (l *List) emitAliased(id NodeID) {
	ev := l.event(id)
	l.NodeAliased.Emit(ev)
	l.publish(bus.BlistNodeAliased, ev)
}
