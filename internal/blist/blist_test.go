package blist

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/imcore/internal/eventloop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newList(t *testing.T, path string) (*List, *eventloop.Loop) {
	t.Helper()
	loop := eventloop.NewManual(time.Unix(0, 0))
	l := New(Options{Loop: loop, Path: path, SaveDelay: 5 * time.Second})
	require.NoError(t, l.Load())
	return l, loop
}

// recount walks the tree and returns the true totals of id.
func recount(l *List, id NodeID) Counts {
	if l.Kind(id) == KindBuddy {
		return l.buddyCounts(&l.nodes[id])
	}
	var c Counts
	for _, child := range l.Children(id) {
		c = c.add(recount(l, child))
	}
	return c
}

func assertCounts(t *testing.T, l *List) {
	t.Helper()
	for _, g := range l.Groups() {
		assert.Equal(t, recount(l, g), l.Counts(g), "group %q", l.Name(g))
		for _, c := range l.Children(g) {
			assert.Equal(t, recount(l, c), l.Counts(c), "contact %d", c)
		}
	}
}

func TestFoldName(t *testing.T) {
	assert.Equal(t, FoldName("Work"), FoldName("work"))
	assert.Equal(t, FoldName("STRASSE"), FoldName("straße"))
	assert.NotEqual(t, FoldName("Work"), FoldName("Home"))
}

func TestFindGroupFoldsNames(t *testing.T) {
	l, _ := newList(t, "")
	g := l.AddGroup("Work", None)
	assert.Equal(t, g, l.FindGroup("work"))
	assert.Equal(t, g, l.FindGroup("WORK"))
	assert.Equal(t, None, l.FindGroup("Home"))

	def := l.DefaultGroup()
	assert.Equal(t, def, l.FindGroup(""))
	assert.Equal(t, def, l.FindGroup(DefaultGroupName))
	assert.Equal(t, []NodeID{def, g}, l.Groups())
}

func TestAddGroupMovesExisting(t *testing.T) {
	l, _ := newList(t, "")
	a := l.AddGroup("A", None)
	b := l.AddGroup("B", a)
	c := l.AddGroup("C", b)
	require.Equal(t, []NodeID{a, b, c}, l.Groups())

	added := 0
	l.NodeAdded.Connect(func(NodeEvent) { added++ })
	moved := l.AddGroup("c", None)
	assert.Equal(t, c, moved)
	assert.Equal(t, []NodeID{c, a, b}, l.Groups())
	assert.Len(t, l.groups, 3, "moving must not add cache entries")
	assert.Equal(t, 1, added)
	assert.Equal(t, "C", l.Name(c), "a move keeps the original name")
}

func TestRenameGroup(t *testing.T) {
	l, _ := newList(t, "")
	g := l.AddGroup("Work", None)
	got, err := l.RenameGroup(g, "Office")
	require.NoError(t, err)
	assert.Equal(t, g, got)
	assert.Equal(t, g, l.FindGroup("office"))
	assert.Equal(t, None, l.FindGroup("work"))
	assert.Len(t, l.groups, 1)
}

func TestRenameGroupMerges(t *testing.T) {
	l, _ := newList(t, "")
	work := l.AddGroup("Work", None)
	office := l.AddGroup("Office", work)
	b1, err := l.AddBuddy("acct", "bob", "", None, work)
	require.NoError(t, err)
	_, err = l.AddBuddy("acct", "carol", "", None, office)
	require.NoError(t, err)

	got, err := l.RenameGroup(work, "office")
	require.NoError(t, err)
	assert.Equal(t, office, got)
	assert.Equal(t, KindGroup, l.Kind(office))
	assert.Equal(t, Kind(0), l.Kind(work))
	assert.Equal(t, 2, l.Counts(office).Total)
	assert.Equal(t, b1, l.FindBuddyInGroup("acct", "bob", office))
	assert.Equal(t, None, l.FindBuddyInGroup("acct", "bob", work))
	assertCounts(t, l)
}

func TestRemoveGroupRequiresEmpty(t *testing.T) {
	l, _ := newList(t, "")
	g := l.AddGroup("Work", None)
	b, err := l.AddBuddy("acct", "bob", "", None, g)
	require.NoError(t, err)

	assert.ErrorIs(t, l.RemoveGroup(g), ErrNotEmpty)
	require.NoError(t, l.RemoveBuddy(b))
	assert.Empty(t, l.Children(g), "empty contact removed with its last buddy")
	require.NoError(t, l.RemoveGroup(g))
	assert.Equal(t, None, l.FindGroup("Work"))
	assert.ErrorIs(t, l.RemoveGroup(g), ErrInvalidNode)
}

func TestBuddyCacheIsExactAndPerGroup(t *testing.T) {
	l, _ := newList(t, "")
	work := l.AddGroup("Work", None)
	home := l.AddGroup("Home", work)

	b1, err := l.AddBuddy("acct", "Bob", "", None, work)
	require.NoError(t, err)
	b2, err := l.AddBuddy("acct", "Bob", "", None, home)
	require.NoError(t, err)
	_, err = l.AddBuddy("acct", "Bob", "", None, work)
	assert.ErrorIs(t, err, ErrDuplicate)

	assert.Equal(t, None, l.FindBuddy("acct", "bob"), "buddy names are case sensitive")
	assert.Equal(t, b1, l.FindBuddy("acct", "Bob"))
	assert.Equal(t, []NodeID{b1, b2}, l.FindBuddies("acct", "Bob"))
	assert.Equal(t, None, l.FindBuddy("other", "Bob"))
}

func TestCountsFollowPresenceAndVisibility(t *testing.T) {
	l, _ := newList(t, "")
	g := l.AddGroup("Work", None)
	b1, _ := l.AddBuddy("a1", "bob", "", None, g)
	c := l.Parent(b1)
	b2, _ := l.AddBuddy("a2", "bob2", "", c, None)

	assert.Equal(t, Counts{Total: 2}, l.Counts(g))

	l.AddAccount("a1")
	l.AddAccount("a1")
	assert.Equal(t, Counts{Total: 2, Current: 1}, l.Counts(g))

	l.SetBuddyOnline(b1, true)
	l.SetBuddyOnline(b1, true)
	assert.Equal(t, Counts{Total: 2, Current: 1, Online: 1}, l.Counts(c))

	l.AddAccount("a2")
	l.SetBuddyOnline(b2, true)
	assert.Equal(t, Counts{Total: 2, Current: 2, Online: 2}, l.Counts(g))

	l.RemoveAccount("a1")
	assert.Equal(t, Counts{Total: 2, Current: 1, Online: 1}, l.Counts(g))
	assert.False(t, l.Presence(b1).IsOnline())
	assertCounts(t, l)
}

func TestMoveContactCarriesCounts(t *testing.T) {
	l, _ := newList(t, "")
	work := l.AddGroup("Work", None)
	home := l.AddGroup("Home", work)
	l.AddAccount("acct")
	b, _ := l.AddBuddy("acct", "bob", "", None, work)
	l.SetBuddyOnline(b, true)
	c := l.Parent(b)

	_, err := l.AddContact(c, home, None)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, l.Counts(work))
	assert.Equal(t, Counts{Total: 1, Current: 1, Online: 1}, l.Counts(home))
	assert.Equal(t, b, l.FindBuddyInGroup("acct", "bob", home))
	assert.Equal(t, None, l.FindBuddyInGroup("acct", "bob", work))
}

func TestMoveBuddyRemovesEmptyContact(t *testing.T) {
	l, _ := newList(t, "")
	g := l.AddGroup("Work", None)
	b1, _ := l.AddBuddy("acct", "bob", "", None, g)
	b2, _ := l.AddBuddy("acct", "carol", "", None, g)
	src, dst := l.Parent(b1), l.Parent(b2)

	var removed []Kind
	l.NodeRemoved.Connect(func(ev NodeEvent) { removed = append(removed, ev.Kind) })
	require.NoError(t, l.MoveBuddy(b1, dst))
	assert.Equal(t, Kind(0), l.Kind(src))
	assert.Equal(t, []Kind{KindContact}, removed)
	assert.Equal(t, []NodeID{b2, b1}, l.Children(dst))
	assert.Equal(t, "carol", l.DisplayName(dst))
	assertCounts(t, l)
}

func TestAliasAndSettings(t *testing.T) {
	l, _ := newList(t, "")
	b, _ := l.AddBuddy("acct", "bob", "", None, None)
	c := l.Parent(b)
	var aliased []NodeID
	l.NodeAliased.Connect(func(ev NodeEvent) { aliased = append(aliased, ev.ID) })

	require.NoError(t, l.SetAlias(c, "Robert"))
	require.NoError(t, l.SetAlias(c, "Robert"))
	assert.Equal(t, []NodeID{c}, aliased)
	assert.Equal(t, "Robert", l.DisplayName(c))
	assert.Equal(t, "bob", l.DisplayName(b))
	assert.ErrorIs(t, l.SetAlias(l.Parent(c), "x"), ErrInvalidNode)

	l.SetInt(b, "last_seen", 42)
	l.SetBool(c, "collapsed", true)
	assert.Equal(t, 42, l.Int(b, "last_seen", 0))
	assert.True(t, l.Bool(c, "collapsed", false))
	assert.Equal(t, "def", l.String(b, "last_seen", "def"))
	l.RemoveSetting(b, "last_seen")
	assert.Equal(t, 0, l.Int(b, "last_seen", 0))
}

func TestRandomMutationsKeepCounts(t *testing.T) {
	l, _ := newList(t, "")
	rng := rand.New(rand.NewSource(7))
	groups := []NodeID{l.AddGroup("A", None), l.AddGroup("B", None), l.AddGroup("C", None)}
	accounts := []string{"a1", "a2"}
	names := []string{"n1", "n2", "n3", "n4", "n5"}

	for i := 0; i < 500; i++ {
		buddies := l.Buddies()
		switch op := rng.Intn(7); {
		case op == 0 || len(buddies) == 0:
			_, _ = l.AddBuddy(accounts[rng.Intn(2)], names[rng.Intn(len(names))], "", None, groups[rng.Intn(3)])
		case op == 1:
			_ = l.RemoveBuddy(buddies[rng.Intn(len(buddies))])
		case op == 2:
			b := buddies[rng.Intn(len(buddies))]
			l.SetBuddyOnline(b, rng.Intn(2) == 0)
		case op == 3:
			if rng.Intn(2) == 0 {
				l.AddAccount(accounts[rng.Intn(2)])
			} else {
				l.RemoveAccount(accounts[rng.Intn(2)])
			}
		case op == 4:
			c := l.Parent(buddies[rng.Intn(len(buddies))])
			_, _ = l.AddContact(c, groups[rng.Intn(3)], None)
		case op == 5:
			b := buddies[rng.Intn(len(buddies))]
			dst := l.Parent(buddies[rng.Intn(len(buddies))])
			_ = l.MoveBuddy(b, dst)
		case op == 6:
			_ = l.RemoveContact(l.Parent(buddies[rng.Intn(len(buddies))]))
		}
		if t.Failed() {
			return
		}
		assertCounts(t, l)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blist.xml")
	l, _ := newList(t, path)
	work := l.AddGroup("Work", l.DefaultGroup())
	b, _ := l.AddBuddy("acct", "bob", "Bobby", None, work)
	c := l.Parent(b)
	require.NoError(t, l.SetAlias(c, "Robert"))
	l.SetInt(c, "weight", 3)
	l.SetBool(work, "collapsed", true)
	l.SetString(b, "note", "")
	_, _ = l.AddBuddy("acct", "dave", "", None, None)
	require.NoError(t, l.Flush())

	l2, _ := newList(t, path)
	groups := l2.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, DefaultGroupName, l2.Name(groups[0]))
	assert.Equal(t, "Work", l2.Name(groups[1]))
	assert.True(t, l2.Bool(groups[1], "collapsed", false))

	b2 := l2.FindBuddy("acct", "bob")
	require.NotEqual(t, None, b2)
	assert.Equal(t, "Bobby", l2.Alias(b2))
	assert.Equal(t, "Robert", l2.Alias(l2.Parent(b2)))
	assert.Equal(t, 3, l2.Int(l2.Parent(b2), "weight", 0))
	assert.Equal(t, "", l2.String(b2, "note", "unset"), "empty string settings survive a reload")
	assert.False(t, l2.SavePending(), "loading must not schedule a save")
	assertCounts(t, l2)
}

func TestDecodeLegacyDocument(t *testing.T) {
	doc := `<?xml version='1.0' encoding='UTF-8' ?>
<purple version='1.0'>
 <blist localized-default-group='Amigos'>
  <group name='Amigos'>
   <setting name='collapsed' type='bool'>1</setting>
   <contact alias='Empty'/>
   <person>
    <buddy account='acct'><name>bob</name></buddy>
    <buddy account=''><name>nobody</name></buddy>
   </person>
  </group>
  <group name='work'><contact><buddy account='acct'><name>carol</name></buddy></contact></group>
  <group name='Work'><setting name='n' type='int'>x</setting></group>
 </blist>
</purple>`
	path := filepath.Join(t.TempDir(), "blist.xml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	l, _ := newList(t, path)

	groups := l.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, DefaultGroupName, l.Name(groups[0]), "localized default maps to the default group")
	assert.True(t, l.Bool(groups[0], "collapsed", false))
	assert.Len(t, l.Children(groups[0]), 1, "empty contacts are dropped")
	assert.Equal(t, 0, l.Int(groups[1], "n", -1))
	assert.Equal(t, groups[0], l.FindGroup("Amigos"))
	assert.Len(t, l.Buddies(), 2)
}

func TestDecodeKeepsMixedContactOrder(t *testing.T) {
	doc := `<purple version='1.0'><blist>
  <group name='Friends'>
   <contact alias='A'><buddy account='acct'><name>a</name></buddy></contact>
   <person alias='B'><buddy account='acct'><name>b</name></buddy></person>
   <contact alias='C'><buddy account='acct'><name>c</name></buddy></contact>
  </group>
 </blist></purple>`
	path := filepath.Join(t.TempDir(), "blist.xml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	l, _ := newList(t, path)

	g := l.FindGroup("Friends")
	require.NotEqual(t, None, g)
	var aliases []string
	for _, c := range l.Children(g) {
		aliases = append(aliases, l.Alias(c))
	}
	assert.Equal(t, []string{"A", "B", "C"}, aliases)
}

func TestSaveBeforeLoad(t *testing.T) {
	loop := eventloop.NewManual(time.Unix(0, 0))
	l := New(Options{Loop: loop, Path: filepath.Join(t.TempDir(), "blist.xml")})
	assert.ErrorIs(t, l.Save(), ErrNotLoaded)
}

func TestSaveIsDebounced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blist.xml")
	l, loop := newList(t, path)
	l.AddGroup("Work", None)
	loop.Advance(4 * time.Second)
	l.AddGroup("Home", None)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	loop.Advance(time.Second)
	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.False(t, l.SavePending())
}
