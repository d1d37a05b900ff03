package conversation

import (
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/imcore/internal/account"
	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/credential"
	"github.com/matheus3301/imcore/internal/eventloop"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/protocols/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	loop     *eventloop.Loop
	proto    *mock.Protocol
	accounts *account.Manager
	convs    *Manager
	queue    *fakeQueue
}

type fakeQueue struct{ queued []string }

func (q *fakeQueue) Enqueue(accountID, recipient, body, msgID string) {
	q.queued = append(q.queued, recipient+":"+body)
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	loop := eventloop.NewManual(epoch)
	logger := zap.NewNop()
	reg := protocol.NewRegistry()
	proto := mock.New()
	require.NoError(t, reg.Register(proto))
	creds := credential.NewManager(loop, logger)
	require.NoError(t, creds.Register(credential.NewMemory()))

	env := account.NewEnv(loop, logger, bus.New(), reg, creds, nil, nil)
	accounts := account.NewManager(env, "", time.Second)
	convs := NewManager(accounts, opts...)
	t.Cleanup(convs.Close)
	return &fixture{loop: loop, proto: proto, accounts: accounts, convs: convs}
}

func newFixtureWithQueue(t *testing.T) *fixture {
	q := &fakeQueue{}
	f := newFixture(t, WithQueue(q))
	f.queue = q
	return f
}

// account registers an enabled account and, when online, connects it.
func (f *fixture) account(t *testing.T, username string, online bool) *account.Account {
	t.Helper()
	a := f.accounts.NewAccount(username, mock.ID)
	f.accounts.Add(a)
	a.SetEnabled(true)
	if online {
		a.Connect()
		f.loop.Flush()
		require.True(t, a.IsConnected())
	}
	return a
}

func (f *fixture) typingCalls() []protocol.TypingState {
	var out []protocol.TypingState
	for _, c := range f.proto.Stats().Typing {
		out = append(out, c.State)
	}
	return out
}

func TestTypingDecays(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice", true)
	c := f.convs.FindOrCreateIM(a, "bob")

	c.SetTypingState(protocol.Typing)
	assert.Equal(t, []protocol.TypingState{protocol.Typing}, f.typingCalls())

	f.loop.Advance(TypingTimeout - time.Millisecond)
	assert.Equal(t, protocol.Typing, c.TypingState())

	f.loop.Advance(time.Millisecond)
	assert.Equal(t, protocol.Paused, c.TypingState())

	f.loop.Advance(PausedTimeout)
	assert.Equal(t, protocol.NotTyping, c.TypingState())
	assert.Equal(t, []protocol.TypingState{protocol.Typing, protocol.Paused, protocol.NotTyping}, f.typingCalls())
	assert.Equal(t, "bob", f.proto.Stats().Typing[0].To)

	f.loop.Advance(time.Minute)
	assert.Len(t, f.typingCalls(), 3)
}

func TestSustainedTypingResendsAfterGate(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice", true)
	c := f.convs.FindOrCreateIM(a, "bob")

	c.SetTypingState(protocol.Typing)
	f.loop.Advance(time.Second)
	c.SetTypingState(protocol.Typing)
	f.loop.Advance(time.Second)
	c.SetTypingState(protocol.Typing)
	assert.Len(t, f.typingCalls(), 1, "within the gate")

	f.loop.Advance(time.Second)
	c.SetTypingState(protocol.Typing)
	assert.Len(t, f.typingCalls(), 2, "gate passed")

	// The last keystroke restarts the decay.
	f.loop.Advance(TypingTimeout - time.Second)
	assert.Equal(t, protocol.Typing, c.TypingState())
	f.loop.Advance(time.Second)
	assert.Equal(t, protocol.Paused, c.TypingState())
	assert.Equal(t, []protocol.TypingState{protocol.Typing, protocol.Typing, protocol.Paused}, f.typingCalls())
}

func TestExplicitTransitionsSendOnce(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice", true)
	c := f.convs.FindOrCreateIM(a, "bob")

	var changes int
	c.Changed.Connect(func(prop string) {
		if prop == PropTypingState {
			changes++
		}
	})
	c.SetTypingState(protocol.Paused)
	c.SetTypingState(protocol.Paused)
	c.SetTypingState(protocol.NotTyping)
	c.SetTypingState(protocol.NotTyping)
	assert.Equal(t, []protocol.TypingState{protocol.Paused, protocol.NotTyping}, f.typingCalls())
	assert.Equal(t, 2, changes)
	assert.False(t, c.typingTimer.Active())
}

func TestTypingOfflineDecaysWithoutSending(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice", false)
	c := f.convs.FindOrCreateIM(a, "bob")

	c.SetTypingState(protocol.Typing)
	f.loop.Advance(TypingTimeout + PausedTimeout)
	assert.Equal(t, protocol.NotTyping, c.TypingState())
	assert.Empty(t, f.typingCalls())
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice", true)
	c := f.convs.FindOrCreateIM(a, "Bob")
	c.SetTypingState(protocol.Typing)

	m, err := c.SendMessage("hello")
	require.NoError(t, err)
	f.loop.Flush()

	assert.Equal(t, protocol.NotTyping, c.TypingState())
	assert.Len(t, f.typingCalls(), 1, "a message implies the end of typing")
	assert.True(t, m.Outgoing())
	assert.Equal(t, "alice", m.Author)
	assert.Len(t, m.ID, 26)
	assert.Equal(t, []mock.IMCall{{Account: a.ID(), To: "Bob", Body: "hello"}}, f.proto.Stats().Sent)
	assert.Equal(t, []*Message{m}, c.Messages())

	_, err = c.SendMessage("")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSendFailureWritesError(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice", true)
	c := f.convs.FindOrCreateIM(a, "bob")
	f.proto.FailSend(errors.New("boom"))

	_, err := c.SendMessage("hello")
	require.NoError(t, err)
	f.loop.Flush()

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, FlagSystem|FlagError, msgs[1].Flags)
	assert.Contains(t, msgs[1].Contents, "boom")
}

func TestSendOffline(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice", false)
	c := f.convs.FindOrCreateIM(a, "bob")
	_, err := c.SendMessage("hello")
	assert.ErrorIs(t, err, ErrOffline)
	assert.Empty(t, c.Messages())

	q := newFixtureWithQueue(t)
	a = q.account(t, "alice", false)
	c = q.convs.FindOrCreateIM(a, "bob")
	m, err := c.SendMessage("hello")
	require.NoError(t, err)
	assert.Equal(t, FlagSend|FlagDelayed, m.Flags)
	assert.Equal(t, []string{"bob:hello"}, q.queue.queued)
}

func TestMessagesSortedByTimestamp(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice", false)
	c := f.convs.FindOrCreateIM(a, "bob")

	c.AddMessage(&Message{Contents: "b", Timestamp: epoch.Add(2 * time.Second)})
	c.AddMessage(&Message{Contents: "a", Timestamp: epoch.Add(time.Second)})
	c.AddMessage(&Message{Contents: "c", Timestamp: epoch.Add(3 * time.Second)})
	c.AddMessage(&Message{Contents: "b2", Timestamp: epoch.Add(2 * time.Second)})
	c.AddMessage(&Message{Contents: "now"})

	var got []string
	for _, m := range c.Messages() {
		got = append(got, m.Contents)
		assert.NotEmpty(t, m.ID)
	}
	assert.Equal(t, []string{"now", "a", "b", "b2", "c"}, got)
}

func TestTitleFallsBack(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice", false)
	c := New(f.accounts.Env(), a, Options{Type: TypeChannel, Name: "#go"})
	assert.Equal(t, "#go", c.ID())
	assert.Equal(t, "#go", c.Title())
	c.SetAlias("Gophers")
	assert.Equal(t, "Gophers", c.Title())
	c.SetTitle("Go")
	assert.Equal(t, "Go", c.Title())

	f.loop.Advance(time.Minute)
	c.SetTopic("generics", "rob")
	assert.Equal(t, "rob", c.TopicAuthor())
	assert.Equal(t, epoch.Add(time.Minute), c.TopicUpdated())
}

func TestMembers(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice", false)
	c := New(f.accounts.Env(), a, Options{Type: TypeGroupDM, ID: "g1"})
	ms := c.Members()

	added := 0
	ms.Added.Connect(func(*Member) { added++ })
	carol, ok := ms.Add("carol", "Carol")
	assert.True(t, ok)
	again, ok := ms.Add("carol", "")
	assert.False(t, ok)
	assert.Same(t, carol, again)
	assert.Equal(t, 1, added)
	assert.Equal(t, "Carol", carol.DisplayName())

	ms.SetTyping(carol, protocol.Typing, 2*time.Second)
	assert.Equal(t, protocol.Typing, carol.TypingState())
	f.loop.Advance(2 * time.Second)
	assert.Equal(t, protocol.NotTyping, carol.TypingState())

	ms.SetTyping(carol, protocol.Paused, time.Second)
	assert.True(t, ms.Remove("carol"))
	assert.False(t, ms.Remove("carol"))
	assert.Equal(t, 0, ms.Len())
	assert.False(t, carol.timer.Active(), "removal stops the member timer")
}
