package api

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/imcore/internal/core"
	"github.com/matheus3301/imcore/internal/eventloop"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/protocols/mock"
	"github.com/matheus3301/imcore/internal/request"
	"github.com/matheus3301/imcore/internal/store"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type harness struct {
	core          *core.Core
	proto         *mock.Protocol
	coreClient    *CoreClient
	accounts      *AccountClient
	buddies       *BuddyClient
	conversations *ConversationClient
	requests      *RequestClient
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "imcore.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}

	proto := mock.New()
	c, err := core.New(core.Options{
		DB:        db,
		Loop:      eventloop.New(zap.NewNop()),
		Protocols: []protocol.Protocol{proto},
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = c.Loop.Run(ctx)
	}()

	var initErr error
	if err := c.Do(ctx, func() { initErr = c.Init(ctx) }); err != nil {
		t.Fatal(err)
	}
	if initErr != nil {
		t.Fatalf("Init() error = %v", initErr)
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	Register(srv, c)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(Codec)),
	)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
		_ = c.Do(context.Background(), func() { _ = c.Shutdown() })
		cancel()
		<-loopDone
		_ = db.Close()
	})

	return &harness{
		core:          c,
		proto:         proto,
		coreClient:    NewCoreClient(conn),
		accounts:      NewAccountClient(conn),
		buddies:       NewBuddyClient(conn),
		conversations: NewConversationClient(conn),
		requests:      NewRequestClient(conn),
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func wantCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if got := grpcstatus.Code(err); got != want {
		t.Errorf("code = %v, want %v (err = %v)", got, want, err)
	}
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	resp, err := h.coreClient.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if resp.State != "READY" || !resp.Online {
		t.Errorf("state = %s online = %v, want READY online", resp.State, resp.Online)
	}
	if len(resp.Protocols) != 1 || resp.Protocols[0].ID != mock.ID {
		t.Errorf("protocols = %+v", resp.Protocols)
	}

	if err := h.coreClient.SetOnline(ctx, false); err != nil {
		t.Fatalf("SetOnline() error = %v", err)
	}
	resp, err = h.coreClient.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if resp.State != "OFFLINE" || resp.Online {
		t.Errorf("state = %s online = %v, want OFFLINE", resp.State, resp.Online)
	}
}

func TestAccountLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	acct, err := h.accounts.Add(ctx, &AddAccountRequest{Username: "alice", ProtocolID: mock.ID, Enabled: true})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if acct.ID == "" || !acct.Enabled {
		t.Errorf("Add() = %+v", acct)
	}

	_, err = h.accounts.Add(ctx, &AddAccountRequest{Username: "alice", ProtocolID: mock.ID})
	wantCode(t, err, codes.FailedPrecondition)
	_, err = h.accounts.Add(ctx, &AddAccountRequest{Username: "bob", ProtocolID: "prpl-nope"})
	wantCode(t, err, codes.NotFound)
	_, err = h.accounts.Add(ctx, &AddAccountRequest{ProtocolID: mock.ID})
	wantCode(t, err, codes.InvalidArgument)

	eventually(t, "alice to connect", func() bool {
		list, err := h.accounts.List(ctx)
		return err == nil && len(list.Accounts) == 1 && list.Accounts[0].State == "connected"
	})

	got, err := h.accounts.SetSetting(ctx, &SetSettingRequest{ID: acct.ID, Name: "port", Type: "int", Value: "5222"})
	if err != nil {
		t.Fatalf("SetSetting() error = %v", err)
	}
	if got.Settings["port"] != "5222" {
		t.Errorf("settings = %v", got.Settings)
	}
	_, err = h.accounts.SetSetting(ctx, &SetSettingRequest{ID: acct.ID, Name: "port", Type: "int", Value: "many"})
	wantCode(t, err, codes.InvalidArgument)

	got, err = h.accounts.Disconnect(ctx, acct.ID)
	if err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if got.State != "disconnected" {
		t.Errorf("state after Disconnect = %s", got.State)
	}

	if err := h.accounts.Remove(ctx, acct.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	wantCode(t, h.accounts.Remove(ctx, acct.ID), codes.NotFound)
}

func TestBuddies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	acct, err := h.accounts.Add(ctx, &AddAccountRequest{Username: "alice", ProtocolID: mock.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.buddies.Add(ctx, &AddBuddyRequest{AccountID: acct.ID, Name: "bob", Group: "Friends"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	_, err = h.buddies.Add(ctx, &AddBuddyRequest{AccountID: acct.ID, Name: "bob", Group: "Friends"})
	wantCode(t, err, codes.FailedPrecondition)
	_, err = h.buddies.Add(ctx, &AddBuddyRequest{AccountID: "missing", Name: "bob"})
	wantCode(t, err, codes.NotFound)

	b, err := h.buddies.Alias(ctx, &AliasBuddyRequest{AccountID: acct.ID, Name: "bob", Alias: "Bobby"})
	if err != nil {
		t.Fatalf("Alias() error = %v", err)
	}
	if b.Alias != "Bobby" {
		t.Errorf("alias = %q", b.Alias)
	}

	list, err := h.buddies.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var friends *Group
	for i := range list.Groups {
		if list.Groups[i].Name == "Friends" {
			friends = &list.Groups[i]
		}
	}
	if friends == nil {
		t.Fatalf("group Friends missing from %+v", list.Groups)
	}
	if friends.Total != 1 || len(friends.Contacts) != 1 || friends.Contacts[0].Buddies[0].Name != "bob" {
		t.Errorf("Friends = %+v", friends)
	}

	if err := h.buddies.Remove(ctx, acct.ID, "bob"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	wantCode(t, h.buddies.Remove(ctx, acct.ID, "bob"), codes.NotFound)
}

func TestSendAndTyping(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	acct, err := h.accounts.Add(ctx, &AddAccountRequest{Username: "alice", ProtocolID: mock.ID, Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
	eventually(t, "alice to connect", func() bool {
		list, err := h.accounts.List(ctx)
		return err == nil && len(list.Accounts) == 1 && list.Accounts[0].State == "connected"
	})

	conv, err := h.conversations.SetTyping(ctx, &SetTypingRequest{AccountID: acct.ID, To: "bob", State: "typing"})
	if err != nil {
		t.Fatalf("SetTyping() error = %v", err)
	}
	if conv.Typing != "typing" {
		t.Errorf("typing = %s", conv.Typing)
	}
	_, err = h.conversations.SetTyping(ctx, &SetTypingRequest{AccountID: acct.ID, To: "bob", State: "shouting"})
	wantCode(t, err, codes.InvalidArgument)

	sent, err := h.conversations.Send(ctx, &SendRequest{AccountID: acct.ID, To: "bob", Body: "hi"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if sent.MsgID == "" || sent.Queued {
		t.Errorf("Send() = %+v", sent)
	}
	eventually(t, "the message to reach the protocol", func() bool {
		return len(h.proto.Stats().Sent) == 1
	})

	_, err = h.conversations.Send(ctx, &SendRequest{AccountID: acct.ID, To: "bob"})
	wantCode(t, err, codes.InvalidArgument)

	list, err := h.conversations.List(ctx, acct.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Conversations) != 1 || list.Conversations[0].Typing != "none" {
		t.Errorf("conversations = %+v", list.Conversations)
	}

	if _, err := h.accounts.Disconnect(ctx, acct.ID); err != nil {
		t.Fatal(err)
	}
	queued, err := h.conversations.Send(ctx, &SendRequest{AccountID: acct.ID, To: "bob", Body: "later"})
	if err != nil {
		t.Fatalf("offline Send() error = %v", err)
	}
	if !queued.Queued {
		t.Error("offline Send() was not queued")
	}
}

func TestRequests(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var id, notice string
	answered := make(chan string, 1)
	if err := h.core.Do(ctx, func() {
		r := h.core.Requests.RequestPassword("test", "", "Password", "Enter password",
			func(a request.PasswordAnswer) { answered <- a.Password }, nil)
		id = r.ID
		notice = h.core.Requests.Notify("test", "", "Hello", "notice", "").ID
	}); err != nil {
		t.Fatal(err)
	}

	list, err := h.requests.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Requests) != 2 {
		t.Fatalf("requests = %+v", list.Requests)
	}

	wantCode(t, h.requests.AnswerPassword(ctx, &AnswerPasswordRequest{ID: notice, Password: "x"}), codes.InvalidArgument)
	if err := h.requests.AnswerPassword(ctx, &AnswerPasswordRequest{ID: id, Password: "secret"}); err != nil {
		t.Fatalf("AnswerPassword() error = %v", err)
	}
	if got := <-answered; got != "secret" {
		t.Errorf("answer = %q", got)
	}
	if err := h.requests.Dismiss(ctx, notice); err != nil {
		t.Fatalf("Dismiss() error = %v", err)
	}
	wantCode(t, h.requests.Dismiss(ctx, id), codes.NotFound)
}

func TestWatch(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	acct, err := h.accounts.Add(ctx, &AddAccountRequest{Username: "alice", ProtocolID: mock.ID})
	if err != nil {
		t.Fatal(err)
	}
	stream, err := h.coreClient.Watch(ctx, "account.")
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	events := make(chan *Event, 16)
	go func() {
		for {
			ev, err := stream.Recv()
			if err != nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	// The subscription is registered after the stream opens; keep
	// producing account events until one arrives.
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	enabled := false
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("stream closed before any event")
			}
			if !strings.HasPrefix(ev.Kind, "account.") {
				t.Errorf("kind = %s, want account.*", ev.Kind)
			}
			if ev.ID == "" {
				t.Error("event without id")
			}
			return
		case <-tick.C:
			enabled = !enabled
			if _, err := h.accounts.SetEnabled(ctx, acct.ID, enabled); err != nil {
				t.Fatal(err)
			}
		case <-ctx.Done():
			t.Fatal("no event received")
		}
	}
}
