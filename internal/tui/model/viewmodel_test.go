package model

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/imcore/internal/api"
	"github.com/matheus3301/imcore/internal/core"
	"github.com/matheus3301/imcore/internal/eventloop"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/protocols/mock"
	"github.com/matheus3301/imcore/internal/store"
	"github.com/matheus3301/imcore/internal/tui/client"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

func newTestClient(t *testing.T) *client.Client {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "imcore.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	c, err := core.New(core.Options{
		DB:        db,
		Loop:      eventloop.New(zap.NewNop()),
		Protocols: []protocol.Protocol{mock.New()},
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
		t.Fatal(initErr)
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	api.Register(srv, c)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(api.Codec)),
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
	return client.FromConn(conn)
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

func TestRefresh(t *testing.T) {
	c := newTestClient(t)
	vm := NewViewModel(c)
	ctx := context.Background()

	acct, err := c.Accounts.Add(ctx, &api.AddAccountRequest{Username: "alice", ProtocolID: mock.ID})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Buddies.Add(ctx, &api.AddBuddyRequest{AccountID: acct.ID, Name: "bob", Group: "Friends"}); err != nil {
		t.Fatal(err)
	}

	if err := vm.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	select {
	case <-vm.RefreshCh():
	default:
		t.Error("Refresh() did not signal")
	}

	if st := vm.Status(); st == nil || st.Accounts != 1 {
		t.Errorf("Status() = %+v", st)
	}
	accts := vm.Accounts()
	if len(accts) != 1 || accts[0].Username != "alice" {
		t.Fatalf("Accounts() = %+v", accts)
	}
	if _, ok := vm.Account(accts[0].ID); !ok {
		t.Error("Account() did not find alice")
	}
	var found bool
	for _, g := range vm.Groups() {
		if g.Name == "Friends" && len(g.Contacts) == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("Groups() = %+v", vm.Groups())
	}
}

func TestThreadFollowsEvents(t *testing.T) {
	c := newTestClient(t)
	vm := NewViewModel(c)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	acct, err := c.Accounts.Add(ctx, &api.AddAccountRequest{Username: "alice", ProtocolID: mock.ID, Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
	eventually(t, "alice to connect", func() bool {
		a, err := c.Accounts.List(ctx)
		return err == nil && len(a.Accounts) == 1 && a.Accounts[0].State == "connected"
	})
	if _, err := c.Conversations.Send(ctx, &api.SendRequest{AccountID: acct.ID, To: "bob", Body: "first"}); err != nil {
		t.Fatal(err)
	}
	if err := vm.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	conv, ok := vm.FindConversation("BOB")
	if !ok {
		t.Fatalf("FindConversation() missed bob in %+v", vm.Conversations())
	}
	if err := vm.OpenThread(ctx, conv); err != nil {
		t.Fatalf("OpenThread() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = vm.Run(ctx)
	}()
	// Run subscribes asynchronously; keep sending until an event lands.
	eventually(t, "the sent message in the thread", func() bool {
		if _, err := vm.SendText(ctx, "second"); err != nil {
			t.Fatalf("SendText() error = %v", err)
		}
		for _, m := range vm.Thread().Messages {
			if m.Body == "second" && m.Outgoing {
				return true
			}
		}
		return false
	})
	if vm.LastEvent() == "" {
		t.Error("LastEvent() is empty")
	}

	vm.CloseThread()
	if vm.Thread() != nil {
		t.Error("thread still open after CloseThread")
	}
	if _, err := vm.SendText(ctx, "third"); err == nil {
		t.Error("SendText() without a thread should fail")
	}
	cancel()
	<-done
}

func TestApplyIgnoresOtherConversations(t *testing.T) {
	vm := NewViewModel(nil)
	vm.thread = &Thread{AccountID: "a1", ConversationID: "c1"}

	event := func(conv, id string) *api.Event {
		payload, _ := json.Marshal(map[string]any{
			"MsgID":          id,
			"AccountID":      "a1",
			"ConversationID": conv,
			"Body":           "hi",
			"Timestamp":      time.UnixMilli(1000),
		})
		return &api.Event{Kind: "conversation.message", Payload: payload}
	}
	vm.apply(event("c2", "m0"))
	vm.apply(event("c1", "m1"))
	vm.apply(event("c1", "m1"))
	vm.apply(event("c1", "m2"))

	msgs := vm.Thread().Messages
	if len(msgs) != 2 || msgs[0].MsgID != "m2" || msgs[1].MsgID != "m1" {
		t.Fatalf("messages = %+v, want m2 then m1", msgs)
	}
	if msgs[0].TimestampMs != 1000 {
		t.Errorf("timestamp = %d", msgs[0].TimestampMs)
	}
	if vm.LastEvent() != "conversation.message" {
		t.Errorf("LastEvent() = %q", vm.LastEvent())
	}
}
