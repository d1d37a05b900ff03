// Package whatsapp provides prpl-whatsapp, a protocol backend on
// whatsmeow. Each account keeps its own device store; an account that
// has never been linked pairs by scanning a QR code shown through the
// request broker.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/imcore/internal/presence"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/request"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

// ID is the protocol id of the WhatsApp backend.
const ID = "prpl-whatsapp"

// RosterGroup is the buddy list group contacts are added to.
const RosterGroup = "WhatsApp"

var errNoSession = errors.New("whatsapp: connection has no session")

// Prompter shows pairing codes. It is called on the event loop.
type Prompter interface {
	Info(handle, accountID, title, primary, data string) *request.Request
	CloseWithHandle(handle string) int
}

// Options configure New.
type Options struct {
	// DeviceStore returns the sqlite path of an account's device store.
	DeviceStore func(accountID string) string
	Prompter    Prompter
	Logger      *zap.Logger
}

// Protocol is the prpl-whatsapp backend.
type Protocol struct {
	deviceStore func(string) string
	prompter    Prompter
	logger      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

var setOSInfo sync.Once

// New creates the backend.
func New(opts Options) *Protocol {
	setOSInfo.Do(func() {
		// Device name shown in the phone's linked devices list.
		wastore.SetOSInfo("imcore", [3]uint32{0, 1, 0})
	})
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Protocol{
		deviceStore: opts.DeviceStore,
		prompter:    opts.Prompter,
		logger:      logger,
		sessions:    make(map[string]*session),
	}
}

func (p *Protocol) ID() string                { return ID }
func (p *Protocol) Name() string              { return "WhatsApp" }
func (p *Protocol) Options() protocol.Options { return protocol.OptNoPassword }

// CanConnect makes sure the device store directory exists.
func (p *Protocol) CanConnect(ctx context.Context, account protocol.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.deviceStore == nil {
		return errors.New("whatsapp: no device store configured")
	}
	return os.MkdirAll(filepath.Dir(p.deviceStore(account.ID())), 0700)
}

// Login opens the account's device store and connects in the background,
// pairing first when the device is not linked yet.
func (p *Protocol) Login(conn protocol.Connection) error {
	s := newSession(p, conn)
	p.mu.Lock()
	p.sessions[conn.ID()] = s
	p.mu.Unlock()

	go s.run(p.deviceStore(conn.Account().ID()))
	return nil
}

func (p *Protocol) Close(conn protocol.Connection) error {
	p.mu.Lock()
	s := p.sessions[conn.ID()]
	delete(p.sessions, conn.ID())
	p.mu.Unlock()

	if p.prompter != nil {
		p.prompter.CloseWithHandle(conn.ID())
	}
	if s == nil {
		return nil
	}
	return s.close()
}

func (p *Protocol) session(conn protocol.Connection) (*session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[conn.ID()]
	if !ok {
		return nil, errNoSession
	}
	return s, nil
}

func (p *Protocol) StatusTypes(protocol.Account) []protocol.StatusType {
	return []protocol.StatusType{
		{ID: "available", Name: "Available", Primitive: presence.Available, Saveable: true, UserSettable: true},
		{ID: "offline", Name: "Offline", Primitive: presence.Offline, Saveable: true, UserSettable: true},
	}
}

// Normalize maps phone numbers and JIDs to the bare user JID.
func (p *Protocol) Normalize(_ protocol.Account, name string) string {
	return normalizeJID(name)
}

func normalizeJID(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	if strings.Contains(name, "@") {
		jid, err := types.ParseJID(name)
		if err != nil {
			return name
		}
		return jid.ToNonAD().String()
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, name)
	if digits == "" {
		return name
	}
	return types.NewJID(digits, types.DefaultUserServer).String()
}

func parseRecipient(to string) (types.JID, error) {
	jid, err := types.ParseJID(normalizeJID(to))
	if err != nil {
		return types.JID{}, fmt.Errorf("parse JID %q: %w", to, err)
	}
	return jid, nil
}

func (p *Protocol) SendIM(ctx context.Context, conn protocol.Connection, to, body string) error {
	s, err := p.session(conn)
	if err != nil {
		return err
	}
	client := s.clientOrNil()
	if client == nil || !client.IsConnected() {
		return fmt.Errorf("send to %s: not connected", to)
	}
	jid, err := parseRecipient(to)
	if err != nil {
		return err
	}
	resp, err := client.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(body)})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	s.logger.Debug("message sent", zap.String("to", jid.String()), zap.String("server_id", resp.ID))
	return nil
}

// SendTyping maps Typing to composing and everything else to paused.
func (p *Protocol) SendTyping(conn protocol.Connection, to string, state protocol.TypingState) time.Duration {
	s, err := p.session(conn)
	if err != nil {
		return 0
	}
	client := s.clientOrNil()
	if client == nil {
		return 0
	}
	jid, err := parseRecipient(to)
	if err != nil {
		return 0
	}
	cp := types.ChatPresencePaused
	if state == protocol.Typing {
		cp = types.ChatPresenceComposing
	}
	ctx := conn.Context()
	go func() {
		if err := client.SendChatPresence(ctx, jid, cp, types.ChatPresenceMediaText); err != nil {
			s.logger.Debug("failed to send chat presence", zap.Error(err))
		}
	}()
	return 0
}
