package whatsapp

import (
	"context"
	"fmt"
	"sync"

	"github.com/matheus3301/imcore/internal/connerr"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// session is the backend state of one connection.
type session struct {
	proto  *Protocol
	conn   protocol.Connection
	ctx    context.Context
	logger *zap.Logger

	mu        sync.Mutex
	client    *whatsmeow.Client
	container *sqlstore.Container
	closed    bool
}

func newSession(p *Protocol, conn protocol.Connection) *session {
	return &session{
		proto:  p,
		conn:   conn,
		ctx:    conn.Context(),
		logger: conn.Logger().Named("whatsapp"),
	}
}

// post runs f on the loop unless the connection has gone away.
func (s *session) post(f func()) {
	s.conn.Post(func() {
		if s.ctx.Err() != nil {
			return
		}
		f()
	})
}

func (s *session) fail(err error) {
	s.logger.Warn("whatsapp session failed", zap.Error(err))
	s.post(func() { s.conn.ErrorFromGo(err) })
}

func (s *session) clientOrNil() *whatsmeow.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

func (s *session) run(dbPath string) {
	container, err := sqlstore.New(s.ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		s.fail(fmt.Errorf("open device store: %w", err))
		return
	}
	device, err := container.GetFirstDevice(s.ctx)
	if err != nil {
		_ = container.Close()
		s.fail(fmt.Errorf("get device store: %w", err))
		return
	}

	client := whatsmeow.NewClient(device, nil)
	// The account reconnector owns retries.
	client.EnableAutoReconnect = false
	h := newHandler(s.conn, s.logger)
	h.onConnected = func() { s.loadRoster(client) }
	client.AddEventHandler(h.handle)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = container.Close()
		return
	}
	s.client = client
	s.container = container
	s.mu.Unlock()

	if client.Store.ID == nil {
		s.pair(client)
		return
	}
	s.logger.Info("connecting to WhatsApp", zap.String("device", client.Store.ID.String()))
	if err := client.Connect(); err != nil {
		s.fail(fmt.Errorf("connect: %w", err))
	}
}

// pair runs the QR flow. Codes rotate until the phone scans one or the
// flow times out.
func (s *session) pair(client *whatsmeow.Client) {
	qrChan, err := client.GetQRChannel(s.ctx)
	if err != nil {
		s.fail(fmt.Errorf("get QR channel: %w", err))
		return
	}
	// Connect must be called after GetQRChannel.
	if err := client.Connect(); err != nil {
		s.fail(fmt.Errorf("connect: %w", err))
		return
	}

	accountID := s.conn.Account().ID()
	handle := s.conn.ID()
	for item := range qrChan {
		switch item.Event {
		case "code":
			art, err := renderQR(item.Code)
			if err != nil {
				s.fail(err)
				return
			}
			s.post(func() {
				if s.proto.prompter == nil {
					return
				}
				s.proto.prompter.CloseWithHandle(handle)
				s.proto.prompter.Info(handle, accountID, "Link WhatsApp",
					"Scan this code from WhatsApp > Linked devices", art)
			})
		case "success":
			s.logger.Info("device paired")
			s.closePrompts()
			return
		case "timeout":
			s.closePrompts()
			s.post(func() { s.conn.Error(connerr.AuthenticationFailed, "QR code pairing timed out") })
			return
		default:
			if item.Error != nil {
				s.closePrompts()
				err := item.Error
				s.post(func() { s.conn.Error(connerr.AuthenticationFailed, err.Error()) })
				return
			}
		}
	}
}

func (s *session) closePrompts() {
	handle := s.conn.ID()
	s.post(func() {
		if s.proto.prompter != nil {
			s.proto.prompter.CloseWithHandle(handle)
		}
	})
}

func renderQR(code string) (string, error) {
	q, err := qrcode.New(code, qrcode.Low)
	if err != nil {
		return "", fmt.Errorf("render QR code: %w", err)
	}
	return q.ToSmallString(false), nil
}

// loadRoster reports every contact of the device store as a buddy.
func (s *session) loadRoster(client *whatsmeow.Client) {
	if id := client.Store.ID; id != nil {
		name := client.Store.PushName
		if name == "" {
			name = id.User
		}
		s.post(func() { s.conn.SetDisplayName(name) })
	}
	contacts, err := client.Store.Contacts.GetAllContacts(s.ctx)
	if err != nil {
		s.logger.Warn("failed to get contacts from device store", zap.Error(err))
		return
	}
	entries := rosterEntries(contacts)
	s.post(func() {
		for _, e := range entries {
			s.conn.RosterBuddy(e.name, e.alias, RosterGroup)
		}
	})
}

func (s *session) close() error {
	s.mu.Lock()
	s.closed = true
	client, container := s.client, s.container
	s.client, s.container = nil, nil
	s.mu.Unlock()

	if client != nil {
		client.Disconnect()
	}
	if container != nil {
		return container.Close()
	}
	return nil
}
