package whatsapp

import (
	"fmt"

	"github.com/matheus3301/imcore/internal/connerr"
	"github.com/matheus3301/imcore/internal/protocol"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// sink is the part of a connection whatsmeow events are reported to.
type sink interface {
	Post(func())
	SetState(protocol.State)
	Error(kind connerr.Kind, description string)
	UpdateLastReceived()
	ReceiveIM(msg protocol.IncomingIM)
	ReceiveTyping(from string, state protocol.TypingState)
	BuddyStatus(name string, online bool)
}

// handler turns whatsmeow events, delivered on whatsmeow's goroutines,
// into connection calls on the event loop.
type handler struct {
	conn        sink
	logger      *zap.Logger
	onConnected func()
}

func newHandler(conn sink, logger *zap.Logger) *handler {
	return &handler{conn: conn, logger: logger}
}

func (h *handler) handle(raw any) {
	switch evt := raw.(type) {
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		h.conn.Post(func() { h.conn.SetState(protocol.Connected) })
		if h.onConnected != nil {
			go h.onConnected()
		}
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		h.conn.Post(func() { h.conn.Error(connerr.NetworkError, "Connection to WhatsApp lost") })
	case *events.StreamReplaced:
		h.conn.Post(func() {
			h.conn.Error(connerr.NameInUse, "Another client connected with this device")
		})
	case *events.LoggedOut:
		reason := evt.Reason.String()
		h.logger.Warn("WhatsApp logged out", zap.String("reason", reason))
		h.conn.Post(func() {
			h.conn.Error(connerr.AuthenticationImpossible, fmt.Sprintf("Logged out: %s", reason))
		})
	case *events.Message:
		im, ok := incomingIM(evt)
		h.conn.Post(func() {
			h.conn.UpdateLastReceived()
			if ok {
				h.conn.ReceiveIM(im)
			}
		})
	case *events.ChatPresence:
		if evt.IsGroup || evt.IsFromMe {
			return
		}
		from := evt.Chat.ToNonAD().String()
		state := typingState(evt.State)
		h.conn.Post(func() { h.conn.ReceiveTyping(from, state) })
	case *events.Presence:
		from := evt.From.ToNonAD().String()
		online := !evt.Unavailable
		h.conn.Post(func() { h.conn.BuddyStatus(from, online) })
	}
}
