package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds. The prefix before the first dot is the subscription
// namespace.
const (
	AccountAdded          = "account.added"
	AccountRemoved        = "account.removed"
	AccountChanged        = "account.changed"
	AccountSettingChanged = "account.setting_changed"
	AccountConnected      = "account.connected"
	AccountDisconnected   = "account.disconnected"
	AccountErrorChanged   = "account.error_changed"

	ConnectionSigningOn  = "connection.signing_on"
	ConnectionSignedOn   = "connection.signed_on"
	ConnectionSigningOff = "connection.signing_off"
	ConnectionSignedOff  = "connection.signed_off"
	ConnectionError      = "connection.error"

	BlistNodeAdded   = "blist.node_added"
	BlistNodeRemoved = "blist.node_removed"
	BlistNodeAliased = "blist.node_aliased"

	ConversationAdded   = "conversation.added"
	ConversationRemoved = "conversation.removed"
	ConversationMessage = "conversation.message"
	ConversationTyping  = "conversation.typing"
	ConversationChanged = "conversation.changed"

	OutboxQueued = "outbox.queued"
	OutboxSent   = "outbox.sent"
	OutboxFailed = "outbox.failed"

	RequestOpened = "request.opened"
	RequestClosed = "request.closed"

	CoreOnline        = "core.online"
	CoreOffline       = "core.offline"
	CoreStatusChanged = "core.status_changed"
)

// AccountPayload identifies the account an event is about.
type AccountPayload struct {
	AccountID  string
	Username   string
	ProtocolID string
	Setting    string
}

// ConnectionPayload describes a connection event.
type ConnectionPayload struct {
	ConnectionID string
	AccountID    string
	ErrorKind    string
	Description  string
}

// NodePayload describes a buddy list node event.
type NodePayload struct {
	Kind      string
	Name      string
	AccountID string
	Group     string
}

// ConversationPayload identifies a conversation.
type ConversationPayload struct {
	AccountID      string
	ConversationID string
	Type           string
	Property       string
}

// MessagePayload is a message added to a conversation.
type MessagePayload struct {
	MsgID          string
	AccountID      string
	ConversationID string
	Author         string
	Body           string
	Outgoing       bool
	Flags          int
	Timestamp      time.Time
}

// TypingPayload reports a typing state change. Member is empty for the
// local user.
type TypingPayload struct {
	AccountID      string
	ConversationID string
	Member         string
	State          string
}

// OutboxPayload describes a queued outgoing message.
type OutboxPayload struct {
	MsgID     string
	AccountID string
	Recipient string
	Error     string
}
