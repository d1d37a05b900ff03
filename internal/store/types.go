package store

// LogEntry is one line of an account's system log.
type LogEntry struct {
	ID        int64
	AccountID string
	Kind      string
	Message   string
	LoggedAt  int64
}

// Message is a stored conversation message.
type Message struct {
	ID             int64
	MsgID          string
	AccountID      string
	ConversationID string
	Author         string
	Body           string
	Outgoing       bool
	Flags          int
	Timestamp      int64
}

// OutboxEntry represents a pending outgoing message.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	AccountID    string
	Recipient    string
	Body         string
	Status       string // queued, sending, sent, failed
	ErrorMessage string
	Attempts     int
	CreatedAt    int64
}
