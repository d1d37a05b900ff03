package api

import "encoding/json"

type Empty struct{}

// Core.

type ProtocolInfo struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

type StatusResponse struct {
	Profile         string         `json:"profile"`
	State           string         `json:"state"`
	Online          bool           `json:"online"`
	UptimeMs        int64          `json:"uptime_ms"`
	Accounts        int            `json:"accounts"`
	Connected       int            `json:"connected"`
	Buddies         int            `json:"buddies"`
	Conversations   int            `json:"conversations"`
	Messages        int64          `json:"messages"`
	PendingRequests int            `json:"pending_requests"`
	Protocols       []ProtocolInfo `json:"protocols"`
}

type SetOnlineRequest struct {
	Online bool `json:"online"`
}

type WatchRequest struct {
	// Namespace is a kind prefix such as "account." Empty watches all.
	Namespace string `json:"namespace"`
}

// Event is a bus event with its payload encoded as JSON.
type Event struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	OccurredAtMs int64           `json:"occurred_at_ms"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// Accounts.

type Account struct {
	ID         string            `json:"id"`
	Username   string            `json:"username"`
	ProtocolID string            `json:"protocol_id"`
	Alias      string            `json:"alias,omitempty"`
	Enabled    bool              `json:"enabled"`
	State      string            `json:"state"`
	Presence   string            `json:"presence"`
	Error      string            `json:"error,omitempty"`
	ErrorKind  string            `json:"error_kind,omitempty"`
	Settings   map[string]string `json:"settings,omitempty"`
}

type AccountRef struct {
	ID string `json:"id"`
}

type ListAccountsResponse struct {
	Accounts []Account `json:"accounts"`
}

type AddAccountRequest struct {
	Username   string `json:"username"`
	ProtocolID string `json:"protocol_id"`
	Alias      string `json:"alias,omitempty"`
	Password   string `json:"password,omitempty"`
	Remember   bool   `json:"remember"`
	Enabled    bool   `json:"enabled"`
}

type SetEnabledRequest struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

type SetSettingRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

type SetStatusRequest struct {
	ID       string `json:"id"`
	StatusID string `json:"status_id"`
	Message  string `json:"message,omitempty"`
}

type AccountLogRequest struct {
	ID    string `json:"id"`
	Limit int    `json:"limit"`
}

type LogEntry struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	LoggedAtMs int64  `json:"logged_at_ms"`
}

type AccountLogResponse struct {
	Entries []LogEntry `json:"entries"`
}

// Buddy list.

type Buddy struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Alias     string `json:"alias,omitempty"`
	Online    bool   `json:"online"`
	Visible   bool   `json:"visible"`
}

type Contact struct {
	Name    string  `json:"name"`
	Buddies []Buddy `json:"buddies"`
}

type Group struct {
	Name     string    `json:"name"`
	Total    int       `json:"total"`
	Current  int       `json:"current"`
	Online   int       `json:"online"`
	Contacts []Contact `json:"contacts"`
}

type ListBuddiesResponse struct {
	Groups []Group `json:"groups"`
}

type AddBuddyRequest struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Alias     string `json:"alias,omitempty"`
	Group     string `json:"group,omitempty"`
}

type BuddyRef struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
}

type AliasBuddyRequest struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Alias     string `json:"alias"`
}

// Conversations.

type Conversation struct {
	AccountID string `json:"account_id"`
	ID        string `json:"id"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	Title     string `json:"title"`
	Topic     string `json:"topic,omitempty"`
	Online    bool   `json:"online"`
	Typing    string `json:"typing"`
	Members   int    `json:"members"`
	Messages  int    `json:"messages"`
}

type ListConversationsRequest struct {
	AccountID string `json:"account_id,omitempty"`
}

type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

type SendRequest struct {
	AccountID string `json:"account_id"`
	To        string `json:"to"`
	Body      string `json:"body"`
}

type SendResponse struct {
	MsgID  string `json:"msg_id"`
	Queued bool   `json:"queued"`
}

type SetTypingRequest struct {
	AccountID string `json:"account_id"`
	To        string `json:"to"`
	// State is "typing", "paused" or "none".
	State string `json:"state"`
}

type Message struct {
	MsgID          string `json:"msg_id"`
	AccountID      string `json:"account_id"`
	ConversationID string `json:"conversation_id"`
	Author         string `json:"author"`
	Body           string `json:"body"`
	Outgoing       bool   `json:"outgoing"`
	Flags          int    `json:"flags"`
	TimestampMs    int64  `json:"timestamp_ms"`
}

type HistoryRequest struct {
	AccountID      string `json:"account_id"`
	ConversationID string `json:"conversation_id"`
	BeforeMs       int64  `json:"before_ms,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

type SearchRequest struct {
	Query     string `json:"query"`
	AccountID string `json:"account_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type MessagesResponse struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

// Requests.

type Request struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Handle      string `json:"handle"`
	AccountID   string `json:"account_id,omitempty"`
	Title       string `json:"title"`
	Primary     string `json:"primary"`
	Secondary   string `json:"secondary,omitempty"`
	Data        string `json:"data,omitempty"`
	CreatedAtMs int64  `json:"created_at_ms"`
}

type ListRequestsResponse struct {
	Requests []Request `json:"requests"`
}

type AnswerPasswordRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type RequestRef struct {
	ID string `json:"id"`
}
