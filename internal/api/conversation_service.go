package api

import (
	"context"
	"fmt"

	"github.com/matheus3301/imcore/internal/account"
	"github.com/matheus3301/imcore/internal/conversation"
	"github.com/matheus3301/imcore/internal/core"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/store"
	"google.golang.org/grpc"
)

const conversationServiceName = "imcore.v1.ConversationService"

const defaultHistoryLimit = 50

// ConversationServer exposes open conversations and the message history.
type ConversationServer interface {
	List(context.Context, *ListConversationsRequest) (*ListConversationsResponse, error)
	Send(context.Context, *SendRequest) (*SendResponse, error)
	SetTyping(context.Context, *SetTypingRequest) (*Conversation, error)
	History(context.Context, *HistoryRequest) (*MessagesResponse, error)
	Search(context.Context, *SearchRequest) (*MessagesResponse, error)
}

var conversationServiceDesc = grpc.ServiceDesc{
	ServiceName: conversationServiceName,
	HandlerType: (*ConversationServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(conversationServiceName, "List", ConversationServer.List),
		unary(conversationServiceName, "Send", ConversationServer.Send),
		unary(conversationServiceName, "SetTyping", ConversationServer.SetTyping),
		unary(conversationServiceName, "History", ConversationServer.History),
		unary(conversationServiceName, "Search", ConversationServer.Search),
	},
}

// ConversationService implements ConversationServer.
type ConversationService struct {
	core *core.Core
}

// NewConversationService creates the conversation service.
func NewConversationService(c *core.Core) *ConversationService {
	return &ConversationService{core: c}
}

func (s *ConversationService) List(ctx context.Context, req *ListConversationsRequest) (*ListConversationsResponse, error) {
	resp := &ListConversationsResponse{}
	err := s.core.Do(ctx, func() {
		convs := s.core.Conversations.All()
		if req.AccountID != "" {
			convs = s.core.Conversations.ForAccount(req.AccountID)
		}
		for _, c := range convs {
			resp.Conversations = append(resp.Conversations, conversationToAPI(c))
		}
	})
	if err != nil {
		return nil, toStatus("list conversations", err)
	}
	return resp, nil
}

func (s *ConversationService) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	if req.To == "" {
		return nil, toStatus("send", fmt.Errorf("recipient is required: %w", errInvalid))
	}
	var out SendResponse
	err := s.withIM(ctx, req.AccountID, req.To, func(c *conversation.Conversation) error {
		m, err := c.SendMessage(req.Body)
		if err != nil {
			return err
		}
		out = SendResponse{MsgID: m.ID, Queued: m.Flags&conversation.FlagDelayed != 0}
		return nil
	})
	if err != nil {
		return nil, toStatus("send", err)
	}
	return &out, nil
}

func (s *ConversationService) SetTyping(ctx context.Context, req *SetTypingRequest) (*Conversation, error) {
	state, ok := parseTypingState(req.State)
	if !ok {
		return nil, toStatus("set typing", fmt.Errorf("typing state %q: %w", req.State, errInvalid))
	}
	var out Conversation
	err := s.withIM(ctx, req.AccountID, req.To, func(c *conversation.Conversation) error {
		c.SetTypingState(state)
		out = conversationToAPI(c)
		return nil
	})
	if err != nil {
		return nil, toStatus("set typing", err)
	}
	return &out, nil
}

func (s *ConversationService) History(_ context.Context, req *HistoryRequest) (*MessagesResponse, error) {
	if req.AccountID == "" || req.ConversationID == "" {
		return nil, toStatus("history", fmt.Errorf("account and conversation are required: %w", errInvalid))
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	msgs, err := s.core.DB.ListMessages(req.AccountID, req.ConversationID, req.BeforeMs, limit+1)
	if err != nil {
		return nil, toStatus("history", err)
	}
	resp := &MessagesResponse{}
	if len(msgs) > limit {
		msgs = msgs[:limit]
		resp.HasMore = true
	}
	resp.Messages = messagesToAPI(msgs)
	return resp, nil
}

func (s *ConversationService) Search(_ context.Context, req *SearchRequest) (*MessagesResponse, error) {
	if req.Query == "" {
		return nil, toStatus("search", fmt.Errorf("query is required: %w", errInvalid))
	}
	msgs, err := s.core.DB.SearchMessages(req.Query, req.AccountID, req.Limit)
	if err != nil {
		return nil, toStatus("search", err)
	}
	return &MessagesResponse{Messages: messagesToAPI(msgs)}, nil
}

// withIM runs f on the loop with the DM to name, opening it if needed.
func (s *ConversationService) withIM(ctx context.Context, accountID, name string, f func(*conversation.Conversation) error) error {
	var opErr error
	err := s.core.Do(ctx, func() {
		a := s.core.Accounts.FindByID(accountID)
		if a == nil {
			opErr = fmt.Errorf("%q: %w", accountID, errAccountNotFound)
			return
		}
		if !a.Enabled() {
			opErr = fmt.Errorf("%s is disabled: %w", a.Username(), account.ErrPrecondition)
			return
		}
		opErr = f(s.core.Conversations.FindOrCreateIM(a, name))
	})
	if err != nil {
		return err
	}
	return opErr
}

func parseTypingState(s string) (protocol.TypingState, bool) {
	switch s {
	case "typing":
		return protocol.Typing, true
	case "paused":
		return protocol.Paused, true
	case "", "none":
		return protocol.NotTyping, true
	}
	return protocol.NotTyping, false
}

func conversationToAPI(c *conversation.Conversation) Conversation {
	return Conversation{
		AccountID: c.Account().ID(),
		ID:        c.ID(),
		Type:      c.Type().String(),
		Name:      c.Name(),
		Title:     c.Title(),
		Topic:     c.Topic(),
		Online:    c.Online(),
		Typing:    c.TypingState().String(),
		Members:   c.Members().Len(),
		Messages:  len(c.Messages()),
	}
}

func messagesToAPI(msgs []store.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Message{
			MsgID:          m.MsgID,
			AccountID:      m.AccountID,
			ConversationID: m.ConversationID,
			Author:         m.Author,
			Body:           m.Body,
			Outgoing:       m.Outgoing,
			Flags:          m.Flags,
			TimestampMs:    m.Timestamp,
		})
	}
	return out
}
