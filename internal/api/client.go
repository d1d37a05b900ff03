package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Dial connects to a daemon socket. Every call on the returned connection
// uses the JSON codec.
func Dial(socketPath string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(Codec)),
	}, opts...)
	conn, err := grpc.NewClient("unix://"+socketPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return conn, nil
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, service, method string, req any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, "/"+service+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// CoreClient is the client side of CoreService.
type CoreClient struct{ cc grpc.ClientConnInterface }

func NewCoreClient(cc grpc.ClientConnInterface) *CoreClient { return &CoreClient{cc} }

func (c *CoreClient) Status(ctx context.Context, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c.cc, coreServiceName, "Status", &Empty{}, opts...)
}

func (c *CoreClient) SetOnline(ctx context.Context, online bool, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, coreServiceName, "SetOnline", &SetOnlineRequest{Online: online}, opts...)
	return err
}

// EventStream receives events from Watch.
type EventStream interface {
	Recv() (*Event, error)
	grpc.ClientStream
}

type eventStream struct{ grpc.ClientStream }

func (s eventStream) Recv() (*Event, error) {
	ev := new(Event)
	if err := s.ClientStream.RecvMsg(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Watch streams bus events whose kind starts with namespace until ctx ends.
func (c *CoreClient) Watch(ctx context.Context, namespace string, opts ...grpc.CallOption) (EventStream, error) {
	stream, err := c.cc.NewStream(ctx, &coreServiceDesc.Streams[0], "/"+coreServiceName+"/Watch", opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&WatchRequest{Namespace: namespace}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return eventStream{stream}, nil
}

// AccountClient is the client side of AccountService.
type AccountClient struct{ cc grpc.ClientConnInterface }

func NewAccountClient(cc grpc.ClientConnInterface) *AccountClient { return &AccountClient{cc} }

func (c *AccountClient) List(ctx context.Context, opts ...grpc.CallOption) (*ListAccountsResponse, error) {
	return invoke[ListAccountsResponse](ctx, c.cc, accountServiceName, "List", &Empty{}, opts...)
}

func (c *AccountClient) Add(ctx context.Context, req *AddAccountRequest, opts ...grpc.CallOption) (*Account, error) {
	return invoke[Account](ctx, c.cc, accountServiceName, "Add", req, opts...)
}

func (c *AccountClient) Remove(ctx context.Context, id string, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, accountServiceName, "Remove", &AccountRef{ID: id}, opts...)
	return err
}

func (c *AccountClient) SetEnabled(ctx context.Context, id string, enabled bool, opts ...grpc.CallOption) (*Account, error) {
	return invoke[Account](ctx, c.cc, accountServiceName, "SetEnabled", &SetEnabledRequest{ID: id, Enabled: enabled}, opts...)
}

func (c *AccountClient) Connect(ctx context.Context, id string, opts ...grpc.CallOption) (*Account, error) {
	return invoke[Account](ctx, c.cc, accountServiceName, "Connect", &AccountRef{ID: id}, opts...)
}

func (c *AccountClient) Disconnect(ctx context.Context, id string, opts ...grpc.CallOption) (*Account, error) {
	return invoke[Account](ctx, c.cc, accountServiceName, "Disconnect", &AccountRef{ID: id}, opts...)
}

func (c *AccountClient) SetSetting(ctx context.Context, req *SetSettingRequest, opts ...grpc.CallOption) (*Account, error) {
	return invoke[Account](ctx, c.cc, accountServiceName, "SetSetting", req, opts...)
}

func (c *AccountClient) SetStatus(ctx context.Context, req *SetStatusRequest, opts ...grpc.CallOption) (*Account, error) {
	return invoke[Account](ctx, c.cc, accountServiceName, "SetStatus", req, opts...)
}

func (c *AccountClient) Log(ctx context.Context, id string, limit int, opts ...grpc.CallOption) (*AccountLogResponse, error) {
	return invoke[AccountLogResponse](ctx, c.cc, accountServiceName, "Log", &AccountLogRequest{ID: id, Limit: limit}, opts...)
}

// BuddyClient is the client side of BuddyService.
type BuddyClient struct{ cc grpc.ClientConnInterface }

func NewBuddyClient(cc grpc.ClientConnInterface) *BuddyClient { return &BuddyClient{cc} }

func (c *BuddyClient) List(ctx context.Context, opts ...grpc.CallOption) (*ListBuddiesResponse, error) {
	return invoke[ListBuddiesResponse](ctx, c.cc, buddyServiceName, "List", &Empty{}, opts...)
}

func (c *BuddyClient) Add(ctx context.Context, req *AddBuddyRequest, opts ...grpc.CallOption) (*Buddy, error) {
	return invoke[Buddy](ctx, c.cc, buddyServiceName, "Add", req, opts...)
}

func (c *BuddyClient) Remove(ctx context.Context, accountID, name string, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, buddyServiceName, "Remove", &BuddyRef{AccountID: accountID, Name: name}, opts...)
	return err
}

func (c *BuddyClient) Alias(ctx context.Context, req *AliasBuddyRequest, opts ...grpc.CallOption) (*Buddy, error) {
	return invoke[Buddy](ctx, c.cc, buddyServiceName, "Alias", req, opts...)
}

// ConversationClient is the client side of ConversationService.
type ConversationClient struct{ cc grpc.ClientConnInterface }

func NewConversationClient(cc grpc.ClientConnInterface) *ConversationClient {
	return &ConversationClient{cc}
}

func (c *ConversationClient) List(ctx context.Context, accountID string, opts ...grpc.CallOption) (*ListConversationsResponse, error) {
	return invoke[ListConversationsResponse](ctx, c.cc, conversationServiceName, "List", &ListConversationsRequest{AccountID: accountID}, opts...)
}

func (c *ConversationClient) Send(ctx context.Context, req *SendRequest, opts ...grpc.CallOption) (*SendResponse, error) {
	return invoke[SendResponse](ctx, c.cc, conversationServiceName, "Send", req, opts...)
}

func (c *ConversationClient) SetTyping(ctx context.Context, req *SetTypingRequest, opts ...grpc.CallOption) (*Conversation, error) {
	return invoke[Conversation](ctx, c.cc, conversationServiceName, "SetTyping", req, opts...)
}

func (c *ConversationClient) History(ctx context.Context, req *HistoryRequest, opts ...grpc.CallOption) (*MessagesResponse, error) {
	return invoke[MessagesResponse](ctx, c.cc, conversationServiceName, "History", req, opts...)
}

func (c *ConversationClient) Search(ctx context.Context, req *SearchRequest, opts ...grpc.CallOption) (*MessagesResponse, error) {
	return invoke[MessagesResponse](ctx, c.cc, conversationServiceName, "Search", req, opts...)
}

// RequestClient is the client side of RequestService.
type RequestClient struct{ cc grpc.ClientConnInterface }

func NewRequestClient(cc grpc.ClientConnInterface) *RequestClient { return &RequestClient{cc} }

func (c *RequestClient) List(ctx context.Context, opts ...grpc.CallOption) (*ListRequestsResponse, error) {
	return invoke[ListRequestsResponse](ctx, c.cc, requestServiceName, "List", &Empty{}, opts...)
}

func (c *RequestClient) AnswerPassword(ctx context.Context, req *AnswerPasswordRequest, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, requestServiceName, "AnswerPassword", req, opts...)
	return err
}

func (c *RequestClient) Dismiss(ctx context.Context, id string, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, requestServiceName, "Dismiss", &RequestRef{ID: id}, opts...)
	return err
}
