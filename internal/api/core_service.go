package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/core"
	"github.com/matheus3301/imcore/internal/protocol"
	"google.golang.org/grpc"
)

const coreServiceName = "imcore.v1.CoreService"

// CoreServer reports daemon status and toggles the account manager.
type CoreServer interface {
	Status(context.Context, *Empty) (*StatusResponse, error)
	SetOnline(context.Context, *SetOnlineRequest) (*Empty, error)
	Watch(*WatchRequest, Sender[Event]) error
}

var coreServiceDesc = grpc.ServiceDesc{
	ServiceName: coreServiceName,
	HandlerType: (*CoreServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(coreServiceName, "Status", CoreServer.Status),
		unary(coreServiceName, "SetOnline", CoreServer.SetOnline),
	},
	Streams: []grpc.StreamDesc{
		serverStreaming("Watch", CoreServer.Watch),
	},
}

// CoreService implements CoreServer.
type CoreService struct {
	core *core.Core
}

// NewCoreService creates the core service.
func NewCoreService(c *core.Core) *CoreService {
	return &CoreService{core: c}
}

func (s *CoreService) Status(ctx context.Context, _ *Empty) (*StatusResponse, error) {
	c := s.core
	resp := &StatusResponse{
		Profile:  c.Profile(),
		State:    string(c.Status.Current()),
		UptimeMs: time.Since(c.StartedAt()).Milliseconds(),
	}
	err := c.Do(ctx, func() {
		resp.Online = c.Accounts.Online()
		resp.Accounts = c.Accounts.Len()
		resp.Connected = len(c.Accounts.Connected())
		resp.Buddies = len(c.Buddies.Buddies())
		resp.Conversations = c.Conversations.Len()
		resp.PendingRequests = c.Requests.Len()
	})
	if err != nil {
		return nil, toStatus("status", err)
	}
	for _, p := range c.Protocols.All() {
		resp.Protocols = append(resp.Protocols, ProtocolInfo{
			ID:           p.ID(),
			Name:         p.Name(),
			Capabilities: protocol.Capabilities(p),
		})
	}
	if n, err := c.DB.MessageCount(); err == nil {
		resp.Messages = n
	}
	return resp, nil
}

func (s *CoreService) SetOnline(ctx context.Context, req *SetOnlineRequest) (*Empty, error) {
	if err := s.core.Do(ctx, func() { s.core.Accounts.SetOnline(req.Online) }); err != nil {
		return nil, toStatus("set online", err)
	}
	return &Empty{}, nil
}

// Watch streams bus events under the requested namespace until the client
// goes away.
func (s *CoreService) Watch(req *WatchRequest, stream Sender[Event]) error {
	ch, unsub := s.core.Bus.Subscribe(req.Namespace, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			if err := stream.Send(toEvent(evt)); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func toEvent(evt bus.Event) *Event {
	out := &Event{
		ID:           uuid.New().String(),
		Kind:         evt.Kind,
		OccurredAtMs: evt.Timestamp.UnixMilli(),
	}
	if evt.Payload != nil {
		if data, err := json.Marshal(evt.Payload); err == nil {
			out.Payload = data
		}
	}
	return out
}
