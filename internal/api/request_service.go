package api

import (
	"context"

	"github.com/matheus3301/imcore/internal/core"
	"github.com/matheus3301/imcore/internal/request"
	"google.golang.org/grpc"
)

const requestServiceName = "imcore.v1.RequestService"

// RequestServer lets a front end answer the core's pending requests.
type RequestServer interface {
	List(context.Context, *Empty) (*ListRequestsResponse, error)
	AnswerPassword(context.Context, *AnswerPasswordRequest) (*Empty, error)
	Dismiss(context.Context, *RequestRef) (*Empty, error)
}

var requestServiceDesc = grpc.ServiceDesc{
	ServiceName: requestServiceName,
	HandlerType: (*RequestServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(requestServiceName, "List", RequestServer.List),
		unary(requestServiceName, "AnswerPassword", RequestServer.AnswerPassword),
		unary(requestServiceName, "Dismiss", RequestServer.Dismiss),
	},
}

// RequestService implements RequestServer.
type RequestService struct {
	core *core.Core
}

// NewRequestService creates the request service.
func NewRequestService(c *core.Core) *RequestService {
	return &RequestService{core: c}
}

func (s *RequestService) List(ctx context.Context, _ *Empty) (*ListRequestsResponse, error) {
	resp := &ListRequestsResponse{}
	err := s.core.Do(ctx, func() {
		for _, r := range s.core.Requests.Pending() {
			resp.Requests = append(resp.Requests, requestToAPI(r))
		}
	})
	if err != nil {
		return nil, toStatus("list requests", err)
	}
	return resp, nil
}

func (s *RequestService) AnswerPassword(ctx context.Context, req *AnswerPasswordRequest) (*Empty, error) {
	var opErr error
	err := s.core.Do(ctx, func() {
		opErr = s.core.Requests.AnswerPassword(req.ID, request.PasswordAnswer{
			Password: req.Password,
			Remember: req.Remember,
		})
	})
	if err == nil {
		err = opErr
	}
	if err != nil {
		return nil, toStatus("answer password", err)
	}
	return &Empty{}, nil
}

func (s *RequestService) Dismiss(ctx context.Context, req *RequestRef) (*Empty, error) {
	var opErr error
	err := s.core.Do(ctx, func() { opErr = s.core.Requests.Dismiss(req.ID) })
	if err == nil {
		err = opErr
	}
	if err != nil {
		return nil, toStatus("dismiss request", err)
	}
	return &Empty{}, nil
}

func requestToAPI(r *request.Request) Request {
	return Request{
		ID:          r.ID,
		Kind:        r.Kind.String(),
		Handle:      r.Handle,
		AccountID:   r.AccountID,
		Title:       r.Title,
		Primary:     r.Primary,
		Secondary:   r.Secondary,
		Data:        r.Data,
		CreatedAtMs: r.CreatedAt.UnixMilli(),
	}
}
