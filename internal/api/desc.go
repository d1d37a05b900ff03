package api

import (
	"context"

	"google.golang.org/grpc"
)

func unary[S, Req, Resp any](service, name string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + service + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			})
		},
	}
}

// Sender is the server side of a server-streaming call.
type Sender[T any] interface {
	Send(*T) error
	Context() context.Context
}

type serverStream[T any] struct {
	grpc.ServerStream
}

func (s serverStream[T]) Send(v *T) error { return s.ServerStream.SendMsg(v) }

func serverStreaming[S, Req, Resp any](name string, call func(S, *Req, Sender[Resp]) error) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName:    name,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			req := new(Req)
			if err := stream.RecvMsg(req); err != nil {
				return err
			}
			return call(srv.(S), req, serverStream[Resp]{stream})
		},
	}
}
