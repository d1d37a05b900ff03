package daemon

import (
	"context"
	"fmt"
	"net"
	"os"
	"path"
	"time"

	"github.com/matheus3301/imcore/internal/api"
	"github.com/matheus3301/imcore/internal/core"
	"github.com/matheus3301/imcore/internal/metrics"
	"github.com/matheus3301/imcore/internal/profile"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server serves the daemon API on the profile's Unix domain socket.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	socketPath string
	logger     *zap.Logger
}

// NewServer listens on the socket and registers the API services of c.
// Every call is logged and counted in m.
func NewServer(p Params, prof *profile.Profile, logger *zap.Logger, c *core.Core, m *metrics.Collector) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = prof.SocketPath()
	}
	if err := removeStaleSocket(socketPath); err != nil {
		return nil, err
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	rpcLog := logger.Named("rpc")
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(unaryObserver(rpcLog, m)),
		grpc.ChainStreamInterceptor(streamObserver(rpcLog, m)),
	)
	api.Register(srv, c)

	return &Server{
		grpcServer: srv,
		listener:   listener,
		socketPath: socketPath,
		logger:     logger,
	}, nil
}

// removeStaleSocket deletes a socket file nobody answers on. The profile
// lock normally rules out a live one; a custom --socket may not be
// covered by it.
func removeStaleSocket(socketPath string) error {
	if _, err := os.Stat(socketPath); err != nil {
		return nil
	}
	conn, err := net.DialTimeout("unix", socketPath, time.Second)
	if err == nil {
		_ = conn.Close()
		return fmt.Errorf("socket %s is in use by another daemon", socketPath)
	}
	return os.Remove(socketPath)
}

// SocketPath is where the server listens.
func (s *Server) SocketPath() string { return s.socketPath }

// Start serves until Stop. It blocks.
func (s *Server) Start() error {
	s.logger.Info("gRPC server starting", zap.String("socket", s.socketPath))
	return s.grpcServer.Serve(s.listener)
}

// Stop drains in-flight calls and removes the socket file. Open Watch
// streams are cut when ctx ends.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("gRPC server stopping")
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
	_ = os.Remove(s.socketPath)
}

func unaryObserver(logger *zap.Logger, m *metrics.Collector) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		observe(logger, m, info.FullMethod, start, err)
		return resp, err
	}
}

func streamObserver(logger *zap.Logger, m *metrics.Collector) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		observe(logger, m, info.FullMethod, start, err)
		return err
	}
}

func observe(logger *zap.Logger, m *metrics.Collector, fullMethod string, start time.Time, err error) {
	code := status.Code(err)
	method := path.Base(fullMethod)
	if m != nil {
		m.ObserveRPC(method, code.String())
	}
	fields := []zap.Field{
		zap.String("method", fullMethod),
		zap.String("code", code.String()),
		zap.Duration("elapsed", time.Since(start)),
	}
	// Watch streams end with Canceled when the client goes away.
	if code != codes.OK && code != codes.Canceled {
		logger.Warn("call failed", append(fields, zap.Error(err))...)
		return
	}
	logger.Debug("call", fields...)
}
