package api

import (
	"context"
	"errors"

	"github.com/matheus3301/imcore/internal/account"
	"github.com/matheus3301/imcore/internal/blist"
	"github.com/matheus3301/imcore/internal/conversation"
	"github.com/matheus3301/imcore/internal/credential"
	"github.com/matheus3301/imcore/internal/eventloop"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/request"
	"github.com/rotisserie/eris"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

var (
	errAccountNotFound = errors.New("account not found")
	errBuddyNotFound   = errors.New("buddy not found")
	errInvalid         = errors.New("invalid argument")
)

// toStatus maps a domain error to a gRPC status.
func toStatus(op string, err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, eventloop.ErrStopped), errors.Is(err, conversation.ErrOffline):
		code = codes.Unavailable
	case errors.Is(err, errAccountNotFound), errors.Is(err, errBuddyNotFound),
		errors.Is(err, protocol.ErrNotFound), errors.Is(err, request.ErrNotFound),
		errors.Is(err, blist.ErrInvalidNode), eris.Is(err, credential.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, errInvalid), errors.Is(err, conversation.ErrEmptyMessage),
		errors.Is(err, request.ErrWrongKind):
		code = codes.InvalidArgument
	case errors.Is(err, account.ErrPrecondition), errors.Is(err, blist.ErrNotEmpty),
		errors.Is(err, blist.ErrDuplicate), eris.Is(err, credential.ErrNoProvider):
		code = codes.FailedPrecondition
	case errors.Is(err, conversation.ErrUnsupported), errors.Is(err, protocol.ErrMissingCapability):
		code = codes.Unimplemented
	}
	return grpcstatus.Errorf(code, "%s: %v", op, err)
}
