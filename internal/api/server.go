package api

import (
	"github.com/matheus3301/imcore/internal/core"
	"google.golang.org/grpc"
)

// Register installs every service backed by c on srv.
func Register(srv grpc.ServiceRegistrar, c *core.Core) {
	srv.RegisterService(&coreServiceDesc, NewCoreService(c))
	srv.RegisterService(&accountServiceDesc, NewAccountService(c))
	srv.RegisterService(&buddyServiceDesc, NewBuddyService(c))
	srv.RegisterService(&conversationServiceDesc, NewConversationService(c))
	srv.RegisterService(&requestServiceDesc, NewRequestService(c))
}
