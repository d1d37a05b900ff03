package client

import (
	"fmt"

	"github.com/matheus3301/imcore/internal/api"
	"google.golang.org/grpc"
)

// Client bundles the daemon's service clients over one connection.
type Client struct {
	conn          *grpc.ClientConn
	Core          *api.CoreClient
	Accounts      *api.AccountClient
	Buddies       *api.BuddyClient
	Conversations *api.ConversationClient
	Requests      *api.RequestClient
}

// New dials the daemon's Unix domain socket.
func New(socketPath string) (*Client, error) {
	conn, err := api.Dial(socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return FromConn(conn), nil
}

// FromConn wraps an existing connection.
func FromConn(conn *grpc.ClientConn) *Client {
	return &Client{
		conn:          conn,
		Core:          api.NewCoreClient(conn),
		Accounts:      api.NewAccountClient(conn),
		Buddies:       api.NewBuddyClient(conn),
		Conversations: api.NewConversationClient(conn),
		Requests:      api.NewRequestClient(conn),
	}
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
