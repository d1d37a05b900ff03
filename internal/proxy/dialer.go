package proxy

import (
	"context"
	"net"
	"sync"

	"github.com/rotisserie/eris"
	xproxy "golang.org/x/net/proxy"
)

const defaultTorPort = 9050

// Dialer returns a context dialer that connects through info.
func Dialer(info *Info) (xproxy.ContextDialer, error) {
	if info == nil {
		return &net.Dialer{}, nil
	}
	switch info.Type {
	case None, UseGlobal:
		return &net.Dialer{}, nil
	case SOCKS5, Tor:
		addr := info.Address()
		if info.Type == Tor {
			c := info.Clone()
			if c.Host == "" {
				c.Host = "127.0.0.1"
			}
			if c.Port == 0 {
				c.Port = defaultTorPort
			}
			addr = c.Address()
		}
		var auth *xproxy.Auth
		if info.Username != "" {
			auth = &xproxy.Auth{User: info.Username, Password: info.Password}
		}
		d, err := xproxy.SOCKS5("tcp", addr, auth, xproxy.Direct)
		if err != nil {
			return nil, eris.Wrapf(err, "socks5 dialer for %s", addr)
		}
		cd, ok := d.(xproxy.ContextDialer)
		if !ok {
			return nil, eris.Wrap(ErrUnsupported, "socks5 dialer without context support")
		}
		return cd, nil
	default:
		return nil, eris.Wrapf(ErrUnsupported, "%s", info.Type)
	}
}

// Connector dials on behalf of connections and can cancel every pending
// attempt belonging to one handle.
type Connector struct {
	resolver *Resolver

	mu      sync.Mutex
	pending map[string]map[int]context.CancelFunc
	next    int
}

// NewConnector creates a connector using resolver for effective settings.
func NewConnector(resolver *Resolver) *Connector {
	return &Connector{
		resolver: resolver,
		pending:  make(map[string]map[int]context.CancelFunc),
	}
}

// Dial connects to addr through the proxy configured by info. The attempt
// is registered under handle until it completes.
func (c *Connector) Dial(ctx context.Context, handle string, info *Info, network, addr string) (net.Conn, error) {
	effective, err := c.resolver.Resolve(info)
	if err != nil {
		return nil, err
	}
	d, err := Dialer(effective)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	id := c.register(handle, cancel)
	defer c.unregister(handle, id)
	defer cancel()

	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, eris.Wrapf(err, "dial %s", addr)
	}
	return conn, nil
}

// CancelHandle aborts every in-flight Dial registered under handle.
func (c *Connector) CancelHandle(handle string) int {
	c.mu.Lock()
	attempts := c.pending[handle]
	delete(c.pending, handle)
	c.mu.Unlock()

	for _, cancel := range attempts {
		cancel()
	}
	return len(attempts)
}

// Pending reports the number of in-flight attempts for handle.
func (c *Connector) Pending(handle string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending[handle])
}

func (c *Connector) register(handle string, cancel context.CancelFunc) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	if c.pending[handle] == nil {
		c.pending[handle] = make(map[int]context.CancelFunc)
	}
	c.pending[handle][c.next] = cancel
	return c.next
}

func (c *Connector) unregister(handle string, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending[handle], id)
	if len(c.pending[handle]) == 0 {
		delete(c.pending, handle)
	}
}
