// Package proxy holds per-account proxy settings and turns them into
// dialers.
package proxy

import (
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
)

// Type selects how connections are proxied.
type Type int

const (
	UseGlobal Type = iota
	None
	HTTP
	SOCKS4
	SOCKS5
	Tor
	UseEnvVar
)

var typeNames = map[Type]string{
	UseGlobal: "global",
	None:      "none",
	HTTP:      "http",
	SOCKS4:    "socks4",
	SOCKS5:    "socks5",
	Tor:       "tor",
	UseEnvVar: "envvar",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "global"
}

// ParseType maps the persisted name of a proxy type. Unknown names report
// false.
func ParseType(s string) (Type, bool) {
	for t, name := range typeNames {
		if name == s {
			return t, true
		}
	}
	return UseGlobal, false
}

// Info is a proxy configuration.
type Info struct {
	Type     Type
	Host     string
	Port     int
	Username string
	Password string
}

// IsDefault reports whether every field holds its zero value, meaning
// "use the global proxy" with nothing overridden.
func (i *Info) IsDefault() bool {
	return i == nil || (i.Type == UseGlobal && i.Host == "" && i.Port == 0 &&
		i.Username == "" && i.Password == "")
}

// Address returns host:port.
func (i *Info) Address() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

// Clone returns a copy of i.
func (i *Info) Clone() *Info {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// ErrUnsupported is returned when no dialer exists for a proxy type.
var ErrUnsupported = eris.New("proxy type not supported")

// Resolver turns an account's proxy setting into the effective one.
type Resolver struct {
	Global *Info
	Getenv func(string) string
}

// NewResolver returns a resolver using global as the fallback.
func NewResolver(global *Info) *Resolver {
	return &Resolver{Global: global, Getenv: os.Getenv}
}

// Resolve returns the proxy to use for an account whose own setting is
// info (possibly nil).
func (r *Resolver) Resolve(info *Info) (*Info, error) {
	if info == nil || info.Type == UseGlobal {
		if r.Global == nil || r.Global.Type == UseGlobal {
			return &Info{Type: None}, nil
		}
		info = r.Global
	}
	if info.Type == UseEnvVar {
		return r.fromEnv()
	}
	return info.Clone(), nil
}

func (r *Resolver) fromEnv() (*Info, error) {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	var raw string
	for _, key := range []string{"ALL_PROXY", "all_proxy", "HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy"} {
		if raw = getenv(key); raw != "" {
			break
		}
	}
	if raw == "" {
		return &Info{Type: None}, nil
	}
	return ParseURL(raw)
}

// ParseURL converts a proxy URL such as socks5://user:pw@host:1080.
func ParseURL(raw string) (*Info, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, eris.Wrapf(err, "parse proxy url %q", raw)
	}
	info := &Info{Host: u.Hostname()}
	switch u.Scheme {
	case "http", "https":
		info.Type, info.Port = HTTP, 8080
	case "socks4", "socks4a":
		info.Type, info.Port = SOCKS4, 1080
	case "socks5", "socks5h":
		info.Type, info.Port = SOCKS5, 1080
	default:
		return nil, eris.Wrapf(ErrUnsupported, "scheme %q", u.Scheme)
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, eris.Wrapf(err, "proxy port %q", p)
		}
		info.Port = port
	}
	if u.User != nil {
		info.Username = u.User.Username()
		info.Password, _ = u.User.Password()
	}
	return info, nil
}
