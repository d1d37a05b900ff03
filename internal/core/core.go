// Package core assembles the IM client core of one profile: the event
// loop, the protocol registry, accounts, the buddy list, conversations
// and the stores behind them.
//
// Init and Shutdown must run on the loop. Other goroutines reach the core
// through Do.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/imcore/internal/account"
	"github.com/matheus3301/imcore/internal/blist"
	"github.com/matheus3301/imcore/internal/bus"
	"github.com/matheus3301/imcore/internal/config"
	"github.com/matheus3301/imcore/internal/conversation"
	"github.com/matheus3301/imcore/internal/credential"
	"github.com/matheus3301/imcore/internal/eventloop"
	"github.com/matheus3301/imcore/internal/history"
	"github.com/matheus3301/imcore/internal/outbox"
	"github.com/matheus3301/imcore/internal/profile"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/proxy"
	"github.com/matheus3301/imcore/internal/request"
	"github.com/matheus3301/imcore/internal/status"
	"github.com/matheus3301/imcore/internal/store"
	"go.uber.org/zap"
)

// Options configure New.
type Options struct {
	// Profile locates accounts.xml, blist.xml and the age identity. Nil
	// keeps both documents in memory.
	Profile *profile.Profile
	Config  *config.Config
	DB      *store.DB
	Logger  *zap.Logger
	// Loop defaults to a wall-clock loop; tests pass a manual one.
	Loop      *eventloop.Loop
	Bus       *bus.Bus
	Protocols []protocol.Protocol
}

// Core is the assembled client core.
type Core struct {
	Loop          *eventloop.Loop
	Logger        *zap.Logger
	Bus           *bus.Bus
	Status        *status.Machine
	DB            *store.DB
	Protocols     *protocol.Registry
	Credentials   *credential.Manager
	Requests      *request.Broker
	Proxies       *proxy.Resolver
	Accounts      *account.Manager
	Reconnector   *account.Reconnector
	Buddies       *blist.List
	Conversations *conversation.Manager
	Outbox        *outbox.Outbox
	History       *history.Recorder

	profile   *profile.Profile
	cfg       *config.Config
	startedAt time.Time
	detach    []func()
	stopHist  context.CancelFunc
}

// New builds the core. Nothing is loaded until Init.
func New(opts Options) (*Core, error) {
	if opts.DB == nil {
		return nil, errors.New("core: nil store")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loop := opts.Loop
	if loop == nil {
		loop = eventloop.New(logger.Named("loop"))
	}
	b := opts.Bus
	if b == nil {
		b = bus.New()
	}

	c := &Core{
		Loop:      loop,
		Logger:    logger,
		Bus:       b,
		Status:    status.NewMachine(b),
		DB:        opts.DB,
		Protocols: protocol.NewRegistry(),
		profile:   opts.Profile,
		cfg:       cfg,
		startedAt: time.Now(),
	}
	for _, p := range opts.Protocols {
		if err := c.Protocols.Register(p); err != nil {
			return nil, err
		}
	}

	creds, err := c.newCredentials()
	if err != nil {
		return nil, err
	}
	c.Credentials = creds

	global, err := cfg.GlobalProxy()
	if err != nil {
		return nil, err
	}
	c.Proxies = proxy.NewResolver(global)
	c.Requests = request.NewBroker(b, logger.Named("request"), loop.Now)

	env := account.NewEnv(loop, logger, b, c.Protocols, creds, c.Requests, proxy.NewConnector(c.Proxies))
	c.History = history.NewRecorder(opts.DB, b, logger)
	env.SystemLog = c.History
	env.LogSystem = cfg.Core.SystemLog

	var accountsPath, blistPath string
	if c.profile != nil {
		accountsPath = c.profile.AccountsPath()
		blistPath = c.profile.BlistPath()
	}
	delay := cfg.Core.SaveDelay.Duration
	c.Accounts = account.NewManager(env, accountsPath, delay)
	c.Reconnector = account.NewReconnector(c.Accounts, cfg.ReconnectPolicy())
	c.Buddies = blist.New(blist.Options{
		Loop:      loop,
		Logger:    logger,
		Bus:       b,
		Path:      blistPath,
		SaveDelay: delay,
	})
	env.Buddies = c.Buddies
	c.Outbox = outbox.New(opts.DB, env)
	c.Conversations = conversation.NewManager(c.Accounts, conversation.WithQueue(c.Outbox))
	return c, nil
}

func (c *Core) newCredentials() (*credential.Manager, error) {
	m := credential.NewManager(c.Loop, c.Logger)
	if err := m.Register(credential.NewMemory()); err != nil {
		return nil, err
	}
	if err := m.Register(credential.NewSQLite(c.DB)); err != nil {
		return nil, err
	}
	if c.profile != nil {
		a, err := credential.NewAge(c.DB, c.profile.IdentityPath())
		if err != nil {
			return nil, fmt.Errorf("open age provider: %w", err)
		}
		if err := m.Register(a); err != nil {
			return nil, err
		}
	}
	if id := c.cfg.Credentials.Provider; id != "" {
		if err := m.SetActive(id); err != nil {
			c.Logger.Warn("credential provider unavailable, keeping default",
				zap.String("provider", id), zap.Error(err))
		}
	}
	return m, nil
}

// Do runs f on the loop and waits for it.
func (c *Core) Do(ctx context.Context, f func()) error {
	return c.Loop.Call(ctx, f)
}

// Profile returns the profile name, empty for an in-memory core.
func (c *Core) Profile() string {
	if c.profile == nil {
		return ""
	}
	return c.profile.Name
}

// StartedAt is when the core was built.
func (c *Core) StartedAt() time.Time { return c.startedAt }

// Init loads accounts.xml and blist.xml, starts the history recorder and,
// when core.auto_online is set, brings the manager online.
func (c *Core) Init(ctx context.Context) error {
	if err := c.Status.Transition(status.Loading); err != nil {
		return err
	}
	hctx, cancel := context.WithCancel(ctx)
	c.stopHist = cancel
	c.History.Start(hctx)

	if err := c.Accounts.Load(); err != nil {
		_ = c.Status.Transition(status.Error)
		return fmt.Errorf("load accounts: %w", err)
	}
	if err := c.Buddies.Load(); err != nil {
		_ = c.Status.Transition(status.Error)
		return fmt.Errorf("load buddy list: %w", err)
	}
	c.detach = append(c.detach, c.Buddies.Attach(c.Accounts))

	h := c.Accounts.OnlineChanged.Connect(c.Status.SetOnline)
	c.detach = append(c.detach, func() { c.Accounts.OnlineChanged.Disconnect(h) })

	c.Status.SetOnline(false)
	if c.cfg.Core.AutoOnline {
		c.Accounts.SetOnline(true)
	}
	c.Logger.Info("core initialized",
		zap.Int("accounts", c.Accounts.Len()),
		zap.Int("buddies", len(c.Buddies.Buddies())),
		zap.Bool("online", c.Accounts.Online()))
	return nil
}

// ApplyConfig applies the reloadable parts of cfg: the global proxy, the
// system log flag, the save delay and the reconnect policy.
func (c *Core) ApplyConfig(cfg *config.Config) error {
	global, err := cfg.GlobalProxy()
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.Proxies.Global = global
	env := c.Accounts.Env()
	env.LogSystem = cfg.Core.SystemLog
	c.Accounts.SetSaveDelay(cfg.Core.SaveDelay.Duration)
	c.Reconnector.SetPolicy(cfg.ReconnectPolicy())
	c.Logger.Info("configuration applied",
		zap.Stringer("proxy", global.Type),
		zap.Bool("system_log", cfg.Core.SystemLog))
	return nil
}

// Shutdown disconnects every connection, writes pending saves and stops
// the background consumers.
func (c *Core) Shutdown() error {
	_ = c.Status.Transition(status.Stopping)
	c.Reconnector.Close()
	c.Accounts.Env().Connections.DisconnectAll()

	var errs []error
	if err := c.Accounts.Flush(); err != nil && !errors.Is(err, account.ErrNotLoaded) {
		errs = append(errs, fmt.Errorf("save accounts: %w", err))
	}
	if err := c.Buddies.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("save buddy list: %w", err))
	}

	for i := len(c.detach) - 1; i >= 0; i-- {
		c.detach[i]()
	}
	c.detach = nil
	c.Conversations.Close()
	c.Outbox.Close()
	if c.stopHist != nil {
		c.History.Stop()
		c.stopHist()
		c.stopHist = nil
	}
	return errors.Join(errs...)
}
