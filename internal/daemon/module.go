// Package daemon wires one profile's core, gRPC server, metrics endpoint
// and config watcher into an fx application.
package daemon

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/matheus3301/imcore/internal/config"
	"github.com/matheus3301/imcore/internal/core"
	"github.com/matheus3301/imcore/internal/lock"
	"github.com/matheus3301/imcore/internal/logging"
	"github.com/matheus3301/imcore/internal/metrics"
	"github.com/matheus3301/imcore/internal/profile"
	"github.com/matheus3301/imcore/internal/protocol"
	"github.com/matheus3301/imcore/internal/protocols/mock"
	"github.com/matheus3301/imcore/internal/protocols/whatsapp"
	"github.com/matheus3301/imcore/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Params holds the resolved daemon options passed to the fx module.
type Params struct {
	Profile string
	// BaseDir overrides ~/.imcore; empty uses the default.
	BaseDir string
	// ConfigPath overrides BaseDir/config.toml.
	ConfigPath string
	SocketPath string // optional override for testing; empty = use default
	Debug      bool
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfigPath,
			provideConfig,
			provideProfile,
			provideLogLevel,
			provideLogger,
			provideLock,
			provideStore,
			provideCore,
			provideCollector,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

// ConfigPath is the resolved config file location.
type ConfigPath string

func provideConfigPath(p Params) (ConfigPath, error) {
	if p.ConfigPath != "" {
		return ConfigPath(p.ConfigPath), nil
	}
	if p.BaseDir != "" {
		return ConfigPath(filepath.Join(p.BaseDir, "config.toml")), nil
	}
	path, err := config.DefaultPath()
	return ConfigPath(path), err
}

func provideConfig(path ConfigPath) (*config.Config, error) {
	return config.LoadOrDefault(string(path))
}

func provideProfile(p Params, cfg *config.Config) (*profile.Profile, error) {
	name := profile.Resolve(p.Profile, cfg)
	var (
		prof *profile.Profile
		err  error
	)
	if p.BaseDir != "" {
		prof, err = profile.New(p.BaseDir, name)
	} else {
		prof, err = profile.Open(name)
	}
	if err != nil {
		return nil, err
	}
	if err := prof.EnsureDir(); err != nil {
		return nil, err
	}
	return prof, nil
}

// provideLogLevel starts from config.toml; --debug pins it to debug.
func provideLogLevel(p Params, cfg *config.Config) (zap.AtomicLevel, error) {
	if p.Debug {
		return zap.NewAtomicLevelAt(zap.DebugLevel), nil
	}
	return logging.Level(cfg.Log.Level)
}

func provideLogger(prof *profile.Profile, level zap.AtomicLevel) (*zap.Logger, error) {
	return logging.New(logging.Options{Path: prof.LogPath(), Profile: prof.Name, Level: level})
}

func provideLock(p Params, prof *profile.Profile, logger *zap.Logger) (*lock.Lock, error) {
	socket := p.SocketPath
	if socket == "" {
		socket = prof.SocketPath()
	}
	l, err := lock.Acquire(prof.LockPath(), lock.Owner{Profile: prof.Name, Socket: socket})
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired", zap.String("path", prof.LockPath()), zap.Int("pid", l.Owner().PID))
	return l, nil
}

// provideStore takes the lock so the database is never opened by a
// second daemon.
func provideStore(prof *profile.Profile, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := prof.DBPath()
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideCore(prof *profile.Profile, cfg *config.Config, db *store.DB, logger *zap.Logger) (*core.Core, error) {
	c, err := core.New(core.Options{
		Profile:   prof,
		Config:    cfg,
		DB:        db,
		Logger:    logger,
		Protocols: []protocol.Protocol{mock.New()},
	})
	if err != nil {
		return nil, err
	}
	wa := whatsapp.New(whatsapp.Options{
		DeviceStore: prof.WhatsAppDBPath,
		Prompter:    c.Requests,
		Logger:      logger.Named("whatsapp"),
	})
	if err := c.Protocols.Register(wa); err != nil {
		return nil, err
	}
	return c, nil
}

func provideCollector(c *core.Core) *metrics.Collector {
	return metrics.New(c.Bus)
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Server     *Server
	Lock       *lock.Lock
	DB         *store.DB
	Core       *core.Core
	Collector  *metrics.Collector
	Config     *config.Config
	ConfigPath ConfigPath
	Params     Params
	LogLevel   zap.AtomicLevel
	Logger     *zap.Logger
}

func registerLifecycle(lp lifecycleParams) {
	c, logger := lp.Core, lp.Logger
	var (
		cancel   context.CancelFunc
		loopDone chan struct{}
		metricsS *metrics.Server
	)

	lp.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			loopDone = make(chan struct{})
			go func() {
				defer close(loopDone)
				if err := c.Loop.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("event loop stopped", zap.Error(err))
				}
			}()
			go lp.Collector.Run(runCtx, c.Bus)

			var initErr error
			if err := c.Do(ctx, func() { initErr = c.Init(runCtx) }); err != nil {
				initErr = err
			}
			if initErr != nil {
				stop()
				<-loopDone
				return initErr
			}

			if addr := lp.Config.Metrics.Listen; addr != "" {
				metricsS = metrics.NewServer(addr, metrics.NewRouter(lp.Collector, c.Status), logger.Named("metrics"))
				if err := metricsS.Start(); err != nil {
					logger.Warn("metrics disabled", zap.Error(err))
					metricsS = nil
				}
			}

			// Start gRPC server in background.
			go func() {
				if err := lp.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			go watchConfig(runCtx, lp, c, logger)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				lp.Server.Stop(gctx)
				return nil
			})
			if metricsS != nil {
				g.Go(func() error { return metricsS.Shutdown(gctx) })
			}
			stopErr := g.Wait()

			var shutdownErr error
			if err := c.Do(ctx, func() { shutdownErr = c.Shutdown() }); err != nil {
				shutdownErr = errors.Join(shutdownErr, err)
			}
			cancel()
			<-loopDone

			if err := lp.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lp.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return errors.Join(stopErr, shutdownErr)
		},
	})
}

// watchConfig applies config.toml edits on the loop until ctx ends.
func watchConfig(ctx context.Context, lp lifecycleParams, c *core.Core, logger *zap.Logger) {
	err := config.Watch(ctx, string(lp.ConfigPath), func(cfg *config.Config, err error) {
		if err != nil {
			logger.Warn("config reload failed", zap.Error(err))
			return
		}
		if !lp.Params.Debug {
			if lvl, err := logging.Level(cfg.Log.Level); err != nil {
				logger.Warn("config rejected", zap.Error(err))
			} else if lvl.Level() != lp.LogLevel.Level() {
				lp.LogLevel.SetLevel(lvl.Level())
				logger.Info("log level changed", zap.Stringer("level", lvl.Level()))
			}
		}
		var applyErr error
		if err := c.Do(ctx, func() { applyErr = c.ApplyConfig(cfg) }); err != nil {
			return
		}
		if applyErr != nil {
			logger.Warn("config rejected", zap.Error(applyErr))
		}
	})
	if err != nil {
		logger.Warn("config watcher stopped", zap.Error(err))
	}
}
