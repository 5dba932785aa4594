// Package daemon composes the messaging core: storage, the event
// router, the socket manager, the unread tracker and the push bridge,
// wired together with fx and torn down in reverse on shutdown.
package daemon

import (
	"context"
	"os"

	"github.com/SrClauss/agapp-messaging/internal/config"
	"github.com/SrClauss/agapp-messaging/internal/lock"
	"github.com/SrClauss/agapp-messaging/internal/logging"
	"github.com/SrClauss/agapp-messaging/internal/push"
	"github.com/SrClauss/agapp-messaging/internal/rest"
	"github.com/SrClauss/agapp-messaging/internal/router"
	"github.com/SrClauss/agapp-messaging/internal/session"
	"github.com/SrClauss/agapp-messaging/internal/store"
	"github.com/SrClauss/agapp-messaging/internal/unread"
	"github.com/SrClauss/agapp-messaging/internal/ws"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideLock,
			provideStore,
			provideRouter,
			provideAuth,
			provideRESTClient,
			provideManager,
			provideTracker,
			provideBridge,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideConfig(logger *zap.Logger) *config.Config {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		logger.Info("no config file, using defaults", zap.Error(err))
		return config.Default()
	}
	return cfg
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
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

func provideRouter(logger *zap.Logger) *router.Router {
	return router.New(logger)
}

func provideAuth(db *store.DB) (*session.Auth, error) {
	return session.LoadAuth(db)
}

func provideRESTClient(cfg *config.Config, auth *session.Auth) rest.Client {
	return rest.NewHTTPClient(cfg.APIBaseURL, func() string {
		if auth == nil {
			return ""
		}
		return auth.Token
	})
}

func provideManager(cfg *config.Config, r *router.Router, logger *zap.Logger) *ws.Manager {
	return ws.NewManager(ws.Options{
		APIBaseURL:  cfg.APIBaseURL,
		BaseDelay:   cfg.Socket.BaseDelay(),
		MaxAttempts: cfg.Socket.MaxAttempts,
	}, r, logger)
}

func provideTracker(auth *session.Auth, db *store.DB, logger *zap.Logger) *unread.Tracker {
	localUserID := ""
	if auth != nil {
		localUserID = auth.UserID
	}
	return unread.NewTracker(localUserID, db, &logBadge{logger: logger}, logger)
}

func provideBridge(auth *session.Auth, api rest.Client, logger *zap.Logger) *push.Bridge {
	localUserID := ""
	if auth != nil {
		localUserID = auth.UserID
	}
	deviceName, _ := os.Hostname()
	return push.NewBridge(localUserID, deviceName, api, envTokenSource{}, &logNotifier{logger: logger}, nil, logger)
}

func registerLifecycle(lc fx.Lifecycle, mgr *ws.Manager, tracker *unread.Tracker, bridge *push.Bridge, r *router.Router, auth *session.Auth, db *store.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if auth == nil {
				logger.Info("no stored session, staying offline until login")
				return nil
			}

			tracker.Attach(r)
			bridge.Attach(r)

			if err := mgr.Connect(auth.UserID, auth.Token); err != nil {
				// Backoff retries are already scheduled; startup proceeds.
				logger.Warn("initial connect failed", zap.Error(err))
			}

			go bridge.RegisterToken(context.Background(), auth.Token)
			return nil
		},
		OnStop: func(_ context.Context) error {
			mgr.Disconnect()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
