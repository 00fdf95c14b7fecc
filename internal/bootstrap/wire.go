package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/baechuer/real-time-ressys/client-core/internal/application/session"
	"github.com/baechuer/real-time-ressys/client-core/internal/application/viewstate"
	"github.com/baechuer/real-time-ressys/client-core/internal/cache"
	"github.com/baechuer/real-time-ressys/client-core/internal/config"
	"github.com/baechuer/real-time-ressys/client-core/internal/downstream"
	"github.com/baechuer/real-time-ressys/client-core/internal/infrastructure/kv"
	"github.com/baechuer/real-time-ressys/client-core/internal/infrastructure/kv/redis"
	"github.com/baechuer/real-time-ressys/client-core/internal/infrastructure/kv/sqlite"
	"github.com/baechuer/real-time-ressys/client-core/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/real-time-ressys/client-core/internal/logger"
	"github.com/baechuer/real-time-ressys/client-core/internal/tracing"
	"github.com/baechuer/real-time-ressys/client-core/internal/transport/http/debug"
	"golang.org/x/sync/singleflight"
)

// App is the wired core. Everything a screen needs hangs off it.
type App struct {
	Config  *config.Config
	Store   *kv.Store
	Cache   *cache.Cache
	Session *session.Manager
	API     *downstream.Client
	State   *viewstate.Store
	Fetches *singleflight.Group
	Debug   http.Handler

	cleanup []func(context.Context) error
}

// Deps allows swapping infrastructure in tests.
type Deps struct {
	OpenBackend   func(ctx context.Context, cfg *config.Config) (kv.Backend, error)
	StartConsumer func(ctx context.Context, c *rabbitmq.Consumer) error
}

func DefaultDeps() Deps {
	return Deps{
		OpenBackend:   OpenBackend,
		StartConsumer: func(ctx context.Context, c *rabbitmq.Consumer) error { return c.Start(ctx) },
	}
}

func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	return BuildWithDeps(ctx, cfg, DefaultDeps())
}

func BuildWithDeps(ctx context.Context, cfg *config.Config, deps Deps) (*App, error) {
	app := &App{Config: cfg, Fetches: &singleflight.Group{}}

	// 1) tracing
	tp, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:  "client-core",
		OTLPEndpoint: cfg.OTLPEndpoint,
		Enabled:      cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	app.cleanup = append(app.cleanup, tp.Shutdown)

	// 2) persistent store
	backend, err := deps.OpenBackend(ctx, cfg)
	if err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	if c, ok := backend.(io.Closer); ok {
		app.cleanup = append(app.cleanup, func(context.Context) error { return c.Close() })
	}
	app.Store = kv.NewStore(backend)
	app.Cache = cache.New(app.Store)

	// 3) session + API client; each needs the other
	app.Session = session.NewManager(app.Store, nil)
	clientCfg := downstream.DefaultClientConfig()
	if cfg.APIReadTimeout > 0 {
		clientCfg.ReadTimeout = cfg.APIReadTimeout
	}
	if cfg.APIWriteTimeout > 0 {
		clientCfg.WriteTimeout = cfg.APIWriteTimeout
	}
	app.API = downstream.NewClient(cfg.APIBaseURL, clientCfg)
	app.API.SetTokenSource(app.Session)
	app.Session.SetRefresher(app.API)

	// 4) view state; logout wipes durable data through the session
	app.State = viewstate.New(app.Session)
	app.Session.BindStateClearer(app.State.Logout)

	// 5) invalidation feed (optional)
	if cfg.RabbitURL != "" {
		consumerCtx, cancel := context.WithCancel(context.Background())
		consumer := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitExchange, cfg.RabbitQueue, app.Cache)
		if err := deps.StartConsumer(consumerCtx, consumer); err != nil {
			cancel()
			// cache still works without the feed
			logger.Log.Warn().Err(err).Msg("invalidation consumer unavailable")
		} else {
			app.cleanup = append(app.cleanup, func(context.Context) error { cancel(); return nil })
		}
	}

	// 6) debug surface
	app.Debug = debug.NewRouter(debug.NewHandler(app.Store, app.State), debug.RouterConfig{
		RateLimit:  cfg.DebugRLLimit,
		RateWindow: cfg.DebugRLWindow,
	})

	logger.Log.Info().
		Str("store", cfg.StoreBackend).
		Str("api", cfg.APIBaseURL).
		Bool("invalidation_feed", cfg.RabbitURL != "").
		Msg("client core ready")
	return app, nil
}

// OpenBackend opens the store named by cfg.StoreBackend.
func OpenBackend(ctx context.Context, cfg *config.Config) (kv.Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		b, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BackendRedis:
		b, err := redis.New(cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BackendMemory, "":
		return kv.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var first error
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	a.cleanup = nil
	return first
}
