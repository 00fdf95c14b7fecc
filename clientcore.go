// Package clientcore is the data layer behind the event app's list screens:
// a persistent stale-while-revalidate cache, one loader per screen resource,
// a global view-state store with optimistic mutations, and the filters the
// screens derive from it.
package clientcore

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/baechuer/real-time-ressys/client-core/internal/application/filter"
	"github.com/baechuer/real-time-ressys/client-core/internal/application/loader"
	"github.com/baechuer/real-time-ressys/client-core/internal/application/viewstate"
	"github.com/baechuer/real-time-ressys/client-core/internal/bootstrap"
	"github.com/baechuer/real-time-ressys/client-core/internal/config"
	"github.com/baechuer/real-time-ressys/client-core/internal/domain"
	"github.com/baechuer/real-time-ressys/client-core/internal/downstream"
	"github.com/baechuer/real-time-ressys/client-core/internal/logger"
)

type (
	Event            = domain.Event
	User             = domain.User
	Ticket           = domain.Ticket
	State            = loader.State
	Phase            = loader.Phase
	Snapshot         = viewstate.Snapshot
	HomeFilter       = filter.HomeFilter
	DateRange        = filter.DateRange
	Group            = filter.Group
	CreateEventInput = downstream.CreateEventInput
	Config           = config.Config
)

type Loader[T any] = loader.Loader[T]

const (
	PhaseIdle                  = loader.PhaseIdle
	PhaseCacheCheck            = loader.PhaseCacheCheck
	PhaseShowingStale          = loader.PhaseShowingStale
	PhaseFetching              = loader.PhaseFetching
	PhaseShowingFresh          = loader.PhaseShowingFresh
	PhaseShowingStaleWithError = loader.PhaseShowingStaleWithError
	PhaseShowingError          = loader.PhaseShowingError
)

const (
	HomeExplore   = filter.HomeExplore
	HomeFollowing = filter.HomeFollowing
	HomeToday     = filter.HomeToday
	HomeUpcoming  = filter.HomeUpcoming

	RangeToday       = filter.RangeToday
	RangeTomorrow    = filter.RangeTomorrow
	RangeThisWeek    = filter.RangeThisWeek
	RangeThisWeekend = filter.RangeThisWeekend
	RangeNextWeek    = filter.RangeNextWeek
	RangeNextWeekend = filter.RangeNextWeekend
	RangeThisMonth   = filter.RangeThisMonth
)

// Core is one signed-in-or-not client instance. It is safe for concurrent
// use by every screen.
type Core struct {
	app *bootstrap.App
	now func() time.Time
}

// New loads configuration from the environment (and .env) and wires a Core.
func New(ctx context.Context) (*Core, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	return NewWithConfig(ctx, cfg)
}

func NewWithConfig(ctx context.Context, cfg *Config) (*Core, error) {
	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c := &Core{app: app, now: time.Now}
	c.restore(ctx)
	return c, nil
}

// restore resumes a persisted session so a cold start opens signed in.
func (c *Core) restore(ctx context.Context) {
	if !c.app.Session.HasSession(ctx) {
		return
	}
	if u, ok := c.app.Session.Profile(ctx); ok {
		c.app.State.Login(u)
		logger.Ctx(ctx).Debug().Str("user_id", u.ID).Msg("session restored")
	}
}

func (c *Core) Snapshot() Snapshot { return c.app.State.Snapshot() }

// Subscribe calls fn after every view-state change. The returned func
// unsubscribes.
func (c *Core) Subscribe(fn func(Snapshot)) func() {
	return c.app.State.Subscribe(fn)
}

// SetOnSessionExpired registers the callback run after a rejected refresh
// has cleared all local state (typically: navigate to sign-in).
func (c *Core) SetOnSessionExpired(cb func()) {
	c.app.Session.SetOnSessionExpired(cb)
}

// DebugHandler serves health, metrics and cache inspection endpoints.
func (c *Core) DebugHandler() http.Handler { return c.app.Debug }

func (c *Core) Close(ctx context.Context) error {
	return c.app.Close(ctx)
}
