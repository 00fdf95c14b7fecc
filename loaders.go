package clientcore

import (
	"context"

	"github.com/baechuer/real-time-ressys/client-core/internal/application/loader"
	"github.com/baechuer/real-time-ressys/client-core/internal/application/viewstate"
	"github.com/baechuer/real-time-ressys/client-core/internal/cache"
	"github.com/baechuer/real-time-ressys/client-core/internal/domain"
)

// Explore loads the fully categorized approved list into the global store.
// A cached list written by the home feed's shallow converter is not shown.
func (c *Core) Explore(onState func(State)) *Loader[[]*Event] {
	return loader.New(loader.Options[[]*domain.Event]{
		Resource: "events_approved",
		Key:      cache.EventsApproved(),
		Cache:    c.app.Cache,
		Fetch:    c.app.API.ApprovedEvents,
		Sink:     c.app.State.EventsSink(),
		Fresh:    loader.CategorizedEvents,
		Group:    c.app.Fetches,
		OnState:  onState,
	})
}

// Home loads the approved list through the shallow converter. It shares the
// cache entry with Explore but never a fetch.
func (c *Core) Home(onState func(State)) *Loader[[]*Event] {
	return loader.New(loader.Options[[]*domain.Event]{
		Resource:  "events_home",
		Key:       cache.EventsApproved(),
		Cache:     c.app.Cache,
		Fetch:     c.app.API.HomeEvents,
		Sink:      c.app.State.EventsSink(),
		Group:     c.app.Fetches,
		FlightKey: "home:" + cache.EventsApproved().String(),
		OnState:   onState,
	})
}

// Event loads one event for a detail screen. The value stays local to the
// returned loader.
func (c *Core) Event(id string, onState func(State)) *Loader[*Event] {
	return loader.New(loader.Options[*domain.Event]{
		Resource: "event",
		Key:      cache.EventByID(id),
		Cache:    c.app.Cache,
		Fetch: func(ctx context.Context) (*domain.Event, error) {
			return c.app.API.Event(ctx, id)
		},
		Sink:    viewstate.NewLocal[*domain.Event](c.app.State),
		Fresh:   loader.NotNil[domain.Event],
		Group:   c.app.Fetches,
		OnState: onState,
	})
}

// Profile loads a user profile. The session user's own profile is published
// to the global store; anyone else's stays local.
func (c *Core) Profile(id string, onState func(State)) *Loader[*User] {
	var sink loader.Sink[*domain.User] = viewstate.NewLocal[*domain.User](c.app.State)
	if u := c.app.State.User(); u != nil && u.ID == id {
		sink = c.app.State.UserSink()
	}
	return loader.New(loader.Options[*domain.User]{
		Resource: "user_profile",
		Key:      cache.UserProfileByID(id),
		Cache:    c.app.Cache,
		Fetch: func(ctx context.Context) (*domain.User, error) {
			return c.app.API.UserProfile(ctx, id)
		},
		Sink:    sink,
		Fresh:   loader.NotNil[domain.User],
		Group:   c.app.Fetches,
		OnState: onState,
	})
}

func (c *Core) Ticket(id string, onState func(State)) *Loader[*Ticket] {
	return loader.New(loader.Options[*domain.Ticket]{
		Resource: "ticket",
		Key:      cache.TicketByID(id),
		Cache:    c.app.Cache,
		Fetch: func(ctx context.Context) (*domain.Ticket, error) {
			return c.app.API.Ticket(ctx, id)
		},
		Sink:    viewstate.NewLocal[*domain.Ticket](c.app.State),
		Fresh:   loader.NotNil[domain.Ticket],
		Group:   c.app.Fetches,
		OnState: onState,
	})
}

// MyTickets loads the session user's tickets. A cached empty list is not
// shown before the fetch; an empty fetched list is a valid result.
func (c *Core) MyTickets(onState func(State)) *Loader[[]*Ticket] {
	return loader.New(loader.Options[[]*domain.Ticket]{
		Resource: "tickets_my",
		Key:      cache.TicketsMine(),
		Cache:    c.app.Cache,
		Fetch:    c.app.API.MyTickets,
		Sink:     viewstate.NewLocal[[]*domain.Ticket](c.app.State),
		Fresh:    loader.NonEmpty[*domain.Ticket],
		Group:    c.app.Fetches,
		OnState:  onState,
	})
}
