package clientcore

import (
	"context"
	"fmt"

	"github.com/baechuer/real-time-ressys/client-core/internal/application/filter"
	"github.com/baechuer/real-time-ressys/client-core/internal/application/session"
	"github.com/baechuer/real-time-ressys/client-core/internal/domain"
	"github.com/baechuer/real-time-ressys/client-core/internal/logger"
)

// ErrNotSignedIn is returned by actions that need a session user.
var ErrNotSignedIn = session.ErrNoSession

// SignIn exchanges credentials, persists the session and publishes the user.
func (c *Core) SignIn(ctx context.Context, email, password string) (*User, error) {
	u, access, refresh, err := c.app.API.Login(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	c.app.Session.SaveTokens(ctx, access, refresh)
	c.app.Session.SaveProfile(ctx, u)
	c.app.State.Login(u)
	return u, nil
}

// SignOut clears user, events and every persisted key before returning.
func (c *Core) SignOut(ctx context.Context) {
	c.app.State.Logout(ctx)
}

func (c *Core) sessionUser() (*domain.User, error) {
	u := c.app.State.User()
	if u == nil {
		return nil, ErrNotSignedIn
	}
	return u, nil
}

func (c *Core) findEvent(id string) *domain.Event {
	for _, e := range c.app.State.Events() {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Like toggles the session user's like on the event right away and sends it.
// A failed request toggles it back unless the session changed meanwhile.
func (c *Core) Like(ctx context.Context, eventID string) error {
	u, err := c.sessionUser()
	if err != nil {
		return err
	}
	epoch := c.app.State.Epoch()
	c.app.State.ToggleLike(eventID, u.ID)

	if err := c.app.API.ToggleLike(ctx, eventID); err != nil {
		c.rollback(ctx, epoch, "like", eventID, err, func() { c.app.State.ToggleLike(eventID, u.ID) })
		return err
	}
	return nil
}

// Join registers the session user. Joining an event already joined only
// sends the request.
func (c *Core) Join(ctx context.Context, eventID string) error {
	u, err := c.sessionUser()
	if err != nil {
		return err
	}
	epoch := c.app.State.Epoch()
	applied := false
	if ev := c.findEvent(eventID); ev == nil || !ev.JoinedBy(u.ID) {
		c.app.State.RegisterForEvent(eventID, u.ID)
		applied = true
	}

	if err := c.app.API.Join(ctx, eventID); err != nil {
		if applied {
			c.rollback(ctx, epoch, "join", eventID, err, func() { c.app.State.UnregisterFromEvent(eventID, u.ID) })
		}
		return err
	}
	c.app.Session.SaveProfile(ctx, c.app.State.User())
	return nil
}

func (c *Core) Unjoin(ctx context.Context, eventID string) error {
	u, err := c.sessionUser()
	if err != nil {
		return err
	}
	epoch := c.app.State.Epoch()
	applied := false
	if ev := c.findEvent(eventID); ev != nil && ev.JoinedBy(u.ID) {
		c.app.State.UnregisterFromEvent(eventID, u.ID)
		applied = true
	}

	if err := c.app.API.Unjoin(ctx, eventID); err != nil {
		if applied {
			c.rollback(ctx, epoch, "unjoin", eventID, err, func() { c.app.State.RegisterForEvent(eventID, u.ID) })
		}
		return err
	}
	c.app.Session.SaveProfile(ctx, c.app.State.User())
	return nil
}

func (c *Core) rollback(ctx context.Context, epoch uint64, action, eventID string, cause error, undo func()) {
	log := logger.Ctx(ctx).Warn().Err(cause).Str("action", action).Str("event_id", eventID)
	if c.app.State.Epoch() != epoch {
		log.Msg("optimistic update dropped with session")
		return
	}
	undo()
	log.Msg("optimistic update rolled back")
}

// CreateEvent posts a new event and prepends it to the working list until
// the next refetch.
func (c *Core) CreateEvent(ctx context.Context, in CreateEventInput) (*Event, error) {
	if _, err := c.sessionUser(); err != nil {
		return nil, err
	}
	ev, err := c.app.API.CreateEvent(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	c.app.State.AddEvent(ev)
	return ev, nil
}

// Search filters the working list by case-insensitive text.
func (c *Core) Search(query string) []*Event {
	return filter.Search(c.app.State.Events(), query)
}

func (c *Core) Categories() []Group {
	return filter.GroupByCategory(c.app.State.Events())
}

// HomeFeed applies a home filter; following uses the session user's joined
// events.
func (c *Core) HomeFeed(f HomeFilter) []*Event {
	var joined filter.IDSet
	if u := c.app.State.User(); u != nil {
		joined = filter.JoinedIDs(u.JoinedEvents)
	}
	return filter.ApplyHome(c.app.State.Events(), f, joined, c.now())
}

func (c *Core) InRange(r DateRange) []*Event {
	return filter.ApplyDateRange(c.app.State.Events(), r, c.now())
}

// Authenticated reports whether a persisted session exists.
func (c *Core) Authenticated(ctx context.Context) bool {
	return c.app.State.Authenticated() && c.app.Session.HasSession(ctx)
}
