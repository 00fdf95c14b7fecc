package downstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/baechuer/real-time-ressys/client-core/internal/application/session"
	"github.com/baechuer/real-time-ressys/client-core/internal/domain"
	"github.com/baechuer/real-time-ressys/client-core/internal/logger"
	"github.com/google/uuid"
)

// CreateEventInput is the body of POST /events.
type CreateEventInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Date        string  `json:"date"`
	Time        string  `json:"time,omitempty"`
	Venue       string  `json:"venue,omitempty"`
	City        string  `json:"city,omitempty"`
	Category    string  `json:"category,omitempty"`
	Image       string  `json:"image,omitempty"`
	Price       float64 `json:"price"`
}

// ApprovedEvents returns the fully categorized approved list. Records that
// fail to decode or normalize are dropped.
func (c *Client) ApprovedEvents(ctx context.Context) ([]*domain.Event, error) {
	return c.eventList(ctx, domain.NormalizeEvent)
}

// HomeEvents returns the same list through the shallow converter used by
// the home feed.
func (c *Client) HomeEvents(ctx context.Context) ([]*domain.Event, error) {
	return c.eventList(ctx, domain.ShallowEvent)
}

func (c *Client) eventList(ctx context.Context, convert func(domain.RawEvent) (*domain.Event, error)) ([]*domain.Event, error) {
	env, err := c.call(ctx, request{method: http.MethodGet, path: "/events/approved", auth: authOptional})
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Event, 0, len(env.Events))
	for i, raw := range env.Events {
		var re domain.RawEvent
		if err := json.Unmarshal(raw, &re); err != nil {
			logger.Ctx(ctx).Debug().Err(err).Int("index", i).Msg("dropping undecodable event")
			continue
		}
		ev, err := convert(re)
		if err != nil {
			logger.Ctx(ctx).Debug().Err(err).
				Int("index", i).
				Str("id", firstNonEmpty(re.MongoID, re.ID)).
				Str("kind", string(domain.KindOf(err))).
				Msg("dropping invalid event")
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (c *Client) Event(ctx context.Context, id string) (*domain.Event, error) {
	env, err := c.call(ctx, request{method: http.MethodGet, path: eventPath(id), auth: authOptional})
	if err != nil {
		return nil, err
	}
	var re domain.RawEvent
	if err := decodePayload(env.Event, &re); err != nil {
		return nil, err
	}
	return domain.NormalizeEvent(re)
}

func (c *Client) UserProfile(ctx context.Context, id string) (*domain.User, error) {
	env, err := c.call(ctx, request{
		method: http.MethodGet,
		path:   "/users/" + url.PathEscape(id) + "/profile",
		auth:   authOptional,
	})
	if err != nil {
		return nil, err
	}
	var ru domain.RawUser
	if err := decodePayload(env.User, &ru); err != nil {
		return nil, err
	}
	return domain.NormalizeUser(ru)
}

func (c *Client) Ticket(ctx context.Context, id string) (*domain.Ticket, error) {
	env, err := c.call(ctx, request{method: http.MethodGet, path: "/tickets/" + url.PathEscape(id), auth: authRequired})
	if err != nil {
		return nil, err
	}
	var rt domain.RawTicket
	if err := decodePayload(env.Ticket, &rt); err != nil {
		return nil, err
	}
	return domain.NormalizeTicket(rt)
}

func (c *Client) MyTickets(ctx context.Context) ([]*domain.Ticket, error) {
	env, err := c.call(ctx, request{method: http.MethodGet, path: "/tickets/my", auth: authRequired})
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Ticket, 0, len(env.Tickets))
	for i, raw := range env.Tickets {
		var rt domain.RawTicket
		if err := json.Unmarshal(raw, &rt); err != nil {
			logger.Ctx(ctx).Debug().Err(err).Int("index", i).Msg("dropping undecodable ticket")
			continue
		}
		t, err := domain.NormalizeTicket(rt)
		if err != nil {
			logger.Ctx(ctx).Debug().Err(err).Int("index", i).Msg("dropping invalid ticket")
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *Client) CreateEvent(ctx context.Context, in CreateEventInput) (*domain.Event, error) {
	env, err := c.call(ctx, request{method: http.MethodPost, path: "/events", body: in, auth: authRequired})
	if err != nil {
		return nil, err
	}
	var re domain.RawEvent
	if err := decodePayload(env.Event, &re); err != nil {
		return nil, err
	}
	return domain.NormalizeEvent(re)
}

func (c *Client) ToggleLike(ctx context.Context, eventID string) error {
	_, err := c.call(ctx, request{method: http.MethodPost, path: eventPath(eventID, "like"), auth: authRequired})
	return err
}

// Join registers the session user. Each call carries a fresh
// Idempotency-Key; the 401 retry reuses it.
func (c *Client) Join(ctx context.Context, eventID string) error {
	_, err := c.call(ctx, request{
		method:  http.MethodPost,
		path:    eventPath(eventID, "join"),
		auth:    authRequired,
		headers: map[string]string{"Idempotency-Key": uuid.NewString()},
	})
	return err
}

func (c *Client) Unjoin(ctx context.Context, eventID string) error {
	_, err := c.call(ctx, request{method: http.MethodDelete, path: eventPath(eventID, "join"), auth: authRequired})
	return err
}

// Login exchanges credentials for a token pair and the user profile.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.User, string, string, error) {
	env, err := c.call(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"email": email, "password": password},
		auth:   authNone,
	})
	if err != nil {
		return nil, "", "", err
	}
	if env.AccessToken == "" {
		return nil, "", "", ErrEmptyPayload
	}
	var ru domain.RawUser
	if err := decodePayload(env.User, &ru); err != nil {
		return nil, "", "", err
	}
	u, err := domain.NormalizeUser(ru)
	if err != nil {
		return nil, "", "", err
	}
	return u, env.AccessToken, env.RefreshToken, nil
}

// RefreshTokens implements session.Refresher. A refusal by the server is
// reported as session.ErrRefreshRejected; transport failures are not.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (string, string, error) {
	env, err := c.call(ctx, request{
		method: http.MethodPost,
		path:   "/auth/refresh",
		body:   map[string]string{"refreshToken": refreshToken},
		auth:   authNone,
	})
	if err != nil {
		var apiErr *APIError
		if errors.Is(err, ErrUnauthorized) || errors.As(err, &apiErr) {
			return "", "", fmt.Errorf("%w: %w", session.ErrRefreshRejected, err)
		}
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusForbidden {
			return "", "", fmt.Errorf("%w: %w", session.ErrRefreshRejected, err)
		}
		return "", "", err
	}
	if env.AccessToken == "" {
		return "", "", fmt.Errorf("%w: %w", session.ErrRefreshRejected, ErrEmptyPayload)
	}
	return env.AccessToken, env.RefreshToken, nil
}

func decodePayload(raw json.RawMessage, dest any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return ErrEmptyPayload
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return domain.Wrap(domain.KindNormalization, "invalid_payload", "response payload does not decode", err)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
