package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/baechuer/real-time-ressys/client-core/internal/application/session"
	"github.com/baechuer/real-time-ressys/client-core/internal/logger"
)

// TokenSource supplies bearer tokens and replaces one the server rejected.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context, rejected string) (string, error)
}

type authMode int

const (
	authNone authMode = iota
	// authOptional sends a token when there is one
	authOptional
	authRequired
)

// envelope is every API response: a success flag, an optional message and
// one payload field depending on the endpoint.
type envelope struct {
	Success      *bool             `json:"success"`
	Message      string            `json:"message"`
	Events       []json.RawMessage `json:"events"`
	Event        json.RawMessage   `json:"event"`
	User         json.RawMessage   `json:"user"`
	Ticket       json.RawMessage   `json:"ticket"`
	Tickets      []json.RawMessage `json:"tickets"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

type request struct {
	method  string
	path    string
	body    any
	auth    authMode
	headers map[string]string
}

// Client talks to the remote event API.
type Client struct {
	baseURL string
	http    *HTTPClient

	mu     sync.RWMutex
	tokens TokenSource
}

func NewClient(baseURL string, cfg ClientConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    NewHTTPClient(cfg),
	}
}

// SetTokenSource binds the session after construction.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	c.tokens = ts
	c.mu.Unlock()
}

func (c *Client) tokenSource() TokenSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

// call performs r and retries once after a token refresh on 401.
func (c *Client) call(ctx context.Context, r request) (*envelope, error) {
	var payload []byte
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	token, err := c.token(ctx, r.auth)
	if err != nil {
		return nil, err
	}

	env, status, err := c.once(ctx, r, payload, token)
	if status != http.StatusUnauthorized || token == "" {
		return env, err
	}

	ts := c.tokenSource()
	fresh, rerr := ts.Refresh(ctx, token)
	if rerr != nil {
		logger.Ctx(ctx).Info().Err(rerr).Str("path", r.path).Msg("token refresh failed")
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, rerr)
	}
	env, _, err = c.once(ctx, r, payload, fresh)
	return env, err
}

func (c *Client) token(ctx context.Context, mode authMode) (string, error) {
	if mode == authNone {
		return "", nil
	}
	ts := c.tokenSource()
	if ts == nil {
		if mode == authRequired {
			return "", ErrUnauthorized
		}
		return "", nil
	}
	tok, err := ts.AccessToken(ctx)
	if err != nil {
		if mode == authOptional && errors.Is(err, session.ErrNoSession) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return tok, nil
}

func (c *Client) once(ctx context.Context, r request, payload []byte, token string) (*envelope, int, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var env envelope
	decErr := json.NewDecoder(resp.Body).Decode(&env)
	if decErr != nil && errors.Is(decErr, context.DeadlineExceeded) {
		return nil, resp.StatusCode, ErrTimeout
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, resp.StatusCode, ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return nil, resp.StatusCode, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		if decErr == nil && env.Message != "" {
			return nil, resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Message: env.Message}
		}
		return nil, resp.StatusCode, &StatusError{
			StatusCode: resp.StatusCode,
			Code:       "downstream_error",
			Message:    fmt.Sprintf("unexpected status: %d", resp.StatusCode),
		}
	}

	if decErr != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", decErr)
	}
	// a missing flag counts as success
	if env.Success != nil && !*env.Success {
		return nil, resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	return &env, resp.StatusCode, nil
}

func eventPath(id string, suffix ...string) string {
	p := "/events/" + url.PathEscape(id)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}
