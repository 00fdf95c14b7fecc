package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/baechuer/real-time-ressys/client-core/internal/domain"
	"github.com/baechuer/real-time-ressys/client-core/internal/infrastructure/kv"
	"github.com/baechuer/real-time-ressys/client-core/internal/logger"
	"github.com/golang-jwt/jwt/v5"
)

const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUserData     = "userData"
)

var (
	ErrNoSession      = errors.New("no session")
	ErrSessionExpired = errors.New("session expired")

	// ErrRefreshRejected is what a Refresher wraps when the server refuses
	// the refresh token. Any other refresh error is treated as transient.
	ErrRefreshRejected = errors.New("refresh token rejected")
)

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	RefreshTokens(ctx context.Context, refreshToken string) (access, refresh string, err error)
}

// Manager is the only writer of the session keys. Refreshes are serialized
// so concurrent 401s cause a single refresh.
type Manager struct {
	store     *kv.Store
	refresher Refresher
	now       func() time.Time
	leeway    time.Duration

	refreshMu sync.Mutex

	hookMu       sync.Mutex
	onExpired    func()
	stateClearer func(ctx context.Context)
}

func NewManager(store *kv.Store, refresher Refresher) *Manager {
	return &Manager{
		store:     store,
		refresher: refresher,
		now:       time.Now,
		leeway:    30 * time.Second,
	}
}

// SetRefresher binds the refresher after construction; the API client
// needs the manager first.
func (m *Manager) SetRefresher(r Refresher) {
	m.refreshMu.Lock()
	m.refresher = r
	m.refreshMu.Unlock()
}

// SetOnSessionExpired registers the single callback run after the session
// could not be refreshed and local state was cleared.
func (m *Manager) SetOnSessionExpired(cb func()) {
	m.hookMu.Lock()
	m.onExpired = cb
	m.hookMu.Unlock()
}

// BindStateClearer sets what Expire runs before the callback. Without one
// Expire only clears durable data.
func (m *Manager) BindStateClearer(fn func(ctx context.Context)) {
	m.hookMu.Lock()
	m.stateClearer = fn
	m.hookMu.Unlock()
}

func (m *Manager) SaveTokens(ctx context.Context, access, refresh string) {
	m.store.Set(ctx, KeyAccessToken, access)
	if refresh != "" {
		m.store.Set(ctx, KeyRefreshToken, refresh)
	}
}

func (m *Manager) HasSession(ctx context.Context) bool {
	tok, ok := m.store.Get(ctx, KeyAccessToken)
	return ok && tok != ""
}

// AccessToken returns a usable access token, refreshing first when the
// stored one is expired or about to be.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	tok, ok := m.store.Get(ctx, KeyAccessToken)
	if !ok || tok == "" {
		return "", ErrNoSession
	}
	if !m.expired(tok) {
		return tok, nil
	}
	logger.Ctx(ctx).Debug().Msg("access token expired; refreshing")
	return m.Refresh(ctx, tok)
}

// Refresh replaces the rejected access token. If another caller already
// refreshed it, the newer token is returned without a second round trip.
func (m *Manager) Refresh(ctx context.Context, rejected string) (string, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	if cur, ok := m.store.Get(ctx, KeyAccessToken); ok && cur != "" && cur != rejected && !m.expired(cur) {
		return cur, nil
	}

	rt, ok := m.store.Get(ctx, KeyRefreshToken)
	if !ok || rt == "" || m.refresher == nil {
		m.expire(ctx)
		return "", ErrSessionExpired
	}

	access, refresh, err := m.refresher.RefreshTokens(ctx, rt)
	if err != nil {
		if errors.Is(err, ErrRefreshRejected) {
			logger.Ctx(ctx).Info().Err(err).Msg("refresh rejected; ending session")
			m.expire(ctx)
			return "", ErrSessionExpired
		}
		return "", fmt.Errorf("refresh session: %w", err)
	}
	if access == "" {
		m.expire(ctx)
		return "", ErrSessionExpired
	}

	m.SaveTokens(ctx, access, refresh)
	return access, nil
}

func (m *Manager) SaveProfile(ctx context.Context, u *domain.User) {
	if u == nil {
		return
	}
	b, err := json.Marshal(u)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("encode profile snapshot")
		return
	}
	m.store.Set(ctx, KeyUserData, string(b))
}

// Profile returns the stored profile snapshot. A corrupt snapshot is a miss.
func (m *Manager) Profile(ctx context.Context) (*domain.User, bool) {
	raw, ok := m.store.Get(ctx, KeyUserData)
	if !ok {
		return nil, false
	}
	var u domain.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil || u.ID == "" {
		return nil, false
	}
	return &u, true
}

// Clear removes every persisted key: tokens, profile and cached resources.
func (m *Manager) Clear(ctx context.Context) {
	m.store.Clear(ctx)
}

// Expire ends the session from outside the refresh path.
func (m *Manager) Expire(ctx context.Context) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	m.expire(ctx)
}

func (m *Manager) expire(ctx context.Context) {
	m.hookMu.Lock()
	clearState, cb := m.stateClearer, m.onExpired
	m.hookMu.Unlock()

	if clearState != nil {
		clearState(ctx)
	} else {
		m.Clear(ctx)
	}
	if cb != nil {
		cb()
	}
}

// expired reads exp without verifying the signature; the server remains
// the authority. Opaque tokens never count as expired here.
func (m *Manager) expired(tok string) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !m.now().Add(m.leeway).Before(claims.ExpiresAt.Time)
}
