package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/baechuer/real-time-ressys/client-core/internal/infrastructure/kv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestBackend_RoundTrip(t *testing.T) {
	mr, client := setupTestRedis(t)
	b := NewWithClient(client, "t:")
	ctx := context.Background()

	_, ok, err := b.Get(ctx, "cache_events_approved")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set(ctx, "cache_events_approved", `[{"id":"e1"}]`))
	assert.True(t, mr.Exists("t:cache_events_approved"))
	assert.Equal(t, 0, int(mr.TTL("t:cache_events_approved")), "no expiry is set")

	v, ok, err := b.Get(ctx, "cache_events_approved")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"e1"}]`, v)

	require.NoError(t, b.Delete(ctx, "cache_events_approved"))
	assert.False(t, mr.Exists("t:cache_events_approved"))
}

func TestBackend_ClearOnlyTouchesPrefix(t *testing.T) {
	mr, client := setupTestRedis(t)
	b := NewWithClient(client, "app:")
	ctx := context.Background()

	for _, k := range []string{"accessToken", "refreshToken", "cache_event_1", "cache_user_2"} {
		require.NoError(t, b.Set(ctx, k, "x"))
	}
	require.NoError(t, mr.Set("other:keep", "1"))

	require.NoError(t, b.Clear(ctx))

	assert.Equal(t, []string{"other:keep"}, mr.Keys())
}

func TestBackend_ClearEscapesPrefixPattern(t *testing.T) {
	mr, client := setupTestRedis(t)
	b := NewWithClient(client, "app*[1]?:")
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "cache_event_1", "x"))
	for _, k := range []string{"app-x1y:keep", "appZZ1a:keep", "other:keep"} {
		require.NoError(t, mr.Set(k, "1"))
	}

	require.NoError(t, b.Clear(ctx))

	assert.ElementsMatch(t, []string{"app-x1y:keep", "appZZ1a:keep", "other:keep"}, mr.Keys())
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, "client-core:", escapeGlob("client-core:"))
	assert.Equal(t, `a\*b\?c\[d\]e\\f`, escapeGlob(`a*b?c[d]e\f`))
}

func TestBackend_DefaultPrefix(t *testing.T) {
	_, client := setupTestRedis(t)
	b := NewWithClient(client, "")
	assert.Equal(t, DefaultPrefix+"k", b.key("k"))
}

func TestBackend_NilClient(t *testing.T) {
	b := &Backend{}
	ctx := context.Background()

	_, _, err := b.Get(ctx, "k")
	assert.ErrorIs(t, err, kv.ErrNotConfigured)
	assert.ErrorIs(t, b.Set(ctx, "k", "v"), kv.ErrNotConfigured)
	assert.ErrorIs(t, b.Clear(ctx), kv.ErrNotConfigured)
}

func TestBackend_ServerDown_DegradesThroughStore(t *testing.T) {
	mr, client := setupTestRedis(t)
	s := kv.NewStore(NewWithClient(client, "t:"))
	ctx := context.Background()

	s.Set(ctx, "k", "v")
	mr.Close()

	v, ok := s.Get(ctx, "k")
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestNew_BadURL(t *testing.T) {
	_, err := New("not-a-url", "")
	assert.Error(t, err)
}
