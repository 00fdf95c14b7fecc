package rabbitmq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/baechuer/real-time-ressys/client-core/internal/cache"
	"github.com/baechuer/real-time-ressys/client-core/internal/infrastructure/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockInvalidator struct {
	mock.Mock
}

func (m *MockInvalidator) Remove(ctx context.Context, key cache.Key) {
	m.Called(ctx, key)
}

func envelope(t *testing.T, version int, payload any) []byte {
	t.Helper()
	p, err := json.Marshal(payload)
	assert.NoError(t, err)
	b, err := json.Marshal(Envelope{
		Version:    version,
		Producer:   "event-service",
		MessageID:  "m-1",
		OccurredAt: time.Now().UTC(),
		Payload:    p,
	})
	assert.NoError(t, err)
	return b
}

func TestHandle_RemovesEventAndList(t *testing.T) {
	for _, rk := range []string{rkEventPublished, rkEventUpdated, rkEventCanceled} {
		t.Run(rk, func(t *testing.T) {
			inv := new(MockInvalidator)
			ctx := context.Background()
			inv.On("Remove", ctx, cache.EventByID("e1")).Once()
			inv.On("Remove", ctx, cache.EventsApproved()).Once()

			var hooked string
			c := NewConsumer("", "city.events", "q", inv)
			c.OnInvalidate = func(id string) { hooked = id }

			c.handle(ctx, rk, envelope(t, 1, map[string]any{"event_id": "e1"}))

			inv.AssertExpectations(t)
			assert.Equal(t, "e1", hooked)
		})
	}
}

func TestHandle_LegacyIDField(t *testing.T) {
	inv := new(MockInvalidator)
	ctx := context.Background()
	inv.On("Remove", ctx, cache.EventByID("e9")).Once()
	inv.On("Remove", ctx, cache.EventsApproved()).Once()

	NewConsumer("", "x", "q", inv).handle(ctx, rkEventCanceled, envelope(t, 1, map[string]any{"id": " e9 "}))
	inv.AssertExpectations(t)
}

func TestHandle_DropsBadMessages(t *testing.T) {
	cases := map[string]struct {
		rk   string
		body []byte
	}{
		"poison json":     {rkEventUpdated, []byte("{nope")},
		"wrong version":   {rkEventUpdated, envelope(t, 2, map[string]any{"event_id": "e1"})},
		"missing id":      {rkEventUpdated, envelope(t, 1, map[string]any{"capacity": 10})},
		"payload not obj": {rkEventUpdated, envelope(t, 1, []string{"e1"})},
		"unknown key":     {"event.deleted", envelope(t, 1, map[string]any{"event_id": "e1"})},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			inv := new(MockInvalidator)
			NewConsumer("", "x", "q", inv).handle(context.Background(), tc.rk, tc.body)
			inv.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
		})
	}
}

func TestHandle_AgainstRealCache(t *testing.T) {
	store := kv.NewStore(kv.NewMemory())
	c := cache.New(store)
	ctx := context.Background()

	c.Set(ctx, cache.EventByID("e1"), map[string]string{"id": "e1"})
	c.Set(ctx, cache.EventByID("e2"), map[string]string{"id": "e2"})
	c.Set(ctx, cache.EventsApproved(), []string{"e1", "e2"})

	NewConsumer("", "x", "q", c).handle(ctx, rkEventUpdated, envelope(t, 1, map[string]any{"event_id": "e1"}))

	_, ok := store.Get(ctx, "cache_event_e1")
	assert.False(t, ok)
	_, ok = store.Get(ctx, "cache_events_approved")
	assert.False(t, ok)
	_, ok = store.Get(ctx, "cache_event_e2")
	assert.True(t, ok)
}
