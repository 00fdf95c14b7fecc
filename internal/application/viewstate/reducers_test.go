package viewstate

import (
	"fmt"
	"testing"

	"github.com/baechuer/real-time-ressys/client-core/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() []*domain.Event {
	return []*domain.Event{
		{ID: "e1", Category: "Music", LikedUsers: []string{"u2"}, JoinedUsers: []string{}, RegisteredUsers: []string{}},
		{ID: "e2", Category: "Arts", LikedUsers: []string{}, JoinedUsers: []string{"u1"}, JoinedCount: 1, RegisteredUsers: []string{"u1"}},
		{ID: "e3", Category: "Sports", LikedUsers: []string{"u1", "u3"}, JoinedUsers: []string{}, RegisteredUsers: []string{}},
	}
}

func TestToggleLike_TwiceRestoresMembership(t *testing.T) {
	for _, eventID := range []string{"e1", "e2", "e3", "missing"} {
		for _, userID := range []string{"u1", "u2", "u3", "u4"} {
			t.Run(fmt.Sprintf("%s/%s", eventID, userID), func(t *testing.T) {
				orig := sample()
				once := ToggleLike(orig, eventID, userID)
				twice := ToggleLike(once, eventID, userID)

				require.Len(t, twice, len(orig))
				for i := range orig {
					assert.Equal(t, orig[i].ID, twice[i].ID)
					assert.ElementsMatch(t, orig[i].LikedUsers, twice[i].LikedUsers)
				}
			})
		}
	}
}

func TestToggleLike_PreservesUnrelatedIdentity(t *testing.T) {
	orig := sample()
	next := ToggleLike(orig, "e2", "u9")

	assert.Same(t, orig[0], next[0])
	assert.NotSame(t, orig[1], next[1])
	assert.Same(t, orig[2], next[2])

	assert.Empty(t, orig[1].LikedUsers, "input untouched")
	assert.Equal(t, []string{"u9"}, next[1].LikedUsers)
}

func TestToggleLike_UnknownEventReturnsInput(t *testing.T) {
	orig := sample()
	next := ToggleLike(orig, "nope", "u1")
	assert.Equal(t, fmt.Sprintf("%p", orig), fmt.Sprintf("%p", next))
}

func TestRegisterUnregister(t *testing.T) {
	orig := sample()

	joined := Register(orig, "e1", "u1")
	assert.Equal(t, []string{"u1"}, joined[0].JoinedUsers)
	assert.Equal(t, []string{"u1"}, joined[0].RegisteredUsers)
	assert.Equal(t, 1, joined[0].JoinedCount)
	assert.Same(t, orig[1], joined[1])

	again := Register(joined, "e1", "u1")
	assert.Same(t, joined[0], again[0], "registering twice is a no-op")
	assert.Equal(t, 1, again[0].JoinedCount)

	left := Unregister(again, "e1", "u1")
	assert.Empty(t, left[0].JoinedUsers)
	assert.Empty(t, left[0].RegisteredUsers)
	assert.Equal(t, 0, left[0].JoinedCount)

	noop := Unregister(left, "e1", "u1")
	assert.Same(t, left[0], noop[0])
}

func TestUnregister_CountNeverNegative(t *testing.T) {
	events := []*domain.Event{{ID: "e1", JoinedUsers: []string{"u1"}, JoinedCount: 0}}
	out := Unregister(events, "e1", "u1")
	assert.Equal(t, 0, out[0].JoinedCount)
}

func TestPrepend(t *testing.T) {
	orig := sample()
	ev := &domain.Event{ID: "new", Category: "Food & Drink"}

	out := Prepend(orig, ev)
	require.Len(t, out, 4)
	assert.Same(t, ev, out[0])
	assert.Same(t, orig[0], out[1])
	assert.Len(t, orig, 3)

	replaced := Prepend(out, &domain.Event{ID: "e2", Title: "edited"})
	require.Len(t, replaced, 4)
	assert.Equal(t, "e2", replaced[0].ID)
	assert.Equal(t, []string{"e2", "new", "e1", "e3"}, ids(replaced))
}

func TestWithJoined(t *testing.T) {
	u := &domain.User{ID: "u1", JoinedEvents: domain.RefList{"e1"}}

	same := withJoined(u, "e1", true)
	assert.Same(t, u, same)

	added := withJoined(u, "e2", true)
	assert.Equal(t, domain.RefList{"e1", "e2"}, added.JoinedEvents)
	assert.Equal(t, domain.RefList{"e1"}, u.JoinedEvents)

	removed := withJoined(added, "e1", false)
	assert.Equal(t, domain.RefList{"e2"}, removed.JoinedEvents)
}

func ids(events []*domain.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}
