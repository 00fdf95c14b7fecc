package viewstate

import "github.com/baechuer/real-time-ressys/client-core/internal/domain"

// The reducers below never modify their input. When the target event is
// absent the input slice is returned as is; otherwise the result is a new
// slice in which only the target is a fresh copy and every other element
// keeps its pointer.

// ToggleLike flips userID's membership in the event's likes. Applying it
// twice restores the original membership.
func ToggleLike(events []*domain.Event, eventID, userID string) []*domain.Event {
	return updateEvent(events, eventID, func(e *domain.Event) {
		if e.LikedBy(userID) {
			e.LikedUsers = without(e.LikedUsers, userID)
		} else {
			e.LikedUsers = append(e.LikedUsers, userID)
		}
	})
}

// Register marks userID as joined. Registering twice is a no-op.
func Register(events []*domain.Event, eventID, userID string) []*domain.Event {
	i := indexOf(events, eventID)
	if i < 0 || (events[i].JoinedBy(userID) && events[i].RegisteredBy(userID)) {
		return events
	}
	return updateEvent(events, eventID, func(e *domain.Event) {
		if !e.JoinedBy(userID) {
			e.JoinedUsers = append(e.JoinedUsers, userID)
			e.JoinedCount++
		}
		if !e.RegisteredBy(userID) {
			e.RegisteredUsers = append(e.RegisteredUsers, userID)
		}
	})
}

func Unregister(events []*domain.Event, eventID, userID string) []*domain.Event {
	i := indexOf(events, eventID)
	if i < 0 || (!events[i].JoinedBy(userID) && !events[i].RegisteredBy(userID)) {
		return events
	}
	return updateEvent(events, eventID, func(e *domain.Event) {
		if e.JoinedBy(userID) {
			e.JoinedUsers = without(e.JoinedUsers, userID)
			if e.JoinedCount > 0 {
				e.JoinedCount--
			}
		}
		e.RegisteredUsers = without(e.RegisteredUsers, userID)
	})
}

// Prepend puts ev first. An existing event with the same id is replaced.
func Prepend(events []*domain.Event, ev *domain.Event) []*domain.Event {
	out := make([]*domain.Event, 0, len(events)+1)
	out = append(out, ev)
	for _, e := range events {
		if e != nil && e.ID == ev.ID {
			continue
		}
		out = append(out, e)
	}
	return out
}

func updateEvent(events []*domain.Event, eventID string, fn func(*domain.Event)) []*domain.Event {
	i := indexOf(events, eventID)
	if i < 0 {
		return events
	}
	out := make([]*domain.Event, len(events))
	copy(out, events)
	next := events[i].Clone()
	fn(next)
	out[i] = next
	return out
}

func indexOf(events []*domain.Event, id string) int {
	for i, e := range events {
		if e != nil && e.ID == id {
			return i
		}
	}
	return -1
}

func without(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

// withJoined returns a copy of u whose joined events include or exclude
// eventID.
func withJoined(u *domain.User, eventID string, joined bool) *domain.User {
	has := false
	for _, id := range u.JoinedEvents {
		if id == eventID {
			has = true
			break
		}
	}
	if has == joined {
		return u
	}
	next := u.Clone()
	if joined {
		next.JoinedEvents = append(next.JoinedEvents, eventID)
	} else {
		next.JoinedEvents = domain.RefList(without(next.JoinedEvents, eventID))
	}
	return next
}
