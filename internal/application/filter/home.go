package filter

import (
	"time"

	"github.com/baechuer/real-time-ressys/client-core/internal/domain"
)

type HomeFilter string

const (
	HomeExplore   HomeFilter = "explore"
	HomeFollowing HomeFilter = "following"
	HomeToday     HomeFilter = "today"
	// HomeUpcoming opens the date-range screen; on the home list it behaves
	// like explore.
	HomeUpcoming HomeFilter = "upcoming"
)

// ApplyHome filters the home list. following keeps events whose id is in
// joined (an empty set keeps nothing); today compares local calendar dates
// in now's location. Unknown filters behave like explore.
func ApplyHome(events []*domain.Event, f HomeFilter, joined IDSet, now time.Time) []*domain.Event {
	switch f {
	case HomeFollowing:
		return keep(events, func(e *domain.Event) bool { return joined.Has(e.ID) })
	case HomeToday:
		today := dayOf(now)
		return keep(events, func(e *domain.Event) bool {
			d, ok := EventDay(e, now.Location())
			return ok && d.Equal(today)
		})
	default:
		return keep(events, func(*domain.Event) bool { return true })
	}
}
