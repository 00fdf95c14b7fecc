// Package filter holds the pure derivations screens compute from the
// working set. Nothing here modifies its input.
package filter

import (
	"strings"

	"github.com/baechuer/real-time-ressys/client-core/internal/domain"
)

// Search keeps events where any of title, description, venue, city or
// category contains the trimmed query, case-insensitively. A blank query
// keeps everything.
func Search(events []*domain.Event, query string) []*domain.Event {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return keep(events, func(*domain.Event) bool { return true })
	}
	return keep(events, func(e *domain.Event) bool {
		for _, f := range []string{e.Title, e.Description, e.Venue, e.City, e.Category} {
			if strings.Contains(strings.ToLower(f), q) {
				return true
			}
		}
		return false
	})
}

func keep(events []*domain.Event, pred func(*domain.Event) bool) []*domain.Event {
	out := make([]*domain.Event, 0, len(events))
	for _, e := range events {
		if e != nil && pred(e) {
			out = append(out, e)
		}
	}
	return out
}
