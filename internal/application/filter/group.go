package filter

import (
	"sort"
	"strings"

	"github.com/baechuer/real-time-ressys/client-core/internal/domain"
)

type Group struct {
	Category string
	Events   []*domain.Event
}

// GroupByCategory partitions events by category. Vocabulary categories come
// first in vocabulary order, then any others in first-seen order. Blank
// categories group under "Other". Empty groups are omitted.
func GroupByCategory(events []*domain.Event) []Group {
	idx := map[string]int{}
	var groups []Group
	for _, e := range events {
		if e == nil {
			continue
		}
		cat := strings.TrimSpace(e.Category)
		if cat == "" {
			cat = domain.CategoryOther
		}
		i, ok := idx[cat]
		if !ok {
			i = len(groups)
			idx[cat] = i
			groups = append(groups, Group{Category: cat})
		}
		groups[i].Events = append(groups[i].Events, e)
	}

	// stable keeps first-seen order among unknown categories
	sort.SliceStable(groups, func(a, b int) bool {
		ra, rb := domain.CategoryRank(groups[a].Category), domain.CategoryRank(groups[b].Category)
		switch {
		case ra >= 0 && rb >= 0:
			return ra < rb
		case ra >= 0:
			return true
		default:
			return false
		}
	})
	return groups
}
