package loader

import "github.com/baechuer/real-time-ressys/client-core/internal/domain"

// CategorizedEvents rejects cached lists written by the shallow converter:
// at least one event must carry a real category. An empty list fails too,
// so a screen that needs categories always fetches before first paint.
func CategorizedEvents(events []*domain.Event) bool {
	for _, e := range events {
		if e != nil && e.Category != domain.PlaceholderCategory {
			return true
		}
	}
	return false
}

// NonEmpty accepts any list with at least one element.
func NonEmpty[T any](items []T) bool { return len(items) > 0 }

// NotNil accepts any present pointer value.
func NotNil[T any](v *T) bool { return v != nil }
