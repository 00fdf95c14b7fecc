package viewstate

import (
	"sync"

	"github.com/baechuer/real-time-ressys/client-core/internal/domain"
)

// EventsSink feeds loader results into the shared events list.
type EventsSink struct{ s *Store }

func (s *Store) EventsSink() EventsSink { return EventsSink{s} }

func (k EventsSink) Epoch() uint64 { return k.s.Epoch() }

func (k EventsSink) Publish(epoch uint64, v []*domain.Event) bool {
	return k.s.SetEventsAt(epoch, v)
}

// UserSink feeds profile loads into the session user.
type UserSink struct{ s *Store }

func (s *Store) UserSink() UserSink { return UserSink{s} }

func (k UserSink) Epoch() uint64 { return k.s.Epoch() }

func (k UserSink) Publish(epoch uint64, v *domain.User) bool {
	return k.s.SetUserAt(epoch, v)
}

// Local holds a screen-private value (an event detail, a ticket) under the
// store's epoch. A value published before the last logout reads as absent.
type Local[T any] struct {
	store *Store

	mu    sync.Mutex
	value T
	epoch uint64
	set   bool
}

func NewLocal[T any](s *Store) *Local[T] {
	return &Local[T]{store: s}
}

func (l *Local[T]) Epoch() uint64 { return l.store.Epoch() }

func (l *Local[T]) Publish(epoch uint64, v T) bool {
	if epoch != l.store.Epoch() {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value, l.epoch, l.set = v, epoch, true
	return true
}

func (l *Local[T]) Value() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.set || l.epoch != l.store.Epoch() {
		var zero T
		return zero, false
	}
	return l.value, true
}
