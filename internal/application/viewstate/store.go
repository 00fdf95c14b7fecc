package viewstate

import (
	"context"
	"sync"

	"github.com/baechuer/real-time-ressys/client-core/internal/domain"
	zlog "github.com/rs/zerolog/log"
)

// Clearer wipes durable session data (tokens, profile, cached resources).
type Clearer interface {
	Clear(ctx context.Context)
}

// Snapshot is an immutable view of the store. Events and User must be
// treated as read-only.
type Snapshot struct {
	Events        []*domain.Event
	User          *domain.User
	Authenticated bool
	Epoch         uint64
}

type Listener func(Snapshot)

// Store is the shared working set behind every list screen. All changes go
// through its methods; readers get snapshots.
//
// Epoch increases on every Logout. Values tagged with an older epoch are
// refused, so loads dispatched before a logout cannot repopulate state.
type Store struct {
	mu            sync.Mutex
	events        []*domain.Event
	user          *domain.User
	authenticated bool
	epoch         uint64
	seq           uint64
	listeners     map[int]Listener
	nextID        int
	clearer       Clearer

	notifyMu     sync.Mutex
	lastNotified uint64
}

func New(clearer Clearer) *Store {
	return &Store{listeners: map[int]Listener{}, clearer: clearer}
}

// SetClearer binds the durable-state clearer after construction.
func (s *Store) SetClearer(c Clearer) {
	s.mu.Lock()
	s.clearer = c
	s.mu.Unlock()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) Events() []*domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

func (s *Store) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Store) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// SetEvents replaces the working set.
func (s *Store) SetEvents(events []*domain.Event) {
	s.SetEventsAt(s.Epoch(), events)
}

// SetEventsAt replaces the working set if epoch is still current.
func (s *Store) SetEventsAt(epoch uint64, events []*domain.Event) bool {
	return s.update(epoch, func() { s.events = events })
}

func (s *Store) SetUser(u *domain.User) {
	s.SetUserAt(s.Epoch(), u)
}

func (s *Store) SetUserAt(epoch uint64, u *domain.User) bool {
	return s.update(epoch, func() { s.user = u })
}

func (s *Store) Login(u *domain.User) {
	s.mutate(func() {
		s.user = u
		s.authenticated = true
	})
}

// Logout clears in-memory state and then durable session data. It returns
// only after both are done, so a following Login starts clean.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	s.epoch++
	s.events = nil
	s.user = nil
	s.authenticated = false
	s.seq++
	seq, snap := s.seq, s.snapshotLocked()
	clearer := s.clearer
	s.mu.Unlock()

	if clearer != nil {
		clearer.Clear(ctx)
	}
	zlog.Info().Uint64("epoch", snap.Epoch).Msg("view state cleared")
	s.notify(seq, snap)
}

func (s *Store) ToggleLike(eventID, userID string) {
	s.mutate(func() { s.events = ToggleLike(s.events, eventID, userID) })
}

// RegisterForEvent marks the user as joined on the event and, when userID
// is the session user, records the event in the user's joined list.
func (s *Store) RegisterForEvent(eventID, userID string) {
	s.mutate(func() {
		s.events = Register(s.events, eventID, userID)
		if s.user != nil && s.user.ID == userID {
			s.user = withJoined(s.user, eventID, true)
		}
	})
}

func (s *Store) UnregisterFromEvent(eventID, userID string) {
	s.mutate(func() {
		s.events = Unregister(s.events, eventID, userID)
		if s.user != nil && s.user.ID == userID {
			s.user = withJoined(s.user, eventID, false)
		}
	})
}

// AddEvent prepends a locally created event until the next refetch.
func (s *Store) AddEvent(ev *domain.Event) {
	if ev == nil {
		return
	}
	s.mutate(func() { s.events = Prepend(s.events, ev) })
}

// Subscribe registers fn for every change, delivered in the order changes
// were made. The returned func unsubscribes.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) mutate(fn func()) {
	s.mu.Lock()
	fn()
	s.seq++
	seq, snap := s.seq, s.snapshotLocked()
	s.mu.Unlock()
	s.notify(seq, snap)
}

func (s *Store) update(epoch uint64, fn func()) bool {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return false
	}
	fn()
	s.seq++
	seq, snap := s.seq, s.snapshotLocked()
	s.mu.Unlock()
	s.notify(seq, snap)
	return true
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Events:        s.events,
		User:          s.user,
		Authenticated: s.authenticated,
		Epoch:         s.epoch,
	}
}

// notify skips snapshots older than one already delivered.
func (s *Store) notify(seq uint64, snap Snapshot) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if seq <= s.lastNotified {
		return
	}
	s.lastNotified = seq

	s.mu.Lock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.mu.Unlock()

	for _, l := range ls {
		l(snap)
	}
}
