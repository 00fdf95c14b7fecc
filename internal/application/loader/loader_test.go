package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/baechuer/real-time-ressys/client-core/internal/cache"
	"github.com/baechuer/real-time-ressys/client-core/internal/domain"
	"github.com/baechuer/real-time-ressys/client-core/internal/infrastructure/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink[T any] struct {
	mu        sync.Mutex
	epoch     uint64
	published []T
}

func (s *recordingSink[T]) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *recordingSink[T]) Publish(epoch uint64, v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return false
	}
	s.published = append(s.published, v)
	return true
}

func (s *recordingSink[T]) bump() {
	s.mu.Lock()
	s.epoch++
	s.mu.Unlock()
}

func (s *recordingSink[T]) all() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.published...)
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) add(s State) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func (l *stateLog) all() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

func (l *stateLog) everLoading() bool {
	for _, s := range l.all() {
		if s.Loading {
			return true
		}
	}
	return false
}

type fixture struct {
	cache  *cache.Cache
	sink   *recordingSink[[]*domain.Event]
	states *stateLog
	loader *Loader[[]*domain.Event]
}

func newFixture(fetch Fetcher[[]*domain.Event]) *fixture {
	return newFixtureOn(kv.NewMemory(), fetch)
}

func newFixtureOn(backend kv.Backend, fetch Fetcher[[]*domain.Event]) *fixture {
	f := &fixture{
		cache:  cache.New(kv.NewStore(backend)),
		sink:   &recordingSink[[]*domain.Event]{},
		states: &stateLog{},
	}
	f.loader = New(Options[[]*domain.Event]{
		Resource: "events_approved",
		Key:      cache.EventsApproved(),
		Cache:    f.cache,
		Fetch:    fetch,
		Sink:     f.sink,
		Fresh:    CategorizedEvents,
		OnState:  f.states.add,
	})
	return f
}

func events(n int, category string) []*domain.Event {
	out := make([]*domain.Event, n)
	for i := range out {
		out[i] = &domain.Event{
			ID:              fmt.Sprintf("e%d", i+1),
			Title:           fmt.Sprintf("Event %d", i+1),
			Category:        category,
			AccessType:      domain.AccessOpen,
			JoinedUsers:     []string{},
			LikedUsers:      []string{},
			RegisteredUsers: []string{},
		}
	}
	return out
}

func fetchReturning(v []*domain.Event, err error) Fetcher[[]*domain.Event] {
	return func(context.Context) ([]*domain.Event, error) { return v, err }
}

// gate blocks a fetch until released and reports when it has started.
type gate struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newGate() *gate {
	return &gate{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (g *gate) fetcher(v []*domain.Event, err error) Fetcher[[]*domain.Event] {
	return func(context.Context) ([]*domain.Event, error) {
		g.calls.Add(1)
		g.started <- struct{}{}
		<-g.release
		return v, err
	}
}

// heldBackend can park the next Get (after it has read its value) or the
// next Set until the test lets it go.
type heldBackend struct {
	*kv.Memory
	holdGet    atomic.Bool
	getHeld    chan struct{}
	releaseGet chan struct{}
	holdSet    atomic.Bool
	setHeld    chan struct{}
	releaseSet chan struct{}
}

func newHeldBackend() *heldBackend {
	return &heldBackend{
		Memory:     kv.NewMemory(),
		getHeld:    make(chan struct{}, 1),
		releaseGet: make(chan struct{}),
		setHeld:    make(chan struct{}, 1),
		releaseSet: make(chan struct{}),
	}
}

func (b *heldBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := b.Memory.Get(ctx, key)
	if b.holdGet.CompareAndSwap(true, false) {
		b.getHeld <- struct{}{}
		<-b.releaseGet
	}
	return v, ok, err
}

func (b *heldBackend) Set(ctx context.Context, key, value string) error {
	if b.holdSet.CompareAndSwap(true, false) {
		b.setHeld <- struct{}{}
		<-b.releaseSet
	}
	return b.Memory.Set(ctx, key, value)
}

func waitOn(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s never happened", what)
	}
}

func waitStarted(t *testing.T, g *gate) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch never started")
	}
}

func TestLoader_ColdStart(t *testing.T) {
	f := newFixture(fetchReturning(events(3, "Music"), nil))

	st := f.loader.Trigger(context.Background())

	assert.Equal(t, PhaseShowingFresh, st.Phase)
	assert.False(t, st.Loading)
	assert.False(t, st.Background)
	assert.NoError(t, st.Err)
	assert.Empty(t, st.Notice)
	assert.True(t, f.states.everLoading(), "skeleton shown while nothing cached")

	pub := f.sink.all()
	require.Len(t, pub, 1)
	assert.Len(t, pub[0], 3)

	cached, ok := cache.GetCached[[]*domain.Event](context.Background(), f.cache, cache.EventsApproved())
	require.True(t, ok)
	assert.Len(t, cached, 3)
}

func TestLoader_WarmStartBackgroundRefresh(t *testing.T) {
	g := newGate()
	f := newFixture(g.fetcher(events(6, "Music"), nil))
	cache.SetCached(context.Background(), f.cache, cache.EventsApproved(), events(5, "Music"))

	done := make(chan State)
	go func() { done <- f.loader.Trigger(context.Background()) }()

	waitStarted(t, g)
	pub := f.sink.all()
	require.Len(t, pub, 1, "cached list shown before fetch resolves")
	assert.Len(t, pub[0], 5)

	cur := f.loader.State()
	assert.True(t, cur.Background)
	assert.False(t, cur.Loading)

	close(g.release)
	st := <-done

	assert.Equal(t, PhaseShowingFresh, st.Phase)
	assert.False(t, st.Background)
	assert.False(t, f.states.everLoading(), "skeleton never shown on warm start")

	pub = f.sink.all()
	require.Len(t, pub, 2)
	assert.Len(t, pub[0], 5)
	assert.Len(t, pub[1], 6)
}

func TestLoader_WarmStartFetchFailureKeepsStale(t *testing.T) {
	f := newFixture(fetchReturning(nil, errors.New("network down")))
	cache.SetCached(context.Background(), f.cache, cache.EventsApproved(), events(5, "Music"))

	st := f.loader.Trigger(context.Background())

	assert.Equal(t, PhaseShowingStaleWithError, st.Phase)
	assert.Equal(t, DefaultNotice, st.Notice)
	assert.NoError(t, st.Err)
	assert.False(t, st.Retriable())
	assert.True(t, st.HasData)

	pub := f.sink.all()
	require.Len(t, pub, 1)
	assert.Len(t, pub[0], 5)

	data, ok := f.loader.Data()
	require.True(t, ok)
	assert.Len(t, data, 5)

	f.loader.DismissNotice()
	st = f.loader.State()
	assert.Empty(t, st.Notice)
	assert.Equal(t, PhaseShowingStale, st.Phase)
}

type msgErr struct{ msg string }

func (e msgErr) Error() string       { return "api: " + e.msg }
func (e msgErr) UserMessage() string { return e.msg }

func TestLoader_NoticeUsesServerMessage(t *testing.T) {
	f := newFixture(fetchReturning(nil, fmt.Errorf("fetch: %w", msgErr{"Service is under maintenance"})))
	cache.SetCached(context.Background(), f.cache, cache.EventsApproved(), events(2, "Arts"))

	st := f.loader.Trigger(context.Background())
	assert.Equal(t, "Service is under maintenance", st.Notice)
}

func TestLoader_NoCacheFailureIsRetriable(t *testing.T) {
	boom := errors.New("timeout")
	var fail atomic.Bool
	fail.Store(true)
	f := newFixture(func(context.Context) ([]*domain.Event, error) {
		if fail.Load() {
			return nil, boom
		}
		return events(1, "Music"), nil
	})

	st := f.loader.Trigger(context.Background())
	assert.Equal(t, PhaseShowingError, st.Phase)
	assert.ErrorIs(t, st.Err, boom)
	assert.True(t, st.Retriable())
	assert.False(t, st.HasData)
	assert.Empty(t, f.sink.all())

	fail.Store(false)
	st = f.loader.Retry(context.Background())
	assert.Equal(t, PhaseShowingFresh, st.Phase)
	assert.NoError(t, st.Err)
	assert.Len(t, f.sink.all(), 1)
}

func TestLoader_EmptyListIsFresh(t *testing.T) {
	f := newFixture(fetchReturning([]*domain.Event{}, nil))

	st := f.loader.Trigger(context.Background())
	assert.Equal(t, PhaseShowingFresh, st.Phase)
	assert.True(t, st.HasData)
	assert.NoError(t, st.Err)

	pub := f.sink.all()
	require.Len(t, pub, 1)
	assert.Empty(t, pub[0])
}

func TestLoader_ShallowCacheIsNotAHit(t *testing.T) {
	g := newGate()
	f := newFixture(g.fetcher(events(2, "Sports"), nil))
	cache.SetCached(context.Background(), f.cache, cache.EventsApproved(), events(4, domain.PlaceholderCategory))

	done := make(chan State)
	go func() { done <- f.loader.Trigger(context.Background()) }()

	waitStarted(t, g)
	assert.Empty(t, f.sink.all(), "shallow cache must not be painted")
	assert.True(t, f.loader.State().Loading)

	close(g.release)
	<-done

	pub := f.sink.all()
	require.Len(t, pub, 1)
	assert.Equal(t, "Sports", pub[0][0].Category)
}

func TestLoader_StaleThenFreshOrdering(t *testing.T) {
	for i := 0; i < 50; i++ {
		g := newGate()
		a, b := events(1, "Music"), events(2, "Music")
		f := newFixture(g.fetcher(b, nil))
		cache.SetCached(context.Background(), f.cache, cache.EventsApproved(), a)

		done := make(chan State)
		go func() { done <- f.loader.Trigger(context.Background()) }()
		waitStarted(t, g)
		close(g.release)
		<-done

		pub := f.sink.all()
		require.Len(t, pub, 2)
		assert.Len(t, pub[0], 1)
		assert.Len(t, pub[1], 2)
	}
}

func TestLoader_RefreshSupersedesOlderFetch(t *testing.T) {
	slow := make(chan struct{})
	var calls atomic.Int32
	started := make(chan struct{}, 2)
	f := newFixture(func(context.Context) ([]*domain.Event, error) {
		n := calls.Add(1)
		started <- struct{}{}
		if n == 1 {
			<-slow
			return events(1, "Music"), nil
		}
		return events(7, "Music"), nil
	})

	first := make(chan State)
	go func() { first <- f.loader.Trigger(context.Background()) }()
	<-started

	st := f.loader.Refresh(context.Background())
	assert.Equal(t, PhaseShowingFresh, st.Phase)

	close(slow)
	<-first

	data, _ := f.loader.Data()
	assert.Len(t, data, 7, "older completion must not overwrite newer state")
	pub := f.sink.all()
	require.Len(t, pub, 1)
	assert.Len(t, pub[0], 7)
	assert.False(t, f.loader.State().Refreshing)

	cached, ok := cache.GetCached[[]*domain.Event](context.Background(), f.cache, cache.EventsApproved())
	require.True(t, ok)
	assert.Len(t, cached, 7)
}

func TestLoader_ConcurrentTriggersShareOneFetch(t *testing.T) {
	g := newGate()
	f := newFixture(g.fetcher(events(3, "Music"), nil))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.loader.Trigger(context.Background())
		}()
	}

	waitStarted(t, g)
	require.Eventually(t, func() bool {
		f.loader.mu.Lock()
		defer f.loader.mu.Unlock()
		return f.loader.pending == 2
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(g.release)
	wg.Wait()

	assert.EqualValues(t, 1, g.calls.Load())
	assert.Equal(t, PhaseShowingFresh, f.loader.State().Phase)
}

func TestLoader_CloseStopsStateWrites(t *testing.T) {
	g := newGate()
	f := newFixture(g.fetcher(events(3, "Music"), nil))

	done := make(chan State)
	go func() { done <- f.loader.Trigger(context.Background()) }()
	waitStarted(t, g)

	f.loader.Close()
	before := len(f.states.all())
	close(g.release)
	<-done

	assert.Empty(t, f.sink.all())
	assert.Len(t, f.states.all(), before)

	f.loader.Trigger(context.Background())
	assert.EqualValues(t, 1, g.calls.Load())
}

func TestLoader_EpochChangeDiscardsResult(t *testing.T) {
	g := newGate()
	f := newFixture(g.fetcher(events(3, "Music"), nil))

	done := make(chan State)
	go func() { done <- f.loader.Trigger(context.Background()) }()
	waitStarted(t, g)

	f.sink.bump()
	close(g.release)
	<-done

	assert.Empty(t, f.sink.all())
	_, ok := cache.GetCached[[]*domain.Event](context.Background(), f.cache, cache.EventsApproved())
	assert.False(t, ok, "no write-through after the session was reset")
}

func TestLoader_RefreshSkipsCache(t *testing.T) {
	f := newFixture(fetchReturning(events(2, "Music"), nil))
	cache.SetCached(context.Background(), f.cache, cache.EventsApproved(), events(5, "Music"))

	st := f.loader.Refresh(context.Background())
	assert.Equal(t, PhaseShowingFresh, st.Phase)
	assert.False(t, st.Refreshing)

	pub := f.sink.all()
	require.Len(t, pub, 1)
	assert.Len(t, pub[0], 2)
}

func TestLoader_WithoutSink(t *testing.T) {
	c := cache.New(kv.NewStore(kv.NewMemory()))
	l := New(Options[*domain.Ticket]{
		Resource: "ticket",
		Key:      cache.TicketByID("t1"),
		Cache:    c,
		Fresh:    NotNil[domain.Ticket],
		Fetch: func(context.Context) (*domain.Ticket, error) {
			return &domain.Ticket{ID: "t1", Status: "valid"}, nil
		},
	})

	st := l.Trigger(context.Background())
	assert.Equal(t, PhaseShowingFresh, st.Phase)
	tk, ok := l.Data()
	require.True(t, ok)
	assert.Equal(t, "valid", tk.Status)
}

func TestLoader_LateCacheReadDoesNotReplaceFetch(t *testing.T) {
	backend := newHeldBackend()
	g := newGate()
	var calls atomic.Int32
	first := g.fetcher(events(3, "Music"), nil)
	f := newFixtureOn(backend, func(ctx context.Context) ([]*domain.Event, error) {
		if calls.Add(1) == 1 {
			return first(ctx)
		}
		return nil, errors.New("network down")
	})
	ctx := context.Background()
	cache.SetCached(ctx, f.cache, cache.EventsApproved(), events(2, "Music"))

	done1 := make(chan State)
	go func() { done1 <- f.loader.Trigger(ctx) }()
	waitStarted(t, g)

	// the second trigger reads the old entry, then stalls
	backend.holdGet.Store(true)
	done2 := make(chan State)
	go func() { done2 <- f.loader.Trigger(ctx) }()
	waitOn(t, backend.getHeld, "second cache read")

	close(g.release)
	<-done1
	close(backend.releaseGet)
	st := <-done2

	data, ok := f.loader.Data()
	require.True(t, ok)
	assert.Len(t, data, 3, "fetched value must survive a later trigger's cache read")

	pub := f.sink.all()
	require.Len(t, pub, 2)
	assert.Len(t, pub[0], 2)
	assert.Len(t, pub[1], 3)

	assert.Equal(t, PhaseShowingStaleWithError, st.Phase)
	cached, _ := cache.GetCached[[]*domain.Event](ctx, f.cache, cache.EventsApproved())
	assert.Len(t, cached, 3)
}

func TestLoader_SessionResetDropsPriorData(t *testing.T) {
	var failing atomic.Bool
	f := newFixture(func(context.Context) ([]*domain.Event, error) {
		if failing.Load() {
			return nil, errors.New("network down")
		}
		return events(4, "Music"), nil
	})
	ctx := context.Background()

	st := f.loader.Trigger(ctx)
	require.Equal(t, PhaseShowingFresh, st.Phase)

	f.sink.bump()
	f.cache.Remove(ctx, cache.EventsApproved())
	failing.Store(true)

	_, ok := f.loader.Data()
	assert.False(t, ok, "data from the previous session is hidden")

	st = f.loader.Trigger(ctx)
	assert.Equal(t, PhaseShowingError, st.Phase)
	assert.True(t, st.Retriable())
	assert.False(t, st.HasData)
	assert.Empty(t, st.Notice)
	assert.Error(t, st.Err)

	// skeleton, not background refresh, for the new session
	states := f.states.all()
	var sawLoading bool
	for _, s := range states[len(states)-3:] {
		if s.Loading {
			sawLoading = true
		}
		assert.False(t, s.Background)
	}
	assert.True(t, sawLoading)
}

func TestLoader_WriteThroughDoesNotBlockReaders(t *testing.T) {
	backend := newHeldBackend()
	backend.holdSet.Store(true)
	f := newFixtureOn(backend, fetchReturning(events(2, "Music"), nil))

	done := make(chan State)
	go func() { done <- f.loader.Trigger(context.Background()) }()
	waitOn(t, backend.setHeld, "write-through")

	read := make(chan int)
	go func() {
		data, _ := f.loader.Data()
		_ = f.loader.State()
		read <- len(data)
	}()
	select {
	case n := <-read:
		assert.Equal(t, 2, n)
	case <-time.After(time.Second):
		t.Fatal("Data blocked behind the store write")
	}

	close(backend.releaseSet)
	assert.Equal(t, PhaseShowingFresh, (<-done).Phase)
	cached, ok := cache.GetCached[[]*domain.Event](context.Background(), f.cache, cache.EventsApproved())
	require.True(t, ok)
	assert.Len(t, cached, 2)
}

func TestNonEmpty(t *testing.T) {
	assert.False(t, NonEmpty[*domain.Ticket](nil))
	assert.False(t, NonEmpty([]*domain.Ticket{}))
	assert.True(t, NonEmpty([]*domain.Ticket{{ID: "t1"}}))
}

func TestCategorizedEvents(t *testing.T) {
	assert.False(t, CategorizedEvents(nil))
	assert.False(t, CategorizedEvents(events(3, domain.PlaceholderCategory)))
	mixed := append(events(2, domain.PlaceholderCategory), events(1, "Music")...)
	assert.True(t, CategorizedEvents(mixed))
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "showing_stale_with_error", PhaseShowingStaleWithError.String())
	assert.Equal(t, "unknown", Phase(99).String())
}
