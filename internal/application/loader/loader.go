package loader

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/baechuer/real-time-ressys/client-core/internal/cache"
	"github.com/baechuer/real-time-ressys/client-core/internal/logger"
	"github.com/baechuer/real-time-ressys/client-core/internal/metrics"
	"github.com/baechuer/real-time-ressys/client-core/internal/tracing"
	"golang.org/x/sync/singleflight"
)

// Fetcher loads the normalized resource from the network.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Sink receives applied values. Publish must reject a value whose epoch is
// no longer current (the session was reset after the load was dispatched).
type Sink[T any] interface {
	Epoch() uint64
	Publish(epoch uint64, v T) bool
}

type Options[T any] struct {
	// Resource labels logs and metrics.
	Resource string
	Key      cache.Key
	Cache    *cache.Cache
	Fetch    Fetcher[T]
	Sink     Sink[T]

	// Fresh decides whether a cache hit may be shown. Nil accepts any hit.
	Fresh func(T) bool

	// Group dedupes fetches by storage key. Loaders for the same resource
	// should share one; nil gives the loader its own.
	Group *singleflight.Group

	// FlightKey overrides the dedupe key. Loaders that fill the same cache
	// key through different converters must not share a flight.
	FlightKey string

	// OnState is called after every state change, in order, outside locks.
	OnState func(State)
}

const (
	stageCache = iota
	stageFetch
)

// token orders results: a later trigger beats an earlier one, and within
// a trigger the fetch beats the cache read. Once any fetch has been applied
// no cache read is accepted.
type token struct {
	gen   uint64
	stage int
}

func (t token) after(o token) bool {
	if t.gen != o.gen {
		return t.gen > o.gen
	}
	return t.stage > o.stage
}

type emission[T any] struct {
	seq     uint64
	state   State
	publish bool
	version uint64
	epoch   uint64
	value   T
}

// Loader runs stale-while-revalidate for one resource on one screen.
// Trigger and Refresh may be called concurrently; each blocks until its
// fetch finishes. Results are applied in completion order subject to the
// token check, and never after Close.
type Loader[T any] struct {
	opts  Options[T]
	group *singleflight.Group

	mu           sync.Mutex
	gen          uint64
	applied      token
	appliedFetch bool
	pending      int
	refreshing   int
	hasData      bool
	data         T
	dataEpoch    uint64
	state        State
	seq          uint64
	version      uint64

	// writeMu orders write-through outside mu; written is the last token
	// persisted.
	writeMu sync.Mutex
	written token

	emitMu        sync.Mutex
	lastEmitted   uint64
	lastPublished uint64

	closed atomic.Bool
}

func New[T any](opts Options[T]) *Loader[T] {
	g := opts.Group
	if g == nil {
		g = &singleflight.Group{}
	}
	return &Loader[T]{opts: opts, group: g}
}

// Trigger is a mount or focus: cache first, then the network.
func (l *Loader[T]) Trigger(ctx context.Context) State {
	return l.load(ctx, false)
}

// Refresh is pull-to-refresh: skips the cache and starts a new fetch even
// if one is in flight.
func (l *Loader[T]) Refresh(ctx context.Context) State {
	return l.load(ctx, true)
}

// Retry re-runs a trigger after an error.
func (l *Loader[T]) Retry(ctx context.Context) State {
	return l.load(ctx, false)
}

func (l *Loader[T]) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Data returns the last applied value. A value from before a session reset
// is not returned.
func (l *Loader[T]) Data() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.hasData || l.dataEpoch != l.epoch() {
		var zero T
		return zero, false
	}
	return l.data, true
}

func (l *Loader[T]) DismissNotice() {
	l.mu.Lock()
	if l.state.Notice == "" {
		l.mu.Unlock()
		return
	}
	l.state.Notice = ""
	if l.state.Phase == PhaseShowingStaleWithError {
		l.state.Phase = PhaseShowingStale
	}
	em := l.stateEmissionLocked()
	l.mu.Unlock()
	l.emit(em)
}

// Close stops all further state writes from in-flight work. Underlying
// requests are not aborted.
func (l *Loader[T]) Close() {
	l.closed.Store(true)
}

func (l *Loader[T]) load(ctx context.Context, refresh bool) State {
	if l.closed.Load() {
		return l.State()
	}
	log := logger.Ctx(ctx).With().Str("resource", l.opts.Resource).Logger()

	l.mu.Lock()
	if l.hasData && l.dataEpoch != l.epoch() {
		l.resetLocked()
	}
	l.gen++
	gen := l.gen
	if refresh {
		l.refreshing++
	} else if !l.hasData {
		l.state.Phase = PhaseCacheCheck
		l.state.Err = nil
	}
	l.recomputeFlagsLocked()
	em := l.stateEmissionLocked()
	l.mu.Unlock()
	l.emit(em)

	epoch := l.epoch()

	if !refresh {
		v, ok := cache.GetCached[T](ctx, l.opts.Cache, l.opts.Key)
		switch {
		case ok && l.fresh(v):
			l.apply(ctx, token{gen, stageCache}, epoch, v, PhaseShowingStale)
		case ok:
			metrics.CacheLookups.WithLabelValues(string(l.opts.Key.Kind()), "rejected").Inc()
			log.Debug().Msg("cached value failed freshness check")
		}
	}

	l.mu.Lock()
	l.pending++
	if l.hasData {
		if l.state.Phase != PhaseShowingStaleWithError {
			l.state.Phase = PhaseFetching
		}
	} else {
		l.state.Phase = PhaseFetching
		l.state.Err = nil
	}
	l.recomputeFlagsLocked()
	em = l.stateEmissionLocked()
	l.mu.Unlock()
	l.emit(em)

	v, err := l.fetch(ctx, refresh)

	l.mu.Lock()
	l.pending--
	if refresh {
		l.refreshing--
	}
	l.mu.Unlock()

	if err != nil {
		log.Warn().Err(err).Uint64("gen", gen).Msg("fetch failed")
		l.fail(gen, err)
	} else {
		l.apply(context.WithoutCancel(ctx), token{gen, stageFetch}, epoch, v, PhaseShowingFresh)
	}
	return l.State()
}

func (l *Loader[T]) fetch(ctx context.Context, refresh bool) (T, error) {
	key := l.opts.FlightKey
	if key == "" {
		key = l.opts.Key.String()
	}
	if refresh {
		l.group.Forget(key)
	}

	// The flight may be shared with other triggers; it must not die with
	// the first caller's context.
	flightCtx := context.WithoutCancel(ctx)

	res, err, shared := l.group.Do(key, func() (any, error) {
		spanCtx, span := tracing.StartFetch(flightCtx, l.opts.Resource, l.opts.Key.String())

		start := time.Now()
		v, err := l.opts.Fetch(spanCtx)
		tracing.End(span, err)
		metrics.FetchDuration.WithLabelValues(l.opts.Resource).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.FetchTotal.WithLabelValues(l.opts.Resource, "error").Inc()
			return v, err
		}
		metrics.FetchTotal.WithLabelValues(l.opts.Resource, "success").Inc()
		return v, nil
	})
	if shared {
		logger.Ctx(ctx).Debug().Str("resource", l.opts.Resource).Msg("joined in-flight fetch")
	}
	v, _ := res.(T)
	return v, err
}

func (l *Loader[T]) apply(ctx context.Context, tok token, epoch uint64, v T, phase Phase) {
	stage := "cache"
	if tok.stage == stageFetch {
		stage = "fetch"
	}

	l.mu.Lock()
	sameEpoch := l.epoch() == epoch
	newer := tok.after(l.applied)
	if tok.stage == stageCache && l.appliedFetch {
		// the cache can only hold what a fetch already delivered, or older
		newer = false
	}
	accepted := !l.closed.Load() && sameEpoch && newer

	// Write through a fetched value unless a newer result already landed or
	// the session changed. A closed screen still refreshes the cache.
	if tok.stage == stageFetch && sameEpoch && newer {
		defer l.writeThrough(ctx, tok, v)
	}

	if !accepted {
		l.recomputeFlagsLocked()
		em := l.stateEmissionLocked()
		l.mu.Unlock()
		metrics.DiscardedResults.WithLabelValues(l.opts.Resource, stage).Inc()
		l.emit(em)
		return
	}

	l.applied = tok
	if tok.stage == stageFetch {
		l.appliedFetch = true
	}
	l.data = v
	l.dataEpoch = epoch
	l.hasData = true
	l.version++
	l.state.Phase = phase
	l.state.HasData = true
	l.state.Err = nil
	if phase == PhaseShowingFresh {
		l.state.Notice = ""
	}
	l.recomputeFlagsLocked()

	em := l.stateEmissionLocked()
	em.publish = true
	em.version = l.version
	em.epoch = epoch
	em.value = v
	l.mu.Unlock()

	l.emit(em)
}

// writeThrough persists v unless a newer fetch has already been written.
// It runs after mu is released so a slow store never blocks State or Data.
func (l *Loader[T]) writeThrough(ctx context.Context, tok token, v T) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if !tok.after(l.written) {
		return
	}
	cache.SetCached(ctx, l.opts.Cache, l.opts.Key, v)
	l.written = tok
}

// resetLocked forgets data published under a previous session.
func (l *Loader[T]) resetLocked() {
	var zero T
	l.data = zero
	l.hasData = false
	l.applied = token{}
	l.appliedFetch = false
	l.state.Notice = ""
	l.state.Err = nil
	l.state.HasData = false
}

func (l *Loader[T]) fail(gen uint64, err error) {
	l.mu.Lock()
	if l.closed.Load() || gen != l.gen {
		l.recomputeFlagsLocked()
		em := l.stateEmissionLocked()
		l.mu.Unlock()
		metrics.DiscardedResults.WithLabelValues(l.opts.Resource, "error").Inc()
		l.emit(em)
		return
	}

	if l.hasData {
		l.state.Phase = PhaseShowingStaleWithError
		l.state.Notice = noticeFor(err)
		l.state.Err = nil
	} else {
		l.state.Phase = PhaseShowingError
		l.state.Err = err
	}
	l.recomputeFlagsLocked()
	em := l.stateEmissionLocked()
	l.mu.Unlock()

	l.emit(em)
}

func (l *Loader[T]) recomputeFlagsLocked() {
	l.state.HasData = l.hasData
	l.state.Loading = l.pending > 0 && !l.hasData
	l.state.Background = l.pending > 0 && l.hasData
	l.state.Refreshing = l.refreshing > 0
}

func (l *Loader[T]) stateEmissionLocked() emission[T] {
	l.seq++
	return emission[T]{seq: l.seq, state: l.state}
}

// emit delivers in decision order. A value decided earlier than one already
// published is dropped, so a cache read never lands after a newer fetch.
func (l *Loader[T]) emit(em emission[T]) {
	l.emitMu.Lock()
	defer l.emitMu.Unlock()

	if l.closed.Load() {
		return
	}
	if em.publish && em.version > l.lastPublished {
		l.lastPublished = em.version
		if l.opts.Sink != nil {
			l.opts.Sink.Publish(em.epoch, em.value)
		}
	}
	if em.seq > l.lastEmitted {
		l.lastEmitted = em.seq
		if l.opts.OnState != nil {
			l.opts.OnState(em.state)
		}
	}
}

func (l *Loader[T]) epoch() uint64 {
	if l.opts.Sink == nil {
		return 0
	}
	return l.opts.Sink.Epoch()
}

func (l *Loader[T]) fresh(v T) bool {
	if l.opts.Fresh == nil {
		return true
	}
	return l.opts.Fresh(v)
}
