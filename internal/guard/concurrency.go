package guard

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/chaisthra/vibetrack/internal/model"
)

type semEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// ConcurrencyGuard caps in-flight operations per user. Callers over the cap
// queue for at most the configured wait.
type ConcurrencyGuard struct {
	mu    sync.Mutex
	sems  map[string]*semEntry
	limit int64
	wait  time.Duration
}

// NewConcurrencyGuard allows limit concurrent operations per key and
// queues excess callers for up to wait.
func NewConcurrencyGuard(limit int, wait time.Duration) *ConcurrencyGuard {
	if limit < 1 {
		limit = 1
	}
	return &ConcurrencyGuard{
		sems:  make(map[string]*semEntry),
		limit: int64(limit),
		wait:  wait,
	}
}

// Acquire reserves a slot for key. It fails with model.ErrTooManyConcurrent
// when no slot frees up in time, or with ctx's error if ctx ends first.
// The returned func releases the slot and must be called exactly once.
func (g *ConcurrencyGuard) Acquire(ctx context.Context, key string) (func(), error) {
	e := g.ref(key)

	if g.wait <= 0 {
		if !e.sem.TryAcquire(1) {
			g.unref(key)
			return nil, model.ErrTooManyConcurrent
		}
		return g.releaser(key, e), nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.wait)
	defer cancel()

	if err := e.sem.Acquire(waitCtx, 1); err != nil {
		g.unref(key)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, model.ErrTooManyConcurrent
	}
	return g.releaser(key, e), nil
}

// Active returns the number of keys with in-flight or queued operations.
func (g *ConcurrencyGuard) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sems)
}

func (g *ConcurrencyGuard) releaser(key string, e *semEntry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			g.unref(key)
		})
	}
}

func (g *ConcurrencyGuard) ref(key string) *semEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.sems[key]
	if !ok {
		e = &semEntry{sem: semaphore.NewWeighted(g.limit)}
		g.sems[key] = e
	}
	e.refs++
	return e
}

func (g *ConcurrencyGuard) unref(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.sems[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(g.sems, key)
	}
}
