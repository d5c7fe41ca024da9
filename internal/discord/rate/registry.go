package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// bucket is the shared state for one bucket key.
type bucket struct {
	slot          chan struct{} // one-slot semaphore guarding in-flight requests
	refs          int           // callers holding or waiting for the slot, guarded by Registry.mu
	cooldownUntil time.Time     // guarded by Registry.mu
	evictTimer    *time.Timer   // guarded by Registry.mu
}

// Stats is a snapshot of registry counters.
type Stats struct {
	Buckets  int    // live bucket entries
	Acquired uint64 // handles granted since creation
	Released uint64 // handles released since creation
}

// Registry maps bucket keys to mutual-exclusion slots.
// Entries are created lazily and evicted once nothing references them
// and no cooldown is pending, so callers never delete entries themselves.
type Registry struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	acquired atomic.Uint64
	released atomic.Uint64
}

// NewRegistry creates an empty bucket registry.
func NewRegistry() *Registry {
	return &Registry{
		buckets: make(map[string]*bucket),
	}
}

// Handle is exclusive ownership of one bucket. It must be released exactly once;
// extra releases are ignored.
type Handle struct {
	registry *Registry
	key      string
	bucket   *bucket
	released atomic.Bool
}

// Key returns the bucket key this handle owns.
func (h *Handle) Key() string {
	return h.key
}

// Acquire blocks until the bucket for key is free and not cooling down.
// Only callers of the same key wait on each other. If ctx ends first the
// caller's reference is dropped and ctx.Err() is returned.
func (r *Registry) Acquire(ctx context.Context, key string) (*Handle, error) {
	b := r.ref(key)

	select {
	case b.slot <- struct{}{}:
	case <-ctx.Done():
		r.unref(key, b)
		return nil, ctx.Err()
	}

	// Honor any cooldown left by the previous holder
	for {
		r.mu.Lock()
		wait := time.Until(b.cooldownUntil)
		r.mu.Unlock()

		if wait <= 0 {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			<-b.slot
			r.unref(key, b)
			return nil, ctx.Err()
		}
	}

	r.acquired.Add(1)
	return &Handle{registry: r, key: key, bucket: b}, nil
}

// Release frees the bucket immediately.
func (h *Handle) Release() {
	h.ReleaseAfter(0)
}

// ReleaseAfter frees the bucket and marks it as cooling down for d.
// The next Acquire on the same key waits until the cooldown has passed.
func (h *Handle) ReleaseAfter(d time.Duration) {
	if !h.released.CompareAndSwap(false, true) {
		return
	}

	r := h.registry
	if d > 0 {
		r.mu.Lock()
		if until := time.Now().Add(d); until.After(h.bucket.cooldownUntil) {
			h.bucket.cooldownUntil = until
		}
		r.mu.Unlock()
	}

	<-h.bucket.slot
	r.released.Add(1)
	r.unref(h.key, h.bucket)
}

// Stats returns a snapshot of the registry counters.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	n := len(r.buckets)
	r.mu.Unlock()

	return Stats{
		Buckets:  n,
		Acquired: r.acquired.Load(),
		Released: r.released.Load(),
	}
}

// ref returns the entry for key, creating it if needed, and takes a reference.
func (r *Registry) ref(key string) *bucket {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{slot: make(chan struct{}, 1)}
		r.buckets[key] = b
	}

	if b.evictTimer != nil {
		b.evictTimer.Stop()
		b.evictTimer = nil
	}

	b.refs++
	return b
}

// unref drops a reference and evicts the entry once it is unused.
// An entry with a pending cooldown is kept until the cooldown expires.
func (r *Registry) unref(key string, b *bucket) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b.refs--
	if b.refs > 0 {
		return
	}

	wait := time.Until(b.cooldownUntil)
	if wait <= 0 {
		r.evict(key, b)
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(wait, func() {
		r.expire(key, b, timer)
	})
	b.evictTimer = timer
}

// expire evicts b once its cooldown has run out. A timer that fired while
// another caller re-referenced the entry is stale and does nothing.
func (r *Registry) expire(key string, b *bucket, timer *time.Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b.evictTimer != timer || b.refs > 0 || time.Until(b.cooldownUntil) > 0 {
		return
	}

	b.evictTimer = nil
	r.evict(key, b)
}

// evict removes b from the map if it is still the entry for key.
// Must be called with r.mu held.
func (r *Registry) evict(key string, b *bucket) {
	if r.buckets[key] == b {
		delete(r.buckets, key)
	}
}
