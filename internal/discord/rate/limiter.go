package rate

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Pacer spaces consecutive requests by a base interval with random jitter,
// so request timing does not look machine-generated.
type Pacer struct {
	mu          sync.Mutex
	next        time.Time
	minInterval time.Duration
	maxJitter   time.Duration
	rng         *rand.Rand
}

// NewPacer creates a pacer with base interval and jitter.
// For example, interval=1s and jitter=200ms results in gaps of 800ms-1200ms.
// A zero interval disables pacing.
func NewPacer(interval, jitter time.Duration) *Pacer {
	return &Pacer{
		minInterval: interval,
		maxJitter:   jitter,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // timing jitter only
	}
}

// Wait blocks until this caller's slot comes up. Concurrent callers are
// queued one interval apart.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.minInterval <= 0 {
		return nil
	}

	p.mu.Lock()
	gap := p.minInterval
	if p.maxJitter > 0 {
		gap += time.Duration(p.rng.Int63n(int64(p.maxJitter*2))) - p.maxJitter
	}

	now := time.Now()
	slot := p.next
	if slot.Before(now) {
		slot = now
	}
	p.next = slot.Add(gap)
	p.mu.Unlock()

	waitDuration := time.Until(slot)
	if waitDuration <= 0 {
		return nil
	}

	timer := time.NewTimer(waitDuration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
