package rate

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

var _ backoff.BackOff = (*LinearBackOff)(nil)

// LinearBackOff waits base, then base+step, base+2*step and so on.
type LinearBackOff struct {
	Base    time.Duration
	Step    time.Duration
	attempt int
}

// NewLinearBackOff creates a linear backoff starting at base.
func NewLinearBackOff(base, step time.Duration) *LinearBackOff {
	return &LinearBackOff{Base: base, Step: step}
}

// NextBackOff implements backoff.BackOff.
func (b *LinearBackOff) NextBackOff() time.Duration {
	d := b.Base + time.Duration(b.attempt)*b.Step
	b.attempt++
	return d
}

// Reset implements backoff.BackOff.
func (b *LinearBackOff) Reset() {
	b.attempt = 0
}
