package rate_test

import (
	"context"
	"testing"
	"time"

	"github.com/robalyx/relay/internal/discord/rate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerDisabled(t *testing.T) {
	t.Parallel()

	var nilPacer *rate.Pacer
	require.NoError(t, nilPacer.Wait(t.Context()))

	pacer := rate.NewPacer(0, time.Second)
	start := time.Now()
	for range 5 {
		require.NoError(t, pacer.Wait(t.Context()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPacerSpacesCalls(t *testing.T) {
	t.Parallel()

	pacer := rate.NewPacer(20*time.Millisecond, 0)
	start := time.Now()

	for range 3 {
		require.NoError(t, pacer.Wait(t.Context()))
	}

	// First call passes immediately, the next two wait one interval each
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestPacerJitterStaysInRange(t *testing.T) {
	t.Parallel()

	pacer := rate.NewPacer(20*time.Millisecond, 10*time.Millisecond)
	start := time.Now()

	for range 3 {
		require.NoError(t, pacer.Wait(t.Context()))
	}

	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPacerHonorsContext(t *testing.T) {
	t.Parallel()

	pacer := rate.NewPacer(time.Hour, 0)
	require.NoError(t, pacer.Wait(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, pacer.Wait(ctx), context.DeadlineExceeded)
}
