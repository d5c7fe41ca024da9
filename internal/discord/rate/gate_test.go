package rate_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/robalyx/relay/internal/discord/rate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateStartsOpen(t *testing.T) {
	t.Parallel()

	gate := rate.NewGate()
	assert.True(t, gate.IsOpen())
	require.NoError(t, gate.Wait(t.Context()))
}

func TestGateIdempotent(t *testing.T) {
	t.Parallel()

	gate := rate.NewGate()

	gate.Open()
	assert.True(t, gate.IsOpen())

	gate.Close()
	gate.Close()
	assert.False(t, gate.IsOpen())

	gate.Open()
	gate.Open()
	assert.True(t, gate.IsOpen())
	require.NoError(t, gate.Wait(t.Context()))
}

func TestGateOpenWakesAllWaiters(t *testing.T) {
	t.Parallel()

	gate := rate.NewGate()
	gate.Close()

	const waiters = 10
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		woken int
	)

	for range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if assert.NoError(t, gate.Wait(t.Context())) {
				mu.Lock()
				woken++
				mu.Unlock()
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Zero(t, woken)
	mu.Unlock()

	gate.Open()
	wg.Wait()
	assert.Equal(t, waiters, woken)
}

func TestGateWaitHonorsContext(t *testing.T) {
	t.Parallel()

	gate := rate.NewGate()
	gate.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, gate.Wait(ctx), context.DeadlineExceeded)
}
