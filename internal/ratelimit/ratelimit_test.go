package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJitterStaysInRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		d := Jitter(10*time.Millisecond, 20*time.Millisecond)
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 20*time.Millisecond)
	}

	assert.Equal(t, 5*time.Millisecond, Jitter(5*time.Millisecond, 5*time.Millisecond))
	assert.Equal(t, 5*time.Millisecond, Jitter(5*time.Millisecond, time.Millisecond))
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Second, 2*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestSimpleRateLimiterSpacesCalls(t *testing.T) {
	r := NewSimpleRateLimiter(20*time.Millisecond, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, r.Wait(ctx))
	start := time.Now()
	require.NoError(t, r.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestAdaptiveRateLimiterBacksOff(t *testing.T) {
	a := NewAdaptiveRateLimiter(time.Second, 2*time.Second)

	a.RecordError()
	a.RecordError()
	min, max := a.Delay()
	assert.Equal(t, time.Second, min)
	assert.Equal(t, 2*time.Second, max)

	a.RecordError()
	min, max = a.Delay()
	assert.Equal(t, 1500*time.Millisecond, min)
	assert.Equal(t, 3*time.Second, max)
}

func TestAdaptiveRateLimiterCapsBackoff(t *testing.T) {
	a := NewAdaptiveRateLimiter(50*time.Second, 100*time.Second)

	for i := 0; i < 3; i++ {
		a.RecordError()
	}
	min, max := a.Delay()
	assert.Equal(t, 60*time.Second, min)
	assert.Equal(t, 120*time.Second, max)
}

func TestAdaptiveRateLimiterRecoversToFloor(t *testing.T) {
	a := NewAdaptiveRateLimiter(500*time.Millisecond, 2*time.Second)
	for i := 0; i < 3; i++ {
		a.RecordError()
	}

	for i := 0; i < 100; i++ {
		a.RecordSuccess()
	}
	min, _ := a.Delay()
	assert.Equal(t, 500*time.Millisecond, min)
}
