package httpcore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopBackoff() *Backoff {
	return &Backoff{Rand: func() float64 { return 0 }}
}

func TestRetryController_FirstAttemptNeverSleeps(t *testing.T) {
	c := NewRetryController(3, 0, noopBackoff())

	start := time.Now()
	attempt, ok := c.Next(context.Background(), nil)
	require.True(t, ok)
	assert.Equal(t, 0, attempt.Index)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestRetryController_StopsAtMaxAttempts(t *testing.T) {
	c := NewRetryController(2, 0, noopBackoff())

	_, ok := c.Next(context.Background(), nil)
	require.True(t, ok)

	prev := RetryAttempt{Index: 0}
	_, ok = c.Next(context.Background(), &prev)
	require.True(t, ok)

	prev = RetryAttempt{Index: 1}
	_, ok = c.Next(context.Background(), &prev)
	assert.False(t, ok)
}

func TestRetryController_SkipSleepAvoidsWait(t *testing.T) {
	c := NewRetryController(0, 0, &Backoff{Rand: func() float64 {
		t.Fatal("Rand should not be consulted when SkipSleep is set")
		return 0
	}})

	_, ok := c.Next(context.Background(), nil)
	require.True(t, ok)

	prev := RetryAttempt{Index: 0, SkipSleep: true}
	_, ok = c.Next(context.Background(), &prev)
	assert.True(t, ok)
}

func TestRetryController_TimeoutExhaustsBudget(t *testing.T) {
	c := NewRetryController(0, 10*time.Millisecond, noopBackoff())

	_, ok := c.Next(context.Background(), nil)
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	prev := RetryAttempt{Index: 0}
	_, ok = c.Next(context.Background(), &prev)
	assert.False(t, ok)
}

func TestRetryController_SkipSleepSurvivesExhaustedBudget(t *testing.T) {
	c := NewRetryController(0, 1*time.Millisecond, noopBackoff())

	_, ok := c.Next(context.Background(), nil)
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)

	prev := RetryAttempt{Index: 0, SkipSleep: true}
	attempt, ok := c.Next(context.Background(), &prev)
	assert.True(t, ok, "a successful opportunistic re-auth must still get one more attempt")
	assert.Equal(t, 1, attempt.Index)
}

func TestRetryController_ContextCancellationStopsRetries(t *testing.T) {
	c := NewRetryController(5, 0, &Backoff{Rand: func() float64 { return 1 }})

	ctx, cancel := context.WithCancel(context.Background())

	_, ok := c.Next(ctx, nil)
	require.True(t, ok)

	cancel()

	prev := RetryAttempt{Index: 0}
	_, ok = c.Next(ctx, &prev)
	assert.False(t, ok)
}

func TestRetryController_UnboundedWithZeroBounds(t *testing.T) {
	c := NewRetryController(0, 0, noopBackoff())

	prev := (*RetryAttempt)(nil)

	for i := 0; i < 50; i++ {
		attempt, ok := c.Next(context.Background(), prev)
		require.True(t, ok)
		assert.False(t, attempt.HasRemaining)

		a := attempt
		a.SkipSleep = true
		prev = &a
	}
}
