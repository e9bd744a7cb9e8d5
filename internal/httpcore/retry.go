package httpcore

import (
	"context"
	"time"
)

// RetryAttempt is yielded once per attempt by RetryController (spec.md §3).
type RetryAttempt struct {
	// Index is zero-based.
	Index int
	// Remaining is the wall-clock budget left, valid only if HasRemaining.
	Remaining    time.Duration
	HasRemaining bool
	// SkipSleep, when set by the caller before the next call to Next,
	// suppresses the sleep between this attempt and the next one.
	SkipSleep bool
}

// RetryController produces attempts until max attempts or the time budget is
// exhausted (spec.md §4.1). Zero MaxAttempts or zero Timeout means unbounded
// on that axis; both zero means infinite retries.
type RetryController struct {
	MaxAttempts int
	Timeout     time.Duration
	Backoff     *Backoff

	start   time.Time
	started bool
	index   int
	done    bool
}

// NewRetryController builds a controller with the given bounds. Pass 0 for
// either bound to leave it unbounded.
func NewRetryController(maxAttempts int, timeout time.Duration, bo *Backoff) *RetryController {
	if bo == nil {
		bo = NewBackoff()
	}

	return &RetryController{MaxAttempts: maxAttempts, Timeout: timeout, Backoff: bo}
}

// remaining returns the wall-clock budget left and whether it is bounded.
func (c *RetryController) remaining() (time.Duration, bool) {
	if c.Timeout <= 0 {
		return 0, false
	}

	elapsed := time.Since(c.start)
	left := c.Timeout - elapsed

	return left, true
}

// Next blocks (sleeping if required) and returns the next attempt, or
// ok=false if the controller is exhausted. The first attempt never sleeps.
// Between attempt n and n+1, Next sleeps Backoff.Sleep(n, remaining) unless
// attempt n had SkipSleep set to true.
//
// Per spec.md §9's open question: a zero remaining budget computed right
// after a successful opportunistic re-auth (SkipSleep set) still yields one
// more attempt rather than terminating — the freshly authenticated attempt
// must not be lost. This is a deliberate deviation from a literal
// remaining<=0-means-stop rule and only applies when the prior attempt set
// SkipSleep.
func (c *RetryController) Next(ctx context.Context, prev *RetryAttempt) (RetryAttempt, bool) {
	if c.done {
		return RetryAttempt{}, false
	}

	if !c.started {
		c.start = time.Now()
		c.started = true
	} else {
		if err := c.sleepBeforeNext(ctx, prev); err != nil {
			c.done = true
			return RetryAttempt{}, false
		}
	}

	if c.MaxAttempts > 0 && c.index >= c.MaxAttempts {
		c.done = true
		return RetryAttempt{}, false
	}

	remaining, hasRemaining := c.remaining()
	if hasRemaining && remaining <= 0 && !(prev != nil && prev.SkipSleep) {
		c.done = true
		return RetryAttempt{}, false
	}

	attempt := RetryAttempt{Index: c.index, Remaining: remaining, HasRemaining: hasRemaining}
	c.index++

	return attempt, true
}

// sleepBeforeNext sleeps between attempts unless the previous attempt asked
// to skip it, or no further attempt would occur within budget anyway.
func (c *RetryController) sleepBeforeNext(ctx context.Context, prev *RetryAttempt) error {
	if prev == nil || prev.SkipSleep {
		return nil
	}

	if c.MaxAttempts > 0 && c.index >= c.MaxAttempts {
		return nil
	}

	remaining, hasRemaining := c.remaining()
	if hasRemaining && remaining <= 0 {
		return nil
	}

	d := c.Backoff.Sleep(prev.Index, remaining, hasRemaining)

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
