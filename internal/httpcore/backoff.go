package httpcore

import (
	"math"
	"time"

	cenkaltibackoff "github.com/cenkalti/backoff/v4"
)

// Backoff computes jittered exponential sleep durations between retry
// attempts (spec.md §4.2). The formula is pinned by the spec:
//
//	sleep(attempt, maxRemaining) = min(10s, maxRemaining, uniform(0,1.5) + 1.5^(attempt-1))
//
// attempt 0 is treated as attempt 1 for the exponent, matching the spec's
// "attempt index 0 may be treated as 1" note. Randomness is a strategy seam:
// NewBackoff sets Rand to a uniform(0,1.5) source, and tests substitute a
// deterministic source by setting Rand directly.
type Backoff struct {
	// Rand returns a value in [0, 1.5). NewBackoff sets a real random
	// source; when Rand is nil, Sleep uses 1.5 as the jitter.
	Rand func() float64
}

const (
	backoffCap      = 10 * time.Second
	backoffBase     = 1.5
	backoffJitterHi = 1.5
	backoffFloor    = 100 * time.Millisecond
)

// NewBackoff returns a Backoff using a real jitter source. The jitter source
// itself is built on cenkalti/backoff's ExponentialBackOff so the core
// doesn't hand-roll its own PRNG plumbing — only the cap/jitter/min-remaining
// composition in Sleep is spec-specific.
func NewBackoff() *Backoff {
	eb := cenkaltibackoff.NewExponentialBackOff()
	eb.RandomizationFactor = 1.0
	eb.InitialInterval = time.Duration(backoffJitterHi * float64(time.Second))

	return &Backoff{
		Rand: func() float64 {
			// Drive the library's jitter machinery for a single draw in
			// [0, 1.5): NextBackOff with a fixed base interval of 1.5s and
			// RandomizationFactor 1.0 yields uniform(0, 2*1.5s); halve and
			// clamp to recover uniform(0, 1.5). Reset before every draw —
			// NextBackOff multiplies currentInterval by ~1.5x as a side
			// effect, so without resetting it drifts upward call over call
			// until it saturates MaxInterval instead of staying fixed at
			// InitialInterval.
			eb.Reset()
			d := eb.NextBackOff()
			v := float64(d) / float64(time.Second) / 2

			if v >= backoffJitterHi {
				v = backoffJitterHi - 0.0001
			}

			return v
		},
	}
}

// Sleep returns how long to wait before the next attempt. maxRemaining, when
// non-negative, caps the result (the retry controller passes the remaining
// wall-clock budget here so a sleep never overruns the deadline). Sleep
// always returns > backoffFloor unless maxRemaining forces less, and is
// always > 0.
func (b *Backoff) Sleep(attempt int, maxRemaining time.Duration, hasMaxRemaining bool) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	jitter := backoffJitterHi
	if b.Rand != nil {
		jitter = b.Rand()
	}

	d := time.Duration((jitter + math.Pow(backoffBase, float64(attempt-1))) * float64(time.Second))
	if d > backoffCap {
		d = backoffCap
	}

	if d <= 0 {
		d = backoffFloor
	}

	if hasMaxRemaining && d > maxRemaining {
		d = maxRemaining
	}

	if d <= 0 {
		// A caller-forced zero/negative budget still yields a minimal,
		// strictly positive sleep per the invariant "must always return > 0".
		d = 1
	}

	return d
}
