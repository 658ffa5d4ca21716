// Package backoff computes retry delays for the upstream registry client.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Delay returns a full-jitter exponential delay for the given attempt
// (0-based): a random duration in [0, min(base*2^attempt, max)].
func Delay(attempt int, base, max time.Duration, rng *rand.Rand) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = base
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	ceil := float64(base) * math.Pow(2, float64(attempt))
	if ceil > float64(max) {
		ceil = float64(max)
	}
	if ceil <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(ceil) + 1))
}
