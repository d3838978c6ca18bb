package dispatcher

import (
	"math"
	"math/rand"
	"time"
)

const (
	backoffBase = 2 * time.Second
	backoffCap  = 5 * time.Minute
)

// Backoff computes a full-jitter exponential delay for the given attempt
// count: base*2^(attempts-1), capped, then scaled by a uniform random
// factor in [0,1).
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	computed := float64(backoffBase) * math.Pow(2, float64(attempts-1))
	if computed > float64(backoffCap) {
		computed = float64(backoffCap)
	}
	return time.Duration(rand.Float64() * computed)
}
