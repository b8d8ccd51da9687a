package export

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes retry delays. The delay grows exponentially with the
// attempt number, is capped at Max, and carries uniform jitter of up to
// a quarter of the capped delay so synchronized clients spread out.
type Backoff struct {
	// Initial is the base delay for attempt 0.
	Initial time.Duration

	// Max caps the exponential delay before jitter is added.
	Max time.Duration

	// Rand is the jitter source. Tests inject a seeded source; nil
	// falls back to the shared package source.
	Rand *rand.Rand
}

// Delay returns the delay to wait after the given zero-indexed failed
// attempt: min(2^attempt * Initial, Max) plus jitter in [0, delay/4].
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := time.Duration(math.Pow(2, float64(attempt)) * float64(b.Initial))
	if delay <= 0 || delay > b.Max {
		// Overflow from large attempts lands here too.
		delay = b.Max
	}

	jitterRange := int64(delay) / 4
	if jitterRange > 0 {
		if b.Rand != nil {
			delay += time.Duration(b.Rand.Int63n(jitterRange + 1))
		} else {
			delay += time.Duration(rand.Int63n(jitterRange + 1))
		}
	}

	return delay
}
