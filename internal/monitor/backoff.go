package monitor

import (
	"math/rand"
	"time"
)

// backoff produces exponentially growing, jittered retry delays for
// failing probes.
type backoff struct {
	base time.Duration
	max  time.Duration
	cur  time.Duration
}

func newBackoff(base, max time.Duration) *backoff { return &backoff{base: base, max: max} }

// Next returns the delay before the following probe attempt.
func (b *backoff) Next() time.Duration {
	if b.cur <= 0 {
		b.cur = b.base
	} else {
		b.cur *= 2
		if b.cur > b.max {
			b.cur = b.max
		}
	}
	// jitter ~ +/-20%
	j := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(b.cur) * j)
}

func (b *backoff) Reset() { b.cur = 0 }
