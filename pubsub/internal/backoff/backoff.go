package backoff

import (
	"math/rand/v2"
	"time"
)

// Uniform draws delays uniformly from [Min, Max].
type Uniform struct {
	Min time.Duration
	Max time.Duration
}

func New(min, max time.Duration) Uniform {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return Uniform{Min: min, Max: max}
}

func (u Uniform) Next() time.Duration {
	span := u.Max - u.Min
	if span <= 0 {
		return u.Min
	}
	return u.Min + rand.N(span+1)
}

