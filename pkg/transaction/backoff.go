package transaction

import (
	"math"
	"time"
)

// Interval returns the wait after the n-th transmission (0 for the
// initial send): FirstInterval doubled n times, capped at MaxInterval.
//
// With the default 100ms / 1600ms policy:
//
//	n:        0    1    2    3    4     5     6
//	interval: 100  200  400  800  1600  1600  1600
func (p Policy) Interval(n int) time.Duration {
	d := p.FirstInterval
	for i := 0; i < n && d < p.MaxInterval; i++ {
		if d > p.MaxInterval/2 {
			d = p.MaxInterval
			break
		}
		d *= 2
	}
	if d > p.MaxInterval {
		d = p.MaxInterval
	}
	return d
}

// Lifetime returns the time from the initial send until timeout when no
// response arrives.
func (p Policy) Lifetime() time.Duration {
	var total time.Duration
	for n := 0; n <= p.MaxRetransmits; n++ {
		d := p.Interval(n)
		if total > math.MaxInt64-d {
			return math.MaxInt64
		}
		total += d
	}
	return total
}
