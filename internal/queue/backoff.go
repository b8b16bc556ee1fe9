package queue

import "time"

// Backoff is the poll interval schedule: start at Initial, multiply by
// Growth per retry, never exceed Max. A value type so callers can share it
// without aliasing state.
type Backoff struct {
	Initial time.Duration
	Growth  float64
	Max     time.Duration
}

// Next returns the interval following cur. Pass zero for the first interval.
func (b Backoff) Next(cur time.Duration) time.Duration {
	if cur <= 0 {
		if b.Initial > 0 {
			return b.Initial
		}
		return 100 * time.Millisecond
	}
	next := time.Duration(float64(cur) * b.Growth)
	if next <= cur {
		next = cur + time.Millisecond
	}
	if next > b.Max {
		return b.Max
	}
	return next
}

// Clock abstracts time for the monitor and aggregator so their retry loops
// are testable without real time passing.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }
