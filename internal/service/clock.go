package service

import "time"

// Clock supplies time and tickers to the poll loop.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) (<-chan time.Time, func())
}

// SystemClock is the wall clock. time.Now carries a monotonic reading, which is what
// the engine measures intervals with.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) NewTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}
