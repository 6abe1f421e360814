package engine

import "time"

// Watchdog is a liveness deadline refreshed only by explicit pings.
type Watchdog struct {
	timeout  time.Duration
	lastPing time.Time
}

// NewWatchdog returns a watchdog with the given timeout. A zero timeout disables it.
func NewWatchdog(timeout time.Duration) *Watchdog {
	return &Watchdog{timeout: timeout}
}

// Ping refreshes the deadline.
func (w *Watchdog) Ping(now time.Time) {
	w.lastPing = now
}

// Deadline returns the instant after which the watchdog is expired.
func (w *Watchdog) Deadline() time.Time {
	if w.lastPing.IsZero() {
		return time.Time{}
	}
	return w.lastPing.Add(w.timeout)
}

// Expired reports whether no ping arrived within the timeout. A watchdog that was
// never pinged is expired.
func (w *Watchdog) Expired(now time.Time) bool {
	if w.timeout <= 0 {
		return false
	}
	if w.lastPing.IsZero() {
		return true
	}
	return now.Sub(w.lastPing) > w.timeout
}
