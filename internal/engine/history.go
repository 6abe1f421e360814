package engine

import "time"

// history is the append-only reading log of one session, bounded to limit entries.
type history struct {
	readings []Reading
	limit    int
	start    time.Time
	fresh    bool
}

func newHistory(limit int) *history {
	return &history{limit: limit, fresh: true}
}

// reset starts a new session at now.
func (h *history) reset(now time.Time) {
	h.readings = h.readings[:0]
	h.start = now
	h.fresh = true
}

// elapsed returns seconds since the session start.
func (h *history) elapsed(now time.Time) float64 {
	if h.start.IsZero() {
		return 0
	}
	return now.Sub(h.start).Seconds()
}

func (h *history) append(now time.Time, temperature, target float64) Reading {
	if h.start.IsZero() {
		h.start = now
	}
	r := Reading{
		Time:        h.elapsed(now),
		Temperature: temperature,
		Target:      target,
		Reset:       h.fresh,
	}
	h.fresh = false
	if len(h.readings) >= h.limit {
		// drop the oldest tenth in one move rather than shifting every tick
		drop := h.limit / 10
		if drop < 1 {
			drop = 1
		}
		n := copy(h.readings, h.readings[drop:])
		h.readings = h.readings[:n]
	}
	h.readings = append(h.readings, r)
	return r
}

// copyAll returns a copy safe to retain.
func (h *history) copyAll() []Reading {
	out := make([]Reading, len(h.readings))
	copy(out, h.readings)
	return out
}
