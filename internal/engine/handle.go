package engine

import "time"

// Handle owns the current engine and keeps replaced engines for exactly one more tick,
// so callbacks they already started can finish before they are dropped.
//
// A Handle must only be used from the goroutine that polls it.
type Handle struct {
	current *Engine
	retired []*Engine
}

// NewHandle returns a handle owning e.
func NewHandle(e *Engine) *Handle {
	return &Handle{current: e}
}

// Current returns the engine commands should be sent to.
func (h *Handle) Current() *Engine {
	return h.current
}

// Replace makes e current. The previous engine has its heater driven off and is
// released after the next Poll.
func (h *Handle) Replace(e *Engine) {
	if h.current != nil && h.current != e {
		h.current.Shutdown()
		h.retired = append(h.retired, h.current)
	}
	h.current = e
}

// Retired reports how many replaced engines are still held.
func (h *Handle) Retired() int {
	return len(h.retired)
}

// Poll advances the current engine and then drops engines retired before this tick.
func (h *Handle) Poll(now time.Time) {
	pending := len(h.retired)
	if h.current != nil {
		h.current.Poll(now)
	}
	if pending == 0 {
		return
	}
	for i := 0; i < pending; i++ {
		h.retired[i] = nil
	}
	h.retired = append(h.retired[:0], h.retired[pending:]...)
}
