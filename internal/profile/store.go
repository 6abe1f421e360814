package profile

import (
	"fmt"
	"sync/atomic"

	"reflow_oven/internal/engine"
)

// Store serves lookups from the current catalogue and lets a new one be swapped in
// while engines keep resolving names. It is safe for concurrent use.
type Store struct {
	current atomic.Pointer[Catalog]
}

// NewStore returns a store serving c. A nil catalogue serves nothing.
func NewStore(c *Catalog) *Store {
	s := &Store{}
	s.Swap(c)
	return s
}

// Swap replaces the served catalogue.
func (s *Store) Swap(c *Catalog) {
	if c == nil {
		c = &Catalog{}
	}
	s.current.Store(c)
}

// GetPID implements engine.ProfileStore.
func (s *Store) GetPID(name string) (engine.PIDParams, error) {
	p, ok := s.current.Load().PID(name)
	if !ok {
		return engine.PIDParams{}, fmt.Errorf("%w: %q", engine.ErrPIDNotFound, name)
	}
	return p, nil
}

// GetProfile implements engine.ProfileStore.
func (s *Store) GetProfile(name string) (engine.Profile, error) {
	p, ok := s.current.Load().Profile(name)
	if !ok {
		return engine.Profile{}, fmt.Errorf("%w: %q", engine.ErrProfileNotFound, name)
	}
	return p, nil
}

// Names lists the profile keys currently served.
func (s *Store) Names() []string {
	return s.current.Load().Names()
}
