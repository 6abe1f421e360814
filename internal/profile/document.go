// Package profile parses and serves the catalogue of PID sets and reflow profiles.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"reflow_oven/internal/engine"
)

// ErrInvalidDocument is returned for any profiles document that fails validation.
var ErrInvalidDocument = errors.New("invalid profiles document")

// Catalog is an immutable, validated set of PID parameters and profiles.
type Catalog struct {
	pids     map[string]engine.PIDParams
	profiles map[string]engine.Profile
}

type stageDoc struct {
	PID    *string  `json:"pid"`
	Target *float64 `json:"target"`
	Stay   *float64 `json:"stay"`
}

type rawDocument struct {
	PID      map[string][]float64                  `json:"pid"`
	Profiles map[string]map[string]json.RawMessage `json:"profiles"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDocument, fmt.Sprintf(format, args...))
}

// Parse validates a profiles document. maxTemperature bounds stage targets; pass 0 to
// skip the upper bound. Any violation rejects the whole document.
func Parse(data []byte, maxTemperature float64) (*Catalog, error) {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	c := &Catalog{
		pids:     make(map[string]engine.PIDParams, len(doc.PID)),
		profiles: make(map[string]engine.Profile, len(doc.Profiles)),
	}

	for name, coeffs := range doc.PID {
		if name == "" {
			return nil, invalid("empty pid name")
		}
		if len(coeffs) != 3 {
			return nil, invalid("pid %q: want 3 coefficients, got %d", name, len(coeffs))
		}
		for _, v := range coeffs {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, invalid("pid %q: non-finite coefficient", name)
			}
		}
		c.pids[name] = engine.PIDParams{P: coeffs[0], I: coeffs[1], D: coeffs[2]}
	}

	for key, fields := range doc.Profiles {
		p, err := parseProfile(key, fields, c.pids, maxTemperature)
		if err != nil {
			return nil, err
		}
		c.profiles[key] = p
	}
	return c, nil
}

func parseProfile(key string, fields map[string]json.RawMessage, pids map[string]engine.PIDParams, maxTemperature float64) (engine.Profile, error) {
	if key == "" {
		return engine.Profile{}, invalid("empty profile key")
	}
	p := engine.Profile{Key: key, Name: key}
	if raw, ok := fields["name"]; ok {
		if err := json.Unmarshal(raw, &p.Name); err != nil {
			return engine.Profile{}, invalid("profile %q: name: %v", key, err)
		}
	}

	var order []string
	raw, ok := fields["stages"]
	if !ok {
		return engine.Profile{}, invalid("profile %q: missing stages", key)
	}
	if err := json.Unmarshal(raw, &order); err != nil {
		return engine.Profile{}, invalid("profile %q: stages: %v", key, err)
	}
	if len(order) == 0 {
		return engine.Profile{}, invalid("profile %q: no stages", key)
	}

	seen := make(map[string]bool, len(order))
	for _, name := range order {
		if name == "" || name == "name" || name == "stages" {
			return engine.Profile{}, invalid("profile %q: bad stage name %q", key, name)
		}
		if seen[name] {
			return engine.Profile{}, invalid("profile %q: duplicate stage %q", key, name)
		}
		seen[name] = true

		st, err := parseStage(key, name, fields[name], pids, maxTemperature)
		if err != nil {
			return engine.Profile{}, err
		}
		p.Stages = append(p.Stages, st)
	}
	return p, nil
}

func parseStage(key, name string, raw json.RawMessage, pids map[string]engine.PIDParams, maxTemperature float64) (engine.Stage, error) {
	if len(raw) == 0 {
		return engine.Stage{}, invalid("profile %q: stage %q not defined", key, name)
	}
	var sd stageDoc
	if err := json.Unmarshal(raw, &sd); err != nil {
		return engine.Stage{}, invalid("profile %q: stage %q: %v", key, name, err)
	}
	switch {
	case sd.PID == nil:
		return engine.Stage{}, invalid("profile %q: stage %q: missing pid", key, name)
	case sd.Target == nil:
		return engine.Stage{}, invalid("profile %q: stage %q: missing target", key, name)
	}
	if _, ok := pids[*sd.PID]; !ok {
		return engine.Stage{}, invalid("profile %q: stage %q: unknown pid %q", key, name, *sd.PID)
	}
	target := *sd.Target
	if target < 0 || (maxTemperature > 0 && target > maxTemperature) {
		return engine.Stage{}, invalid("profile %q: stage %q: target %.1f out of range", key, name, target)
	}
	stay := 0.0
	if sd.Stay != nil {
		stay = *sd.Stay
	}
	if stay < 0 {
		return engine.Stage{}, invalid("profile %q: stage %q: negative stay", key, name)
	}
	return engine.Stage{Name: name, PID: *sd.PID, Target: target, Stay: stay}, nil
}

// PID returns the named PID set.
func (c *Catalog) PID(name string) (engine.PIDParams, bool) {
	p, ok := c.pids[name]
	return p, ok
}

// Profile returns the profile stored under key.
func (c *Catalog) Profile(key string) (engine.Profile, bool) {
	p, ok := c.profiles[key]
	return p, ok
}

// Names returns the profile keys in sorted order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.profiles))
	for k := range c.profiles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// PIDNames returns the PID set names in sorted order.
func (c *Catalog) PIDNames() []string {
	out := make([]string, 0, len(c.pids))
	for k := range c.pids {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
