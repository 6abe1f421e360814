package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"reflow_oven/internal/engine"
	"reflow_oven/internal/logger"
	"reflow_oven/internal/models"
	"reflow_oven/internal/profile"
	"reflow_oven/internal/repository"
)

// ErrInvalidConfig is returned for engine configuration documents that fail validation.
var ErrInvalidConfig = errors.New("invalid engine config")

// ProfilesService stores the profiles document and keeps the served catalogue in sync with it.
type ProfilesService struct {
	docs  repository.DocumentRepo
	store *profile.Store
	limit func() float64
	log   *logger.Logger
}

// NewProfilesService builds the service. limit returns the highest stage target allowed.
func NewProfilesService(docs repository.DocumentRepo, store *profile.Store, limit func() float64, log *logger.Logger) *ProfilesService {
	return &ProfilesService{docs: docs, store: store, limit: limit, log: log}
}

// Load reads the stored document into the catalogue. An empty store is seeded with seed.
func (s *ProfilesService) Load(ctx context.Context, seed []byte) error {
	doc, err := s.docs.Get(ctx, models.DocumentProfiles)
	switch {
	case errors.Is(err, repository.ErrDocumentNotFound):
		if len(seed) == 0 {
			s.store.Swap(nil)
			return nil
		}
		if s.log != nil {
			s.log.Infow("profiles_seeded")
		}
		return s.Put(ctx, seed)
	case err != nil:
		return fmt.Errorf("load profiles: %w", err)
	}

	c, err := profile.Parse([]byte(doc.Body), s.limit())
	if err != nil {
		return fmt.Errorf("stored profiles: %w", err)
	}
	s.store.Swap(c)
	if s.log != nil {
		s.log.Infow("profiles_loaded", "profiles", c.Names())
	}
	return nil
}

// Get returns the stored document verbatim.
func (s *ProfilesService) Get(ctx context.Context) (string, error) {
	doc, err := s.docs.Get(ctx, models.DocumentProfiles)
	if err != nil {
		return "", err
	}
	return doc.Body, nil
}

// Put validates, stores and serves body. Invalid documents are neither stored nor served;
// a storage failure leaves the served catalogue unchanged.
func (s *ProfilesService) Put(ctx context.Context, body []byte) error {
	c, err := profile.Parse(body, s.limit())
	if err != nil {
		return err
	}
	if err := s.docs.Put(ctx, models.Document{Name: models.DocumentProfiles, Body: string(body)}); err != nil {
		return err
	}
	s.store.Swap(c)
	if s.log != nil {
		s.log.Infow("profiles_updated", "profiles", c.Names())
	}
	return nil
}

// Check reports whether the stored document would still be valid under maxTemperature.
func (s *ProfilesService) Check(ctx context.Context, maxTemperature float64) error {
	doc, err := s.docs.Get(ctx, models.DocumentProfiles)
	if errors.Is(err, repository.ErrDocumentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = profile.Parse([]byte(doc.Body), maxTemperature)
	return err
}

// Names lists the served profile keys.
func (s *ProfilesService) Names() []string {
	return s.store.Names()
}

// EngineConfig is the stored form of the engine tuning. Durations are in seconds.
type EngineConfig struct {
	MaxTemperature    float64 `json:"max_temperature"`
	Tolerance         float64 `json:"tolerance"`
	WatchdogTimeout   float64 `json:"watchdog_timeout"`
	TargetPID         string  `json:"target_pid"`
	HeaterWindow      float64 `json:"heater_window"`
	Hysteresis        float64 `json:"hysteresis"`
	OvertempMargin    float64 `json:"overtemp_margin"`
	MaxReadings       int     `json:"max_readings"`
	CalibrationTarget float64 `json:"calibration_target"`
	SensorGain        float64 `json:"sensor_gain"`
	SensorOffset      float64 `json:"sensor_offset"`
}

func engineConfigFrom(o engine.Options) EngineConfig {
	return EngineConfig{
		MaxTemperature:    o.MaxTemperature,
		Tolerance:         o.Tolerance,
		WatchdogTimeout:   o.WatchdogTimeout.Seconds(),
		TargetPID:         o.TargetPID,
		HeaterWindow:      o.HeaterWindow.Seconds(),
		Hysteresis:        o.Hysteresis,
		OvertempMargin:    o.OvertempMargin,
		MaxReadings:       o.MaxReadings,
		CalibrationTarget: o.CalibrationTarget,
		SensorGain:        o.SensorGain,
		SensorOffset:      o.SensorOffset,
	}
}

func (c EngineConfig) options() engine.Options {
	return engine.Options{
		MaxTemperature:    c.MaxTemperature,
		Tolerance:         c.Tolerance,
		WatchdogTimeout:   seconds(c.WatchdogTimeout),
		TargetPID:         c.TargetPID,
		HeaterWindow:      seconds(c.HeaterWindow),
		Hysteresis:        c.Hysteresis,
		OvertempMargin:    c.OvertempMargin,
		MaxReadings:       c.MaxReadings,
		CalibrationTarget: c.CalibrationTarget,
		SensorGain:        c.SensorGain,
		SensorOffset:      c.SensorOffset,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// decodeEngineConfig overlays body onto base. Unknown fields are rejected.
func decodeEngineConfig(base engine.Options, body []byte) (engine.Options, error) {
	cfg := engineConfigFrom(base)
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return engine.Options{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	opts := cfg.options()
	if err := opts.Validate(); err != nil {
		return engine.Options{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return opts, nil
}

// EngineFactory builds an engine with the given tuning.
type EngineFactory func(opts engine.Options) (*engine.Engine, error)

// ConfigService stores the engine configuration document and rebuilds the engine when it changes.
type ConfigService struct {
	docs     repository.DocumentRepo
	build    EngineFactory
	profiles *ProfilesService
	log      *logger.Logger

	mu      sync.RWMutex
	current engine.Options
	runner  *Runner
}

// NewConfigService starts from base, the tuning read from the daemon configuration.
func NewConfigService(docs repository.DocumentRepo, base engine.Options, build EngineFactory, log *logger.Logger) *ConfigService {
	return &ConfigService{docs: docs, build: build, current: base, log: log}
}

// Bind connects the service to the runner whose engine it rebuilds, and to the profiles
// whose targets must stay within the configured maximum.
func (s *ConfigService) Bind(runner *Runner, profiles *ProfilesService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runner = runner
	s.profiles = profiles
}

// Load overlays the stored document, if any, onto the base tuning and returns the result.
func (s *ConfigService) Load(ctx context.Context) (engine.Options, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.docs.Get(ctx, models.DocumentConfig)
	if errors.Is(err, repository.ErrDocumentNotFound) {
		return s.current, nil
	}
	if err != nil {
		return engine.Options{}, fmt.Errorf("load engine config: %w", err)
	}
	opts, err := decodeEngineConfig(s.current, []byte(doc.Body))
	if err != nil {
		return engine.Options{}, fmt.Errorf("stored engine config: %w", err)
	}
	s.current = opts
	return opts, nil
}

// Options returns the tuning of the running engine.
func (s *ConfigService) Options() engine.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// MaxTemperature is the configured ceiling, used to validate profiles.
func (s *ConfigService) MaxTemperature() float64 {
	return s.Options().MaxTemperature
}

// Get returns the active configuration as a JSON document.
func (s *ConfigService) Get() ([]byte, error) {
	return json.Marshal(engineConfigFrom(s.Options()))
}

// Put validates body, stores it and swaps in an engine built from it. The running
// engine is untouched unless every step before the swap succeeds.
func (s *ConfigService) Put(ctx context.Context, body []byte) (engine.Options, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts, err := decodeEngineConfig(s.current, body)
	if err != nil {
		return engine.Options{}, err
	}
	if s.profiles != nil {
		if err := s.profiles.Check(ctx, opts.MaxTemperature); err != nil {
			return engine.Options{}, fmt.Errorf("%w: stored profiles: %v", ErrInvalidConfig, err)
		}
	}
	next, err := s.build(opts)
	if err != nil {
		return engine.Options{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	stored, err := json.Marshal(engineConfigFrom(opts))
	if err != nil {
		return engine.Options{}, err
	}
	if err := s.docs.Put(ctx, models.Document{Name: models.DocumentConfig, Body: string(stored)}); err != nil {
		return engine.Options{}, err
	}
	if s.runner != nil {
		if err := s.runner.Replace(ctx, next); err != nil {
			return engine.Options{}, err
		}
	}
	s.current = opts
	if s.log != nil {
		s.log.Infow("engine_config_updated", "max_temperature", opts.MaxTemperature, "watchdog_timeout", opts.WatchdogTimeout.String())
	}
	return opts, nil
}
