package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reflow_oven/internal/engine"
	"reflow_oven/internal/models"
	"reflow_oven/internal/profile"
	"reflow_oven/internal/repository"
)

const testProfiles = `{
  "pid": {"default": [0.04, 0.002, 0.1], "ramp": [0.05, 0.001, 0.2]},
  "profiles": {
    "lead_free": {
      "name": "Lead free",
      "stages": ["preheat", "reflow"],
      "preheat": {"pid": "ramp", "target": 150, "stay": 60},
      "reflow": {"pid": "ramp", "target": 245, "stay": 45}
    }
  }
}`

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	ticks chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC), ticks: make(chan time.Time)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) (<-chan time.Time, func()) {
	return c.ticks, func() {}
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Tick hands one tick to the runner. It returns once the runner has taken it.
func (c *fakeClock) Tick() {
	c.ticks <- c.Now()
}

type fakeSensor struct {
	mu   sync.Mutex
	temp float64
	err  error
}

func (s *fakeSensor) ReadTemperature() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temp, s.err
}

func (s *fakeSensor) Set(temp float64) {
	s.mu.Lock()
	s.temp = temp
	s.mu.Unlock()
}

type fakeHeater struct {
	mu sync.Mutex
	on bool
}

func (h *fakeHeater) Set(on bool) error {
	h.mu.Lock()
	h.on = on
	h.mu.Unlock()
	return nil
}

func (h *fakeHeater) On() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.on
}

func testStore(t *testing.T) *profile.Store {
	t.Helper()
	c, err := profile.Parse([]byte(testProfiles), engine.DefaultMaxTemperature)
	require.NoError(t, err)
	return profile.NewStore(c)
}

type rig struct {
	eng    *engine.Engine
	sensor *fakeSensor
	heater *fakeHeater
	store  *profile.Store
}

func newRig(t *testing.T, opts engine.Options) *rig {
	t.Helper()
	r := &rig{sensor: &fakeSensor{temp: 25}, heater: &fakeHeater{}, store: testStore(t)}
	e, err := engine.New(r.store, r.sensor, r.heater, nil, opts)
	require.NoError(t, err)
	r.eng = e
	return r
}

// startRunner runs r until the test ends.
func startRunner(t *testing.T, r *Runner) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-r.stopped
	})
	return cancel
}

type fakeSettingsRepo struct {
	mu    sync.Mutex
	saved []models.OvenSettings
	load  models.OvenSettings
	found bool
	err   error
}

func (f *fakeSettingsRepo) Save(_ context.Context, s models.OvenSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, s)
	return f.err
}

func (f *fakeSettingsRepo) Load(context.Context) (models.OvenSettings, bool, error) {
	return f.load, f.found, f.err
}

func (f *fakeSettingsRepo) Saved() []models.OvenSettings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OvenSettings(nil), f.saved...)
}

type fakeDocumentRepo struct {
	mu     sync.Mutex
	docs   map[string]models.Document
	putErr error
	puts   int
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: map[string]models.Document{}}
}

func (f *fakeDocumentRepo) Get(_ context.Context, name string) (models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[name]
	if !ok {
		return models.Document{}, repository.ErrDocumentNotFound
	}
	return d, nil
}

func (f *fakeDocumentRepo) Put(_ context.Context, d models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	f.docs[d.Name] = d
	return nil
}
