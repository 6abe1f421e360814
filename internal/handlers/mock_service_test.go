package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"reflow_oven"
	"reflow_oven/internal/engine"
	"reflow_oven/internal/models"
	"reflow_oven/internal/service"
	"reflow_oven/internal/telemetry"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(_ context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(_ context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

// mockOven answers from fixed values. Connect registers on a real hub so tests can
// publish frames to connected clients.
type mockOven struct {
	mu sync.Mutex

	state       reflow_oven.OvenState
	stateErr    error
	acks        map[string]any
	commandErr  error
	commands    []string
	calibration string
	connectErr  error
	hub         *telemetry.Hub
	connected   chan *telemetry.Client
}

func newMockOven() *mockOven {
	return &mockOven{
		acks:      map[string]any{},
		hub:       telemetry.NewHub(nil, 16),
		connected: make(chan *telemetry.Client, 4),
	}
}

func (m *mockOven) State(context.Context) (reflow_oven.OvenState, error) {
	return m.state, m.stateErr
}

func (m *mockOven) Command(_ context.Context, text string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, text)
	return m.acks[text], m.commandErr
}

func (m *mockOven) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

func (m *mockOven) Calibration(context.Context) (string, error) {
	return m.calibration, nil
}

func (m *mockOven) Connect(context.Context) (*telemetry.Client, error) {
	if m.connectErr != nil {
		return nil, m.connectErr
	}
	c := m.hub.Register()
	c.EnqueueJSON(reflow_oven.ConnectSnapshot{Reset: true, Message: "Connected", Mode: m.state.Mode})
	c.EnqueueJSON(reflow_oven.ReadingsPayload{Times: []float64{}, Readings: []float64{}, Targets: []float64{}, Reset: true})
	m.connected <- c
	return c, nil
}

func (m *mockOven) Disconnect(c *telemetry.Client) {
	m.hub.Unregister(c)
}

type mockEventLog struct {
	resp     []models.OvenEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.OvenEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

type mockProfiles struct {
	body    string
	getErr  error
	putErr  error
	lastPut []byte
}

func (m *mockProfiles) Get(context.Context) (string, error) { return m.body, m.getErr }

func (m *mockProfiles) Put(_ context.Context, body []byte) error {
	m.lastPut = body
	return m.putErr
}

type mockConfig struct {
	body    []byte
	putErr  error
	lastPut []byte
}

func (m *mockConfig) Get() ([]byte, error) { return m.body, nil }

func (m *mockConfig) Put(_ context.Context, body []byte) (engine.Options, error) {
	m.lastPut = body
	return engine.DefaultOptions(), m.putErr
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
