package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reflow_oven/internal/config"
	"reflow_oven/internal/engine"
	"reflow_oven/internal/handlers"
	"reflow_oven/internal/hardware"
	"reflow_oven/internal/logger"
	"reflow_oven/internal/metrics"
	"reflow_oven/internal/profile"
	"reflow_oven/internal/repository"
	"reflow_oven/internal/repository/db"
	"reflow_oven/internal/server"
	"reflow_oven/internal/service"
	"reflow_oven/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// errRebootRequested makes the process exit non-zero so the supervisor restarts it.
var errRebootRequested = errors.New("reboot requested by operator")

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the oven controller and its HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	conn, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("sqlite_close_failed", "err", cerr)
		}
	}()
	repos := repository.NewRepository(conn)

	devices, err := hardware.Open(cfg.Hardware)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := devices.Close(); cerr != nil {
			log.Errorw("hardware_close_failed", "err", cerr)
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	store := profile.NewStore(nil)
	build := func(opts engine.Options) (*engine.Engine, error) {
		return engine.New(store, devices.Sensor, devices.Heater, nil, opts)
	}
	cfgSvc := service.NewConfigService(repos.Documents, cfg.Engine, build, log)
	opts, err := cfgSvc.Load(ctx)
	if err != nil {
		return err
	}
	profilesSvc := service.NewProfilesService(repos.Documents, store, cfgSvc.MaxTemperature, log)
	if err := profilesSvc.Load(ctx, readSeed(cfg.Profiles.Seed, log)); err != nil {
		return err
	}
	eng, err := build(opts)
	if err != nil {
		return err
	}

	hub := telemetry.NewHub(log, telemetry.DefaultClientBuffer)
	mirror, err := newMirror(cfg.MQTT, log)
	if err != nil {
		return err
	}
	m := metrics.New()
	recorder := service.NewRecorder(repos.Events, repos.Settings, log)
	bridge := telemetry.NewBridge(log, hub, mirror, m, recorder)

	m.GaugeFunc("ws_clients", "Connected websocket clients.", func() float64 { return float64(hub.Len()) })
	m.GaugeFunc("mqtt_dropped_total", "Telemetry payloads dropped by the MQTT mirror.", func() float64 { return float64(mirror.Dropped()) })
	m.GaugeFunc("recorder_dropped_total", "Event log writes dropped by the recorder.", func() float64 { return float64(recorder.Dropped()) })

	runner := service.NewRunner(eng, service.SystemClock{}, cfg.Poll.Interval, bridge.Attach, log)
	cfgSvc.Bind(runner, profilesSvc)

	var rebooting atomic.Bool
	reboot := func() {
		rebooting.Store(true)
		cancel()
	}
	receiver := service.NewCommandReceiver(runner, recorder, reboot, log)

	services := &service.Service{
		Authorization: service.NewAuthService(repos.Auth, cfg.Auth.SigningKey, cfg.Auth.TokenTTL),
		Oven:          service.NewOvenService(runner, receiver, hub, profilesSvc.Names),
		EventLog:      service.NewEventLogService(repos.Events),
		Profiles:      profilesSvc,
		Config:        cfgSvc,
	}
	api := handlers.NewHandler(services, m.Handler(), log)
	srv := server.New(cfg.Port, api.InitRoutes(), log)

	var wg sync.WaitGroup
	start := func(run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}
	start(runner.Run)
	start(recorder.Run)
	start(mirror.Run)

	if err := recorder.Restore(ctx, runner); err != nil {
		log.Warnw("settings_restore_failed", "err", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("http_listening", "addr", srv.Addr())
		serverErr <- srv.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Infow("shutdown_signal", "signal", sig.String())
	case <-ctx.Done():
		log.Infow("shutdown_requested")
	case runErr = <-serverErr:
		if runErr != nil {
			log.Errorw("http_server_failed", "err", runErr)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("http_shutdown_failed", "err", err)
	}

	// the runner drives the heater off on its way out
	cancel()
	wg.Wait()
	log.Infow("reflowd_stopped")

	if rebooting.Load() {
		return errRebootRequested
	}
	return runErr
}

func newMirror(cfg config.MQTTConfig, log *logger.Logger) (*telemetry.Mirror, error) {
	if !cfg.Enabled {
		return telemetry.NewMirror(telemetry.NopPublisher{}, cfg.TopicPrefix, log), nil
	}
	pub, err := telemetry.NewRealPublisher(telemetry.MQTTOptions{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		QoS:      cfg.QoS,
		Retain:   cfg.Retain,
	})
	if err != nil {
		return nil, fmt.Errorf("mqtt: %w", err)
	}
	log.Infow("mqtt_connected", "broker", cfg.Broker, "prefix", cfg.TopicPrefix)
	return telemetry.NewMirror(pub, cfg.TopicPrefix, log), nil
}

// readSeed returns the seed profiles document, or nil when it cannot be read.
func readSeed(path string, log *logger.Logger) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Warnw("profiles_seed_unreadable", "path", path, "err", err)
		return nil
	}
	return b
}
