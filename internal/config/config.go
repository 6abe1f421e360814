// Package config loads the daemon configuration from configs/config.yml with
// REFLOW_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"reflow_oven/internal/engine"
)

// Hardware drivers.
const (
	DriverSim  = "sim"
	DriverGPIO = "gpio"
)

// Log encodings.
const (
	logFormatConsole = "console"
	logFormatJSON    = "json"
)

const envPrefix = "REFLOW"

// Config is the typed daemon configuration.
type Config struct {
	Port     string         `mapstructure:"port"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Poll     PollConfig     `mapstructure:"poll"`
	Engine   engine.Options `mapstructure:"engine"`
	Hardware HardwareConfig `mapstructure:"hardware"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Profiles ProfilesConfig `mapstructure:"profiles"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console | json
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// HardwareConfig selects and parameterises the sensor and heater adapters.
type HardwareConfig struct {
	Driver     string  `mapstructure:"driver"`
	GPIOChip   string  `mapstructure:"gpio_chip"`
	HeaterLine int     `mapstructure:"heater_line"`
	SensorPath string  `mapstructure:"sensor_path"`
	Ambient    float64 `mapstructure:"ambient"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         byte   `mapstructure:"qos"`
	Retain      bool   `mapstructure:"retain"`
}

// ProfilesConfig points at the document used to seed an empty profile store.
type ProfilesConfig struct {
	Seed string `mapstructure:"seed"`
}

func setDefaults(v *viper.Viper) {
	d := engine.DefaultOptions()

	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logFormatConsole)
	v.SetDefault("db.path", "reflow.db")
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("poll.interval", time.Second)

	v.SetDefault("engine.max_temperature", d.MaxTemperature)
	v.SetDefault("engine.tolerance", d.Tolerance)
	v.SetDefault("engine.watchdog_timeout", d.WatchdogTimeout)
	v.SetDefault("engine.target_pid", d.TargetPID)
	v.SetDefault("engine.heater_window", d.HeaterWindow)
	v.SetDefault("engine.hysteresis", d.Hysteresis)
	v.SetDefault("engine.overtemp_margin", d.OvertempMargin)
	v.SetDefault("engine.max_readings", d.MaxReadings)
	v.SetDefault("engine.calibration_target", d.CalibrationTarget)
	v.SetDefault("engine.sensor_gain", d.SensorGain)
	v.SetDefault("engine.sensor_offset", d.SensorOffset)

	v.SetDefault("hardware.driver", DriverSim)
	v.SetDefault("hardware.gpio_chip", "gpiochip0")
	v.SetDefault("hardware.heater_line", 17)
	v.SetDefault("hardware.sensor_path", "/sys/bus/iio/devices/iio:device0/in_temp_input")
	v.SetDefault("hardware.ambient", 25.0)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "reflowd")
	v.SetDefault("mqtt.topic_prefix", "reflow")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("profiles.seed", "configs/profiles.json")
}

// Load reads the configuration. An empty path searches ./configs/config.yml;
// a missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints not covered by decoding.
func (c *Config) Validate() error {
	if c.Poll.Interval <= 0 {
		return errors.New("config: poll.interval must be > 0")
	}
	switch c.Hardware.Driver {
	case DriverSim, DriverGPIO:
	default:
		return fmt.Errorf("config: unknown hardware.driver %q", c.Hardware.Driver)
	}
	switch c.Log.Format {
	case logFormatConsole, logFormatJSON:
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("config: mqtt.qos %d out of range", c.MQTT.QoS)
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("config: engine: %w", err)
	}
	return nil
}
