// v2
// internal/config/config.go
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config captures all runtime settings required by the simulator. Values
// can be provided by environment variables, a properties file, or fall
// back to sensible defaults so the process can boot with minimal setup.
type Config struct {
	// ListenAddress defines the TCP address used by the HTTP server.
	ListenAddress string
	// LogFilePath is the absolute or relative path to the log file.
	LogFilePath string
	// DataDir is the directory holding the append-only telemetry CSV logs.
	DataDir string
	// SensorMapPath points at the sensor-binding file (GPIO/IP fallbacks).
	SensorMapPath string
	// ProfilesPath points at an optional YAML file overriding the built-in
	// consumption profiles.
	ProfilesPath string
	// HTTPReadTimeout bounds the time to read incoming requests.
	HTTPReadTimeout time.Duration
	// HTTPWriteTimeout bounds the time to write responses.
	HTTPWriteTimeout time.Duration
	// ShutdownTimeout limits graceful shutdown attempts.
	ShutdownTimeout time.Duration
	// PropertiesPath records the path used to load property values.
	PropertiesPath string
	// PollInterval is the default telemetry poll interval when a start
	// request does not carry its own.
	PollInterval time.Duration
	// KafkaBrokers lists the bootstrap brokers for the sample mirror. An
	// empty list disables mirroring.
	KafkaBrokers []string
	// KafkaTopic carries the mirrored telemetry samples.
	KafkaTopic string
	// MQTTBroker is the broker URL for per-tick sensor readings. Empty
	// disables publishing.
	MQTTBroker string
	// MQTTTopic carries the published sensor readings.
	MQTTTopic string
	// SimStart is the simulated time-of-day the clock starts at.
	SimStart time.Duration
	// HeatingFactor drives the no-history temperature walk: positive
	// heats, zero or negative cools.
	HeatingFactor float64
}

const (
	defaultListenAddress = ":8090"
	defaultLogFile       = "logs/homesim.log"
	defaultDataDir       = "data"
	defaultSensorMap     = "sensor_map.json"
	defaultProfiles      = "profiles.yaml"
	defaultReadTimeout   = 5 * time.Second
	defaultWriteTimeout  = 10 * time.Second
	defaultShutdown      = 5 * time.Second
	defaultPropsPath     = "homesim.properties"
	defaultPollInterval  = time.Minute
	defaultKafkaTopic    = "homesim.telemetry.samples"
	defaultMQTTTopic     = "homesim/readings"
	defaultSimStart      = "08:00"
)

// Load resolves configuration by layering defaults, an optional properties
// file, and finally environment variables. The properties file location
// can be overridden with HOMESIM_PROPERTIES_PATH.
func Load() (Config, error) {
	start, _ := parseClockTime(defaultSimStart)
	cfg := Config{
		ListenAddress:    defaultListenAddress,
		LogFilePath:      filepath.Clean(defaultLogFile),
		DataDir:          defaultDataDir,
		SensorMapPath:    defaultSensorMap,
		ProfilesPath:     defaultProfiles,
		HTTPReadTimeout:  defaultReadTimeout,
		HTTPWriteTimeout: defaultWriteTimeout,
		ShutdownTimeout:  defaultShutdown,
		PollInterval:     defaultPollInterval,
		KafkaTopic:       defaultKafkaTopic,
		MQTTTopic:        defaultMQTTTopic,
		SimStart:         start,
	}

	propsPath := strings.TrimSpace(os.Getenv("HOMESIM_PROPERTIES_PATH"))
	if propsPath == "" {
		propsPath = defaultPropsPath
	}
	cfg.PropertiesPath = propsPath

	if err := applyProperties(&cfg, propsPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyProperties(cfg *Config, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		// Close errors are ignored because configuration loading has
		// already completed and there is no logger available at this
		// stage of initialization.
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, ";") {
			continue
		}
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid properties entry on line %d", line)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if err := setProperty(cfg, key, value); err != nil {
			return fmt.Errorf("property %s: %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read properties: %w", err)
	}
	return nil
}

func setProperty(cfg *Config, key, value string) error {
	switch key {
	case "listen_address":
		if value == "" {
			return errors.New("listen_address cannot be empty")
		}
		cfg.ListenAddress = value
	case "log_path":
		if value == "" {
			return errors.New("log_path cannot be empty")
		}
		cfg.LogFilePath = filepath.Clean(value)
	case "data_dir":
		if value == "" {
			return errors.New("data_dir cannot be empty")
		}
		cfg.DataDir = filepath.Clean(value)
	case "sensor_map_path":
		cfg.SensorMapPath = filepath.Clean(value)
	case "profiles_path":
		cfg.ProfilesPath = filepath.Clean(value)
	case "http_read_timeout_ms":
		d, err := parsePositiveMillis(value)
		if err != nil {
			return err
		}
		cfg.HTTPReadTimeout = d
	case "http_write_timeout_ms":
		d, err := parsePositiveMillis(value)
		if err != nil {
			return err
		}
		cfg.HTTPWriteTimeout = d
	case "shutdown_timeout_ms":
		d, err := parsePositiveMillis(value)
		if err != nil {
			return err
		}
		cfg.ShutdownTimeout = d
	case "poll_interval_ms":
		d, err := parsePositiveMillis(value)
		if err != nil {
			return err
		}
		cfg.PollInterval = d
	case "kafka_brokers":
		cfg.KafkaBrokers = splitAndTrim(value)
	case "kafka_topic":
		if value == "" {
			return errors.New("kafka_topic cannot be empty")
		}
		cfg.KafkaTopic = value
	case "mqtt_broker":
		cfg.MQTTBroker = value
	case "mqtt_topic":
		if value == "" {
			return errors.New("mqtt_topic cannot be empty")
		}
		cfg.MQTTTopic = value
	case "sim_start":
		d, err := parseClockTime(value)
		if err != nil {
			return err
		}
		cfg.SimStart = d
	case "heating_factor":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid heating_factor: %w", err)
		}
		cfg.HeatingFactor = f
	default:
		// Unknown keys are ignored to keep the loader forward-compatible.
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v, ok := lookupEnvTrimmed("HOMESIM_LISTEN_ADDRESS"); ok {
		if v == "" {
			return errors.New("HOMESIM_LISTEN_ADDRESS cannot be empty")
		}
		cfg.ListenAddress = v
	}
	if v, ok := lookupEnvTrimmed("HOMESIM_LOG_PATH"); ok {
		if v == "" {
			return errors.New("HOMESIM_LOG_PATH cannot be empty")
		}
		cfg.LogFilePath = filepath.Clean(v)
	}
	if v, ok := lookupEnvTrimmed("HOMESIM_DATA_DIR"); ok {
		if v == "" {
			return errors.New("HOMESIM_DATA_DIR cannot be empty")
		}
		cfg.DataDir = filepath.Clean(v)
	}
	if v, ok := lookupEnvTrimmed("HOMESIM_SENSOR_MAP_PATH"); ok {
		cfg.SensorMapPath = filepath.Clean(v)
	}
	if v, ok := lookupEnvTrimmed("HOMESIM_PROFILES_PATH"); ok {
		cfg.ProfilesPath = filepath.Clean(v)
	}
	if v, ok := lookupEnvTrimmed("HOMESIM_HTTP_READ_TIMEOUT_MS"); ok {
		d, err := parsePositiveMillis(v)
		if err != nil {
			return fmt.Errorf("HOMESIM_HTTP_READ_TIMEOUT_MS: %w", err)
		}
		cfg.HTTPReadTimeout = d
	}
	if v, ok := lookupEnvTrimmed("HOMESIM_HTTP_WRITE_TIMEOUT_MS"); ok {
		d, err := parsePositiveMillis(v)
		if err != nil {
			return fmt.Errorf("HOMESIM_HTTP_WRITE_TIMEOUT_MS: %w", err)
		}
		cfg.HTTPWriteTimeout = d
	}
	if v, ok := lookupEnvTrimmed("HOMESIM_SHUTDOWN_TIMEOUT_MS"); ok {
		d, err := parsePositiveMillis(v)
		if err != nil {
			return fmt.Errorf("HOMESIM_SHUTDOWN_TIMEOUT_MS: %w", err)
		}
		cfg.ShutdownTimeout = d
	}
	if v, ok := lookupEnvTrimmed("HOMESIM_POLL_INTERVAL_MS"); ok {
		d, err := parsePositiveMillis(v)
		if err != nil {
			return fmt.Errorf("HOMESIM_POLL_INTERVAL_MS: %w", err)
		}
		cfg.PollInterval = d
	}
	if v, ok := lookupEnvTrimmed("HOMESIM_KAFKA_BROKERS"); ok {
		cfg.KafkaBrokers = splitAndTrim(v)
	} else if v, ok := lookupEnvTrimmed("KAFKA_BROKERS"); ok {
		cfg.KafkaBrokers = splitAndTrim(v)
	}
	if v, ok := lookupEnvTrimmed("HOMESIM_KAFKA_TOPIC"); ok {
		if v == "" {
			return errors.New("HOMESIM_KAFKA_TOPIC cannot be empty")
		}
		cfg.KafkaTopic = v
	}
	if v, ok := lookupEnvTrimmed("HOMESIM_MQTT_BROKER"); ok {
		cfg.MQTTBroker = v
	}
	if v, ok := lookupEnvTrimmed("HOMESIM_MQTT_TOPIC"); ok {
		if v == "" {
			return errors.New("HOMESIM_MQTT_TOPIC cannot be empty")
		}
		cfg.MQTTTopic = v
	}
	if v, ok := lookupEnvTrimmed("HOMESIM_SIM_START"); ok {
		d, err := parseClockTime(v)
		if err != nil {
			return fmt.Errorf("HOMESIM_SIM_START: %w", err)
		}
		cfg.SimStart = d
	}
	if v, ok := lookupEnvTrimmed("HOMESIM_HEATING_FACTOR"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("HOMESIM_HEATING_FACTOR: %w", err)
		}
		cfg.HeatingFactor = f
	}
	return nil
}

func lookupEnvTrimmed(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitAndTrim(raw string) []string {
	fields := strings.Split(raw, ",")
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		trimmed := strings.TrimSpace(field)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parsePositiveMillis(v string) (time.Duration, error) {
	if strings.TrimSpace(v) == "" {
		return 0, errors.New("value cannot be empty")
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	if ms <= 0 {
		return 0, errors.New("value must be greater than zero")
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// parseClockTime reads an HH:MM wall-clock string into an offset from
// midnight.
func parseClockTime(v string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid HH:MM time %q: %w", v, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
