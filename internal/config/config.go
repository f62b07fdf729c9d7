package config

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/nmea_simulator/internal/gps"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT (empty broker disables MQTT output)
	MQTTBroker          string `yaml:"mqtt_broker"`
	MQTTClientIDFeeder  string `yaml:"mqtt_client_id_feeder"`
	MQTTClientIDConsole string `yaml:"mqtt_client_id_console"`

	// Topics
	TopicNMEA     string `yaml:"topic_nmea"`
	TopicGPS      string `yaml:"topic_gps"`
	PayloadFormat string `yaml:"payload_format"` // "json" or "msgpack"

	// Playback
	NMEAFixturePath     string  `yaml:"nmea_fixture_path"`
	NMEASpeedMultiplier float64 `yaml:"nmea_speed_multiplier"`
	NMEATerminator      string  `yaml:"nmea_terminator"`
	AutoStart           bool    `yaml:"auto_start"`
	ConsoleEcho         bool    `yaml:"console_echo"`

	// Serial output (empty port disables it)
	SerialOutputPort string `yaml:"serial_output_port"`
	SerialBaudRate   int    `yaml:"serial_baud_rate"`

	// Web Server (0 disables it)
	WebServerPort int `yaml:"web_server_port"`
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config with every optional value filled in.
func Default() *Config {
	return &Config{
		TopicNMEA:           "nmea/raw",
		TopicGPS:            "nmea/gps",
		PayloadFormat:       "json",
		NMEASpeedMultiplier: 1.0,
		NMEATerminator:      "$GPRMC",
		AutoStart:           true,
		SerialBaudRate:      9600,
		WebServerPort:       8080,
	}
}

// Load reads the configuration file and returns a Config struct.
// Files ending in .yaml or .yml are decoded as YAML, anything else as
// KEY=VALUE lines.
func Load(configPath string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		cfg, err = loadYAML(configPath)
	default:
		cfg, err = loadKeyValue(configPath)
	}
	if err != nil {
		return nil, err
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadYAML(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

func loadKeyValue(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_FEEDER":
		c.MQTTClientIDFeeder = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_NMEA":
		c.TopicNMEA = value
	case "TOPIC_GPS":
		c.TopicGPS = value
	case "PAYLOAD_FORMAT":
		c.PayloadFormat = strings.ToLower(value)

	// Playback
	case "NMEA_FIXTURE_PATH":
		c.NMEAFixturePath = value
	case "NMEA_SPEED_MULTIPLIER":
		speed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid NMEA_SPEED_MULTIPLIER %q: %w", value, err)
		}
		c.NMEASpeedMultiplier = speed
	case "NMEA_TERMINATOR":
		c.NMEATerminator = value
	case "AUTO_START":
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid AUTO_START %q: %w", value, err)
		}
		c.AutoStart = on
	case "CONSOLE_ECHO":
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid CONSOLE_ECHO %q: %w", value, err)
		}
		c.ConsoleEcho = on

	// Serial output
	case "SERIAL_OUTPUT_PORT":
		c.SerialOutputPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = rate

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.NMEAFixturePath == "" {
		return fmt.Errorf("NMEA_FIXTURE_PATH is required")
	}
	if math.IsNaN(c.NMEASpeedMultiplier) || math.IsInf(c.NMEASpeedMultiplier, 0) {
		return fmt.Errorf("NMEA_SPEED_MULTIPLIER must be a finite number, got %v", c.NMEASpeedMultiplier)
	}
	if c.NMEASpeedMultiplier <= 0 {
		return fmt.Errorf("NMEA_SPEED_MULTIPLIER must be > 0, got %v", c.NMEASpeedMultiplier)
	}
	if c.NMEATerminator == "" {
		return fmt.Errorf("NMEA_TERMINATOR must not be empty")
	}
	if !gps.ValidFormat(c.PayloadFormat) {
		return fmt.Errorf("PAYLOAD_FORMAT must be json or msgpack, got %q", c.PayloadFormat)
	}
	if c.TopicNMEA == "" || c.TopicGPS == "" {
		return fmt.Errorf("TOPIC_NMEA and TOPIC_GPS must not be empty")
	}
	if c.SerialOutputPort != "" && c.SerialBaudRate <= 0 {
		return fmt.Errorf("SERIAL_BAUD_RATE must be > 0 when SERIAL_OUTPUT_PORT is set")
	}
	if c.WebServerPort < 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 0-65535, got %d", c.WebServerPort)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
