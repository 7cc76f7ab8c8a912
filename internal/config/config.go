package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// Config represents the complete configuration for the Novy bridge
type Config struct {
	Hostname string         `yaml:"hostname"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Network  NetworkConfig  `yaml:"network"`
	GPIO     GPIOConfig     `yaml:"gpio"`
	Codes    CodesConfig    `yaml:"codes"`
	Protocol ProtocolConfig `yaml:"protocol"`
	Driver   DriverConfig   `yaml:"driver"`
	Log      LogConfig      `yaml:"log"`
}

// MQTTConfig holds the message bus settings
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Server      string `yaml:"server"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	ClientID    string `yaml:"clientId"` // defaults to hostname
	TopicPrefix string `yaml:"topicPrefix"`
	QoS         byte   `yaml:"qos"`
}

// NetworkConfig holds local server settings
type NetworkConfig struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// HTTPConfig holds HTTP API settings
type HTTPConfig struct {
	Enabled      bool       `yaml:"enabled"`
	Port         int        `yaml:"port"`
	ServerHeader string     `yaml:"serverHeader"`
	Auth         AuthConfig `yaml:"auth"`

	// OriginPatterns lists the browser origins allowed on the event stream
	OriginPatterns []string `yaml:"originPatterns"`
}

// AuthConfig holds bearer token settings. An empty secret disables auth.
type AuthConfig struct {
	Secret string `yaml:"secret"`
}

// MaintenanceConfig holds maintenance TCP server settings
type MaintenanceConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Port         int      `yaml:"port"`
	AllowedCIDRs []string `yaml:"allowedCidrs"`
}

// GPIOConfig holds the transceiver pin assignment
type GPIOConfig struct {
	Backend     string `yaml:"backend"` // periph, sysfs or stub
	TransmitPin int    `yaml:"transmitPin"`
	PowerPin    int    `yaml:"powerPin"`
}

// CodesConfig holds the Novy code table
type CodesConfig struct {
	Prefix   string            `yaml:"prefix"`
	Devices  []string          `yaml:"devices"`
	Commands map[string]string `yaml:"commands"`
}

// ProtocolConfig holds the on/off keying timing profile
type ProtocolConfig struct {
	UnitUs          int            `yaml:"unitUs"`
	Zero            [2]int         `yaml:"zero"` // high, low in units
	One             [2]int         `yaml:"one"`  // high, low in units
	GapUnits        int            `yaml:"gapUnits"`
	Repeats         int            `yaml:"repeats"`
	RepeatOverrides map[string]int `yaml:"repeatOverrides"`
}

// DriverConfig holds transceiver sequencing settings
type DriverConfig struct {
	SettleMs  int `yaml:"settleMs"`
	TrailMs   int `yaml:"trailMs"`
	QueueSize int `yaml:"queueSize"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	cfg := getDefaultConfig()

	if err := loadFromFile(cfg, "config/default.yaml"); err != nil {
		// If default config doesn't exist, continue with defaults
		fmt.Printf("Warning: Could not load default config: %v\n", err)
	}

	if path := os.Getenv("NOVY_CONFIG"); path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = cfg.Hostname
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading files or the
// environment. Callers may modify the copy they get.
func Default() *Config {
	cfg := getDefaultConfig()
	cfg.MQTT.ClientID = cfg.Hostname
	return cfg
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	return &Config{
		Hostname: "novy-bridge",
		MQTT: MQTTConfig{
			Enabled:     true,
			Server:      "localhost",
			Port:        1883,
			TopicPrefix: "novy",
			QoS:         1,
		},
		Network: NetworkConfig{
			HTTP: HTTPConfig{
				Enabled:        true,
				Port:           8080,
				ServerHeader:   "novy-bridge",
				OriginPatterns: []string{"localhost:*"},
			},
			Maintenance: MaintenanceConfig{
				Enabled:      true,
				Port:         50000,
				AllowedCIDRs: []string{"127.0.0.0/8"},
			},
		},
		GPIO: GPIOConfig{
			Backend:     "periph",
			TransmitPin: 3,
			PowerPin:    4,
		},
		Codes: CodesConfig{
			Prefix: "0101",
			Devices: []string{
				"0101", "1001", "0001", "1110", "0110",
				"1010", "0010", "1100", "0100", "1000",
			},
			Commands: map[string]string{
				"light": "0111010001",
				"power": "0111010011",
				"plus":  "0101",
				"minus": "0110",
				"novy":  "0100",
			},
		},
		Protocol: ProtocolConfig{
			UnitUs:   380,
			Zero:     [2]int{1, 3},
			One:      [2]int{3, 1},
			GapUnits: 31,
			Repeats:  10,
		},
		Driver: DriverConfig{
			SettleMs:  20,
			TrailMs:   5,
			QueueSize: 8,
		},
		Log: LogConfig{
			Level:      "INFO",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if hostname := os.Getenv("NOVY_HOSTNAME"); hostname != "" {
		cfg.Hostname = hostname
	}

	if server := os.Getenv("NOVY_MQTT_SERVER"); server != "" {
		host, port, found := strings.Cut(server, ":")
		cfg.MQTT.Server = host
		if found {
			if p, err := strconv.Atoi(port); err == nil {
				cfg.MQTT.Port = p
			}
		}
	}

	if user := os.Getenv("NOVY_MQTT_USER"); user != "" {
		cfg.MQTT.User = user
	}

	if password := os.Getenv("NOVY_MQTT_PASSWORD"); password != "" {
		cfg.MQTT.Password = password
	}

	if backend := os.Getenv("NOVY_GPIO_BACKEND"); backend != "" {
		cfg.GPIO.Backend = backend
	}

	if level := os.Getenv("NOVY_LOG_LEVEL"); level != "" {
		cfg.Log.Level = strings.ToUpper(level)
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Hostname == "" {
		return fmt.Errorf("hostname must be set")
	}

	validBackends := []string{"periph", "sysfs", "stub"}
	if !contains(validBackends, cfg.GPIO.Backend) {
		return fmt.Errorf("invalid gpio backend %s, must be one of: %v", cfg.GPIO.Backend, validBackends)
	}

	if cfg.GPIO.TransmitPin < 0 || cfg.GPIO.PowerPin < 0 {
		return fmt.Errorf("invalid gpio pins: transmit=%d, power=%d", cfg.GPIO.TransmitPin, cfg.GPIO.PowerPin)
	}
	if cfg.GPIO.TransmitPin == cfg.GPIO.PowerPin {
		return fmt.Errorf("transmit and power pins must differ (both %d)", cfg.GPIO.TransmitPin)
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Server == "" {
			return fmt.Errorf("mqtt server must be set when mqtt is enabled")
		}
		if cfg.MQTT.Port <= 0 || cfg.MQTT.Port > 65535 {
			return fmt.Errorf("mqtt port %d is outside range [1, 65535]", cfg.MQTT.Port)
		}
		if cfg.MQTT.TopicPrefix == "" || strings.ContainsAny(cfg.MQTT.TopicPrefix, "+#") {
			return fmt.Errorf("invalid mqtt topic prefix %q", cfg.MQTT.TopicPrefix)
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt qos %d must be 0, 1 or 2", cfg.MQTT.QoS)
		}
	}

	p := cfg.Protocol
	if p.UnitUs <= 0 || p.GapUnits <= 0 {
		return fmt.Errorf("invalid protocol timing: unit=%dus, gap=%d units", p.UnitUs, p.GapUnits)
	}
	for _, v := range []int{p.Zero[0], p.Zero[1], p.One[0], p.One[1]} {
		if v <= 0 {
			return fmt.Errorf("bit timings must be positive unit multiples: zero=%v, one=%v", p.Zero, p.One)
		}
	}
	if p.Repeats < 1 || p.Repeats > 50 {
		return fmt.Errorf("repeat count %d is outside reasonable range [1, 50]", p.Repeats)
	}
	for name, n := range p.RepeatOverrides {
		if n < 1 || n > 50 {
			return fmt.Errorf("repeat override for %s (%d) is outside reasonable range [1, 50]", name, n)
		}
	}

	// The settle delay is a hardware requirement and may not be configured away
	if cfg.Driver.SettleMs <= 0 || cfg.Driver.SettleMs > 1000 {
		return fmt.Errorf("settle delay %dms is outside reasonable range [1, 1000]", cfg.Driver.SettleMs)
	}
	if cfg.Driver.TrailMs < 0 || cfg.Driver.TrailMs > 1000 {
		return fmt.Errorf("trailing margin %dms is outside reasonable range [0, 1000]", cfg.Driver.TrailMs)
	}
	if cfg.Driver.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1, got %d", cfg.Driver.QueueSize)
	}

	validLevels := []string{"DEBUG", "INFO", "ERROR"}
	if !contains(validLevels, cfg.Log.Level) {
		return fmt.Errorf("invalid log level %s, must be one of: %v", cfg.Log.Level, validLevels)
	}

	return nil
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
