package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the AVR bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Receiver  ReceiverConfig  `yaml:"receiver"`
	State     StateConfig     `yaml:"state"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ReceiverConfig describes the single receiver this bridge instance talks to.
type ReceiverConfig struct {
	// Host is the receiver's IP address or hostname.
	Host string `yaml:"host"`

	// Port is the telnet control port. Default: 23
	Port int `yaml:"port"`

	// Dialect forces a command set ("receiver" or "amplifier").
	// Empty means detect on first connect.
	Dialect string `yaml:"dialect"`

	// ConnectTimeout is the TCP connect timeout in seconds. Default: 10
	ConnectTimeout int `yaml:"connect_timeout"`

	// IdleTimeout is the silent-link detector in seconds. Default: 35
	IdleTimeout int `yaml:"idle_timeout"`

	// ReconnectDelay is the fixed backoff before reconnecting, in seconds. Default: 30
	ReconnectDelay int `yaml:"reconnect_delay"`

	// PollInterval is the idle time before status polling, in seconds. Default: 7
	PollInterval int `yaml:"poll_interval"`

	// CommandDelay is the spacing between queued commands in milliseconds. Default: 100
	CommandDelay int `yaml:"command_delay"`
}

// StateConfig selects the host state store backend.
type StateConfig struct {
	// Backend is "memory" or "sqlite". Default: sqlite
	Backend string `yaml:"backend"`

	// Instance names this bridge in state topics (graylogic/avr/{instance}/...).
	Instance string `yaml:"instance"`

	// PublishMQTT mirrors every state and object write onto MQTT.
	PublishMQTT bool `yaml:"publish_mqtt"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DiscoveryConfig contains SSDP scan settings.
type DiscoveryConfig struct {
	// Timeout is the scan window in seconds. Default: 5
	Timeout int `yaml:"timeout"`

	// SearchTarget is the SSDP ST header. Default: upnp:rootdevice
	SearchTarget string `yaml:"search_target"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: AVRBRIDGE_SECTION_KEY
// For example: AVRBRIDGE_RECEIVER_HOST, AVRBRIDGE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. Used by CLI subcommands that can run without a config file.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Receiver: ReceiverConfig{
			Port:           23,
			ConnectTimeout: 10,
			IdleTimeout:    35,
			ReconnectDelay: 30,
			PollInterval:   7,
			CommandDelay:   100,
		},
		State: StateConfig{
			Backend:  "sqlite",
			Instance: "avr-0",
		},
		Database: DatabaseConfig{
			Path:        "./data/avrbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-avr",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Discovery: DiscoveryConfig{
			Timeout:      5,
			SearchTarget: "upnp:rootdevice",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: AVRBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Receiver
	if v := os.Getenv("AVRBRIDGE_RECEIVER_HOST"); v != "" {
		cfg.Receiver.Host = v
	}
	if v := os.Getenv("AVRBRIDGE_RECEIVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Receiver.Port = port
		}
	}
	if v := os.Getenv("AVRBRIDGE_RECEIVER_DIALECT"); v != "" {
		cfg.Receiver.Dialect = v
	}

	// Database
	if v := os.Getenv("AVRBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("AVRBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("AVRBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("AVRBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("AVRBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Receiver validation
	if c.Receiver.Host == "" {
		errs = append(errs, "receiver.host is required (set AVRBRIDGE_RECEIVER_HOST)")
	}
	if c.Receiver.Port < 1 || c.Receiver.Port > 65535 {
		errs = append(errs, "receiver.port must be between 1 and 65535")
	}
	switch strings.ToLower(c.Receiver.Dialect) {
	case "", "receiver", "amplifier":
	default:
		errs = append(errs, "receiver.dialect must be empty, \"receiver\" or \"amplifier\"")
	}
	if c.Receiver.IdleTimeout <= 0 {
		errs = append(errs, "receiver.idle_timeout must be positive")
	}
	if c.Receiver.PollInterval <= 0 {
		errs = append(errs, "receiver.poll_interval must be positive")
	}
	if c.Receiver.ReconnectDelay <= 0 {
		errs = append(errs, "receiver.reconnect_delay must be positive")
	}
	if c.Receiver.CommandDelay < 0 {
		errs = append(errs, "receiver.command_delay cannot be negative")
	}

	// State validation
	switch c.State.Backend {
	case "memory":
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite state backend")
		}
	default:
		errs = append(errs, "state.backend must be \"memory\" or \"sqlite\"")
	}
	if c.State.Instance == "" {
		errs = append(errs, "state.instance is required")
	}
	if c.State.PublishMQTT && !c.MQTT.Enabled {
		errs = append(errs, "state.publish_mqtt requires mqtt.enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Address returns the receiver's host:port dial address.
func (r ReceiverConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// GetConnectTimeout returns the receiver connect timeout as a Duration.
func (r ReceiverConfig) GetConnectTimeout() time.Duration {
	return time.Duration(r.ConnectTimeout) * time.Second
}

// GetIdleTimeout returns the receiver idle-read timeout as a Duration.
func (r ReceiverConfig) GetIdleTimeout() time.Duration {
	return time.Duration(r.IdleTimeout) * time.Second
}

// GetReconnectDelay returns the reconnect backoff as a Duration.
func (r ReceiverConfig) GetReconnectDelay() time.Duration {
	return time.Duration(r.ReconnectDelay) * time.Second
}

// GetPollInterval returns the status poll interval as a Duration.
func (r ReceiverConfig) GetPollInterval() time.Duration {
	return time.Duration(r.PollInterval) * time.Second
}

// GetCommandDelay returns the inter-command spacing as a Duration.
func (r ReceiverConfig) GetCommandDelay() time.Duration {
	return time.Duration(r.CommandDelay) * time.Millisecond
}

// GetTimeout returns the SSDP scan window as a Duration.
func (d DiscoveryConfig) GetTimeout() time.Duration {
	return time.Duration(d.Timeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (a APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(a.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (a APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(a.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (a APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(a.Timeouts.Idle) * time.Second
}
