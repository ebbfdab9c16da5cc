package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Reconnect policies applied once the connection manager has exhausted its
// counted attempts.
const (
	// ReconnectPolicyContinue keeps scheduling fixed-delay retries forever.
	ReconnectPolicyContinue = "continue"

	// ReconnectPolicyStop schedules nothing further after the critical alert.
	ReconnectPolicyStop = "stop"
)

// encryptionKeyBytes is the required key length for the envelope cipher.
const encryptionKeyBytes = 32

// Config is the root configuration structure for the door access gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Liveness   LivenessConfig   `yaml:"liveness"`
	Encryption EncryptionConfig `yaml:"encryption"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// Timezone is the IANA zone used to evaluate door schedules.
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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
	// Delay is the fixed wait (seconds) before the gateway retries a failed connect.
	Delay int `yaml:"delay"`

	// MaxDelay caps the transport's own backoff (seconds) for lost sessions.
	MaxDelay int `yaml:"max_delay"`

	// MaxAttempts is the number of consecutive failures before the
	// MQTT_CONNECTION_FAILED alert is raised.
	MaxAttempts int `yaml:"max_attempts"`

	// Policy is "continue" or "stop".
	Policy string `yaml:"policy"`
}

// LivenessConfig contains device heartbeat monitoring settings.
type LivenessConfig struct {
	// SweepInterval is how often (seconds) stale devices are checked.
	SweepInterval int `yaml:"sweep_interval"`

	// OfflineThreshold is the heartbeat age (seconds) after which a device is
	// considered offline. Zero means three sweep intervals.
	OfflineThreshold int `yaml:"offline_threshold"`
}

// EncryptionConfig contains the payload envelope settings.
type EncryptionConfig struct {
	Enabled bool `yaml:"enabled"`

	// Key is the hex-encoded 32-byte symmetric key shared with devices.
	Key string `yaml:"key"`
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
// Environment variables follow the pattern: DOORGATE_SECTION_KEY
// For example: DOORGATE_DATABASE_PATH, DOORGATE_MQTT_HOST
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Door Access",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/doorgate.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "doorgate-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				Delay:       5,
				MaxDelay:    60,
				MaxAttempts: 5,
				Policy:      ReconnectPolicyContinue,
			},
		},
		Liveness: LivenessConfig{
			SweepInterval: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DOORGATE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("DOORGATE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("DOORGATE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DOORGATE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DOORGATE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Site
	if v := os.Getenv("DOORGATE_SITE_TIMEZONE"); v != "" {
		cfg.Site.Timezone = v
	}

	// Encryption key (keep out of config files in production)
	if v := os.Getenv("DOORGATE_ENCRYPTION_KEY"); v != "" {
		cfg.Encryption.Key = v
	}

	// InfluxDB
	if v := os.Getenv("DOORGATE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("site.timezone %q is not a valid IANA zone", c.Site.Timezone))
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Reconnect.Delay < 1 {
		errs = append(errs, "mqtt.reconnect.delay must be at least 1 second")
	}
	if c.MQTT.Reconnect.MaxAttempts < 1 {
		errs = append(errs, "mqtt.reconnect.max_attempts must be at least 1")
	}
	switch c.MQTT.Reconnect.Policy {
	case ReconnectPolicyContinue, ReconnectPolicyStop:
	default:
		errs = append(errs, `mqtt.reconnect.policy must be "continue" or "stop"`)
	}

	if c.Liveness.SweepInterval < 1 {
		errs = append(errs, "liveness.sweep_interval must be at least 1 second")
	}
	if c.Liveness.OfflineThreshold < 0 {
		errs = append(errs, "liveness.offline_threshold cannot be negative")
	}

	// A device trusted with encrypted unlock commands must never be sent a
	// weak or malformed key.
	if c.Encryption.Enabled {
		key, err := hex.DecodeString(c.Encryption.Key)
		switch {
		case c.Encryption.Key == "":
			errs = append(errs, "encryption.key is required when encryption is enabled (set DOORGATE_ENCRYPTION_KEY)")
		case err != nil:
			errs = append(errs, "encryption.key must be hex encoded")
		case len(key) != encryptionKeyBytes:
			errs = append(errs, "encryption.key must decode to 32 bytes")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Location returns the site time zone used for schedule evaluation.
// Falls back to UTC if the zone cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ReconnectDelay returns the fixed reconnect delay as a Duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.MQTT.Reconnect.Delay) * time.Second
}

// SweepInterval returns the liveness sweep interval as a Duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Liveness.SweepInterval) * time.Second
}

// OfflineThreshold returns the heartbeat age after which a device is offline.
// Defaults to three sweep intervals.
func (c *Config) OfflineThreshold() time.Duration {
	if c.Liveness.OfflineThreshold > 0 {
		return time.Duration(c.Liveness.OfflineThreshold) * time.Second
	}
	return 3 * c.SweepInterval()
}

// EncryptionKey returns the decoded envelope key. Only valid after Validate
// when encryption is enabled.
func (c *Config) EncryptionKey() ([]byte, error) {
	key, err := hex.DecodeString(c.Encryption.Key)
	if err != nil {
		return nil, fmt.Errorf("decoding encryption key: %w", err)
	}
	return key, nil
}
