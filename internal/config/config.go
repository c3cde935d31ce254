package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// ServerConfig configures the HTTP/WebSocket UI.
type ServerConfig struct {
	Port           string   `json:"port"`
	WebFilesDir    string   `json:"web_files_dir"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// GatewayConfig configures the link to the bulb gateway.
type GatewayConfig struct {
	Host              string  `json:"host"`
	Port              int     `json:"port"`
	DialTimeout       string  `json:"dial_timeout"`
	RetryInterval     string  `json:"retry_interval"`
	PollInterval      string  `json:"poll_interval"`
	KeepaliveInterval string  `json:"keepalive_interval"`
	ReadTimeout       string  `json:"read_timeout"`
	ReadAttempts      int     `json:"read_attempts"`
	RateLimit         float64 `json:"command_rate_limit"`
	RateBurst         int     `json:"command_rate_burst"`
}

// MQTTConfig configures the MQTT bridge and Home Assistant discovery.
type MQTTConfig struct {
	Enabled            bool   `json:"enabled"`
	Broker             string `json:"broker"` // tcp://IP:PORT
	Username           string `json:"username"`
	Password           string `json:"password"`
	ClientID           string `json:"client_id"`
	TopicPrefix        string `json:"topic_prefix"`
	HADiscoveryEnabled bool   `json:"ha_discovery_enabled"`
	HADiscoveryPrefix  string `json:"ha_discovery_prefix"`
}

// Config is the root of the JSON config file.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Gateway GatewayConfig `json:"gateway"`
	MQTT    MQTTConfig    `json:"mqtt"`

	PatternsDir   string `json:"patterns_dir"`
	SchedulesFile string `json:"schedules_file"`
}

// Timings holds the parsed gateway durations.
type Timings struct {
	DialTimeout       time.Duration
	RetryInterval     time.Duration
	PollInterval      time.Duration
	KeepaliveInterval time.Duration
	ReadTimeout       time.Duration
}

// Load reads the file at path, applies defaults and validates the result.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			cfg.applyEnv()
			cfg.setDefaults()
			return cfg, cfg.validate()
		}
		return nil, fmt.Errorf("failed to open config file '%s': %w", path, err)
	}
	defer file.Close()

	cfg := &Config{}
	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}

	cfg.applyEnv()
	cfg.sanitize()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv lets the gateway host be overridden without editing the file.
func (c *Config) applyEnv() {
	if host := os.Getenv("LIGHTFUN_GATEWAY_HOST"); host != "" {
		c.Gateway.Host = host
	}
}

func (c *Config) sanitize() {
	c.Server.Port = strings.TrimSpace(c.Server.Port)
	c.Server.WebFilesDir = strings.TrimSpace(c.Server.WebFilesDir)
	c.Gateway.Host = strings.TrimSpace(c.Gateway.Host)
	c.PatternsDir = strings.TrimSpace(c.PatternsDir)
	c.SchedulesFile = strings.TrimSpace(c.SchedulesFile)
}

func (c *Config) setDefaults() {
	// Server Defaults
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.WebFilesDir == "" {
		c.Server.WebFilesDir = "./web"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:8080"}
	}

	// Gateway Defaults
	if c.Gateway.Host == "" {
		c.Gateway.Host = "localhost"
	}
	if c.Gateway.Port == 0 {
		c.Gateway.Port = 7878
	}
	if c.Gateway.DialTimeout == "" {
		c.Gateway.DialTimeout = "5s"
	}
	if c.Gateway.RetryInterval == "" {
		c.Gateway.RetryInterval = "3s"
	}
	if c.Gateway.PollInterval == "" {
		c.Gateway.PollInterval = "100ms"
	}
	if c.Gateway.KeepaliveInterval == "" {
		c.Gateway.KeepaliveInterval = "5s"
	}
	if c.Gateway.ReadTimeout == "" {
		c.Gateway.ReadTimeout = "250ms"
	}
	if c.Gateway.ReadAttempts == 0 {
		c.Gateway.ReadAttempts = 20
	}
	if c.Gateway.RateLimit == 0 {
		c.Gateway.RateLimit = 20.0
	}
	if c.Gateway.RateBurst == 0 {
		c.Gateway.RateBurst = 5
	}

	// File Defaults
	if c.PatternsDir == "" {
		c.PatternsDir = "patterns"
	}
	if c.SchedulesFile == "" {
		c.SchedulesFile = "schedules.json"
	}

	// MQTT Defaults
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "lightfun-controller"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "lightfun"
	}
	if c.MQTT.HADiscoveryPrefix == "" {
		c.MQTT.HADiscoveryPrefix = "homeassistant"
	}
}

func (c *Config) validate() error {
	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		return fmt.Errorf("config error: gateway 'port' %d out of range", c.Gateway.Port)
	}
	if c.Gateway.RateLimit < 0 {
		return fmt.Errorf("config error: 'command_rate_limit' must be positive")
	}
	if c.Gateway.RateBurst < 0 {
		return fmt.Errorf("config error: 'command_rate_burst' must be positive")
	}
	if c.Gateway.ReadAttempts < 0 {
		return fmt.Errorf("config error: 'read_attempts' must be positive")
	}
	if _, err := c.GatewayTimings(); err != nil {
		return err
	}
	return nil
}

// GatewayTimings parses the gateway duration strings.
func (c *Config) GatewayTimings() (Timings, error) {
	var t Timings
	fields := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"dial_timeout", c.Gateway.DialTimeout, &t.DialTimeout},
		{"retry_interval", c.Gateway.RetryInterval, &t.RetryInterval},
		{"poll_interval", c.Gateway.PollInterval, &t.PollInterval},
		{"keepalive_interval", c.Gateway.KeepaliveInterval, &t.KeepaliveInterval},
		{"read_timeout", c.Gateway.ReadTimeout, &t.ReadTimeout},
	}
	for _, f := range fields {
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return Timings{}, fmt.Errorf("config error: '%s': %w", f.name, err)
		}
		if d <= 0 {
			return Timings{}, fmt.Errorf("config error: '%s' must be positive", f.name)
		}
		*f.dst = d
	}
	return t, nil
}
