package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Defaults applied to zero values after loading
const (
	DefaultPollTimeout      = 30 * time.Second
	DefaultExcerptLimit     = 1000
	DefaultUploadField      = "bark_file"
	DefaultMaxUploadBytes   = 32 << 20
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultPendingCode      = "S0005"
	DefaultEventsRoutingKey = "analysis"
	DefaultEventsQueueSize  = 256
)

// Env vars that override secrets and endpoints from the file
const (
	EnvClientID  = "EMO_CLIENT_ID"
	EnvSecretKey = "EMO_SECRET_KEY"
	EnvSubmitURL = "EMO_SUBMIT_URL"
	EnvResultURL = "EMO_RESULT_URL"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Events   EventsConfig   `yaml:"events"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

// UpstreamConfig describes the external analysis service
type UpstreamConfig struct {
	SubmitURL    string        `yaml:"submit_url"`
	ResultURL    string        `yaml:"result_url"`
	ClientID     string        `yaml:"client_id"`
	SecretKey    string        `yaml:"secret_key"`
	Referer      string        `yaml:"referer"`
	UploadField  string        `yaml:"upload_field"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
	ExcerptLimit int           `yaml:"excerpt_limit"`
	PendingCodes []string      `yaml:"pending_codes"`
}

// EventsConfig holds the optional RabbitMQ status event publisher configuration
type EventsConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	User              string        `yaml:"user"`
	Password          string        `yaml:"password"`
	VHost             string        `yaml:"vhost"`
	Exchange          string        `yaml:"exchange"`
	ExchangeType      string        `yaml:"exchange_type"`
	RoutingKey        string        `yaml:"routing_key"`
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	PublishRetries    int           `yaml:"publish_retries"`
	PublishRetryDelay time.Duration `yaml:"publish_retry_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	QueueSize         int           `yaml:"queue_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// Load reads and parses the configuration file, then applies env overrides and defaults
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	return &config, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		EnvClientID:  &c.Upstream.ClientID,
		EnvSecretKey: &c.Upstream.SecretKey,
		EnvSubmitURL: &c.Upstream.SubmitURL,
		EnvResultURL: &c.Upstream.ResultURL,
	}
	for key, field := range overrides {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Upstream.PollTimeout <= 0 {
		c.Upstream.PollTimeout = DefaultPollTimeout
	}
	if c.Upstream.ExcerptLimit <= 0 {
		c.Upstream.ExcerptLimit = DefaultExcerptLimit
	}
	if c.Upstream.UploadField == "" {
		c.Upstream.UploadField = DefaultUploadField
	}
	if len(c.Upstream.PendingCodes) == 0 {
		c.Upstream.PendingCodes = []string{DefaultPendingCode}
	}
	if c.Events.ExchangeType == "" {
		c.Events.ExchangeType = "topic"
	}
	if c.Events.RoutingKey == "" {
		c.Events.RoutingKey = DefaultEventsRoutingKey
	}
	if c.Events.QueueSize <= 0 {
		c.Events.QueueSize = DefaultEventsQueueSize
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := validateURL("upstream submit_url", c.Upstream.SubmitURL); err != nil {
		return err
	}

	if err := validateURL("upstream result_url", c.Upstream.ResultURL); err != nil {
		return err
	}

	if c.Upstream.ClientID == "" {
		return fmt.Errorf("upstream client_id is required")
	}

	if c.Upstream.SecretKey == "" {
		return fmt.Errorf("upstream secret_key is required")
	}

	if c.Upstream.PollTimeout <= 0 {
		return fmt.Errorf("upstream poll_timeout must be greater than 0")
	}

	if c.Upstream.ExcerptLimit <= 0 {
		return fmt.Errorf("upstream excerpt_limit must be greater than 0")
	}

	for _, code := range c.Upstream.PendingCodes {
		if code == "" {
			return fmt.Errorf("upstream pending_codes must not contain empty codes")
		}
	}

	if c.Events.Enabled {
		return c.validateEvents()
	}

	return nil
}

func (c *Config) validateEvents() error {
	if c.Events.Host == "" {
		return fmt.Errorf("events host is required")
	}

	if c.Events.Port < MinPort || c.Events.Port > MaxPort {
		return fmt.Errorf("invalid events port: %d (must be between %d and %d)", c.Events.Port, MinPort, MaxPort)
	}

	if c.Events.Exchange == "" {
		return fmt.Errorf("events exchange is required")
	}

	if c.Events.RetryAttempts <= 0 {
		return fmt.Errorf("events retry_attempts must be greater than 0")
	}

	return nil
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL: %q", name, raw)
	}
	return nil
}
