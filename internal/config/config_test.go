package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearUpstreamEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvClientID, EnvSecretKey, EnvSubmitURL, EnvResultURL} {
		t.Setenv(key, "")
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Upstream: UpstreamConfig{
			SubmitURL:    "https://emotion.example.com/request",
			ResultURL:    "https://emotion.example.com/result",
			ClientID:     "client",
			SecretKey:    "secret",
			PollTimeout:  30 * time.Second,
			ExcerptLimit: 1000,
			PendingCodes: []string{"S0005"},
		},
	}
}

func TestLoad(t *testing.T) {
	clearUpstreamEnv(t)

	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "test-client", cfg.Upstream.ClientID)
				assert.Equal(t, "test-secret", cfg.Upstream.SecretKey)
				assert.Equal(t, 30*time.Second, cfg.Upstream.PollTimeout)
				assert.Equal(t, 500, cfg.Upstream.ExcerptLimit)
				assert.Equal(t, []string{"S0005", "S0006"}, cfg.Upstream.PendingCodes)
				assert.Equal(t, "audio-analysis-proxy", cfg.App.Name)
			}
		})
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	clearUpstreamEnv(t)

	cfg, err := Load("testdata/invalid_port.yaml")
	require.NoError(t, err)

	assert.Equal(t, DefaultPollTimeout, cfg.Upstream.PollTimeout)
	assert.Equal(t, DefaultExcerptLimit, cfg.Upstream.ExcerptLimit)
	assert.Equal(t, DefaultUploadField, cfg.Upstream.UploadField)
	assert.Equal(t, []string{DefaultPendingCode}, cfg.Upstream.PendingCodes)
	assert.Equal(t, DefaultShutdownTimeout, cfg.Server.ShutdownTimeout)
	assert.Equal(t, int64(DefaultMaxUploadBytes), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "topic", cfg.Events.ExchangeType)
	assert.Equal(t, DefaultEventsQueueSize, cfg.Events.QueueSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearUpstreamEnv(t)
	t.Setenv(EnvClientID, "env-client")
	t.Setenv(EnvSecretKey, "env-secret")
	t.Setenv(EnvResultURL, "https://other.example.com/result")

	cfg, err := Load("testdata/missing_credentials.yaml")
	require.NoError(t, err)

	assert.Equal(t, "env-client", cfg.Upstream.ClientID)
	assert.Equal(t, "env-secret", cfg.Upstream.SecretKey)
	assert.Equal(t, "https://other.example.com/result", cfg.Upstream.ResultURL)
	assert.Equal(t, "https://emotion.example.com/api/v2/analysis/request", cfg.Upstream.SubmitURL)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty submit url",
			mutate:    func(c *Config) { c.Upstream.SubmitURL = "" },
			wantErr:   true,
			errString: "upstream submit_url is required",
		},
		{
			name:      "relative result url",
			mutate:    func(c *Config) { c.Upstream.ResultURL = "/result" },
			wantErr:   true,
			errString: "upstream result_url must be an absolute URL",
		},
		{
			name:      "empty client id",
			mutate:    func(c *Config) { c.Upstream.ClientID = "" },
			wantErr:   true,
			errString: "upstream client_id is required",
		},
		{
			name:      "empty secret key",
			mutate:    func(c *Config) { c.Upstream.SecretKey = "" },
			wantErr:   true,
			errString: "upstream secret_key is required",
		},
		{
			name:      "zero poll timeout",
			mutate:    func(c *Config) { c.Upstream.PollTimeout = 0 },
			wantErr:   true,
			errString: "poll_timeout must be greater than 0",
		},
		{
			name:      "empty pending code",
			mutate:    func(c *Config) { c.Upstream.PendingCodes = []string{"S0005", ""} },
			wantErr:   true,
			errString: "pending_codes must not contain empty codes",
		},
		{
			name: "events enabled without host",
			mutate: func(c *Config) {
				c.Events = EventsConfig{Enabled: true, Port: 5672, Exchange: "analysis_events", RetryAttempts: 3}
			},
			wantErr:   true,
			errString: "events host is required",
		},
		{
			name: "events enabled without exchange",
			mutate: func(c *Config) {
				c.Events = EventsConfig{Enabled: true, Host: "localhost", Port: 5672, RetryAttempts: 3}
			},
			wantErr:   true,
			errString: "events exchange is required",
		},
		{
			name: "events enabled and complete",
			mutate: func(c *Config) {
				c.Events = EventsConfig{Enabled: true, Host: "localhost", Port: 5672, Exchange: "analysis_events", RetryAttempts: 3}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	clearUpstreamEnv(t)

	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing credentials", func(t *testing.T) {
		cfg, err := Load("testdata/missing_credentials.yaml")
		require.NoError(t, err)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "upstream client_id is required")
	})
}
