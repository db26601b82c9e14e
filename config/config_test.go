package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_SECRET", "a")
	t.Setenv("REFRESH_TOKEN_SECRET", "r")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, DefaultAccessTokenTTL, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, DefaultRefreshTokenTTL, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, "none", cfg.MQ.Provider)
	assert.Equal(t, 5*time.Second, cfg.MQ.PublishTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_SSL", "true")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("REFRESH_TOKEN_TTL", "bogus")
	t.Setenv("LOG_DEV", "1")
	t.Setenv("MQ_PROVIDER", "RabbitMQ")
	t.Setenv("MQ_PUBLISH_TIMEOUT", "750ms")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, DefaultRefreshTokenTTL, cfg.Auth.RefreshTokenTTL, "unparsable durations fall back to the default")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "rabbitmq", cfg.MQ.Provider)
	assert.Equal(t, 750*time.Millisecond, cfg.MQ.PublishTimeout)
}

func TestValidate(t *testing.T) {
	base := Config{
		Auth: AuthConfig{
			AccessTokenSecret:  "access",
			RefreshTokenSecret: "refresh",
			AccessTokenTTL:     time.Minute,
			RefreshTokenTTL:    time.Hour,
		},
		MQ: MQConfig{Provider: "none"},
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing access secret", mutate: func(c *Config) { c.Auth.AccessTokenSecret = " " }, wantErr: true},
		{name: "missing refresh secret", mutate: func(c *Config) { c.Auth.RefreshTokenSecret = "" }, wantErr: true},
		{name: "shared secret", mutate: func(c *Config) { c.Auth.RefreshTokenSecret = "access" }, wantErr: true},
		{name: "zero ttl", mutate: func(c *Config) { c.Auth.AccessTokenTTL = 0 }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.MQ.Provider = "kafka" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
