package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.TokenLifetime())
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.Window)
	assert.Equal(t, 5, cfg.AuthLimit)
	assert.Equal(t, 10, cfg.HeavyLimit)
	assert.Equal(t, "trend.scores", cfg.Topic)
	assert.False(t, cfg.KafkaEnabled())
	assert.Empty(t, cfg.TrustedProxies)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("KAFKA_BROKERS", "localhost:9094")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.Window)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.1"}, cfg.TrustedProxies)
}

func TestConfig_validate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Auth:      Auth{SecretKey: "s3cret", AccessTokenExpireMinutes: 30},
			RateLimit: RateLimit{Requests: 100, Window: time.Minute, AuthLimit: 5, HeavyLimit: 10},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "default secret without debug", mutate: func(c *Config) { c.SecretKey = DefaultSecretKey }, wantErr: true},
		{name: "default secret with debug", mutate: func(c *Config) { c.SecretKey = DefaultSecretKey; c.Debug = true }},
		{name: "zero token lifetime", mutate: func(c *Config) { c.AccessTokenExpireMinutes = 0 }, wantErr: true},
		{name: "zero window", mutate: func(c *Config) { c.Window = 0 }, wantErr: true},
		{name: "smtp credentials without host", mutate: func(c *Config) { c.SMTPUsername = "u" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadDatabase_IgnoresServerSettings(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://cli@db:5432/scout?sslmode=disable")
	t.Setenv("SECRET_KEY", "")

	db, err := LoadDatabase()
	require.NoError(t, err)
	assert.Equal(t, "postgres://cli@db:5432/scout?sslmode=disable", db.URL)
}
