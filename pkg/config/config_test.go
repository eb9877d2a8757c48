package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("JWT_ISSUER", "session-auth")
	t.Setenv("JWT_ACCESS_TTL", "300s")
	t.Setenv("JWT_REFRESH_TTL", "24h")
	t.Setenv("DB_REPLICA_HOST", "replica.internal")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, cfg.JWT.AccessTTL)
	assert.Equal(t, 24*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, "session-auth", cfg.JWT.Issuer)
	assert.Equal(t, "replica.internal", cfg.Replica.Host)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5, cfg.RateLimit.LoginMaxAttempts)
}

func TestLoadRejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "too-short")
	t.Setenv("JWT_ISSUER", "session-auth")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadRejectsUnparseableTTL(t *testing.T) {
	for _, key := range []string{"JWT_ACCESS_TTL", "JWT_REFRESH_TTL", "LOGIN_ATTEMPT_WINDOW", "STORE_SERVICE_TIMEOUT"} {
		for _, raw := range []string{"300", "abc", "5 minutes"} {
			t.Run(key+"="+raw, func(t *testing.T) {
				t.Setenv("JWT_SECRET", testSecret)
				t.Setenv("JWT_ISSUER", "session-auth")
				t.Setenv(key, raw)

				cfg, err := Load()
				require.Error(t, err)
				assert.Nil(t, cfg)
				assert.Contains(t, err.Error(), key)
			})
		}
	}
}

func TestLoadUsesDefaultDurationsWhenUnset(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("JWT_ISSUER", "session-auth")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTTL)
	assert.Equal(t, 5*time.Second, cfg.StoreService.Timeout)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port: 8080,
			JWT: JWTConfig{
				Secret:     testSecret,
				Issuer:     "session-auth",
				AccessTTL:  time.Minute,
				RefreshTTL: time.Hour,
			},
		}
	}

	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"missing issuer":   func(c *Config) { c.JWT.Issuer = "" },
		"zero access ttl":  func(c *Config) { c.JWT.AccessTTL = 0 },
		"negative refresh": func(c *Config) { c.JWT.RefreshTTL = -time.Second },
		"short secret":     func(c *Config) { c.JWT.Secret = testSecret[:31] },
		"negative attempts": func(c *Config) {
			c.RateLimit.LoginMaxAttempts = -1
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
