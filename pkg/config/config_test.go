package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cr3t")
	t.Setenv("JWT_KEY_ID", "k2")
	t.Setenv("JWT_PREVIOUS_SECRET", "old")
	t.Setenv("JWT_PREVIOUS_KEY_ID", "k1")
	t.Setenv("JWT_PREVIOUS_VALID_UNTIL", "2026-06-01T12:00:00Z")
	t.Setenv("JWT_MAX_SESSION_MINUTES", "120")
	t.Setenv("AUDIT_SEND_TIMEOUT_MS", "250")
	t.Setenv("JWT_EXPIRATION_MINUTES", "15")
	t.Setenv("REVOCATION_BACKEND", "Redis")
	t.Setenv("REVOCATION_ENABLED", "false")
	t.Setenv("AUTH_STORE_TIMEOUT_MS", "500")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "k2", cfg.JWT.KeyID)
	assert.Equal(t, 15*time.Minute, cfg.JWT.TTL())
	assert.Equal(t, RevocationRedis, cfg.Revocation.Backend)
	assert.False(t, cfg.Revocation.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Auth.StoreTimeout())
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())

	until, err := cfg.JWT.PreviousUntil()
	require.NoError(t, err)
	assert.True(t, time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC).Equal(until))
	assert.Equal(t, 2*time.Hour, cfg.JWT.MaxSessionAge())
	assert.Equal(t, 250*time.Millisecond, cfg.Audit.SendTimeout())
	assert.Equal(t, "auth.recovery", cfg.Audit.RecoveryQueue)
	assert.Equal(t, 30*time.Minute, cfg.Recovery.TTL())
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			JWT:        JWTConfig{Secret: "s", KeyID: "k1", Expiration: 15, RotationGrace: 5},
			Auth:       AuthConfig{StoreTimeoutMS: 100},
			Revocation: RevocationConfig{Backend: RevocationMemory},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "ttl cero", mutate: func(c *Config) { c.JWT.Expiration = 0 }, errMsg: "JWT_EXPIRATION_MINUTES"},
		{name: "previous sin id", mutate: func(c *Config) { c.JWT.PreviousSecret = "x" }, errMsg: "JWT_PREVIOUS"},
		{name: "previous mismo id", mutate: func(c *Config) { c.JWT.PreviousSecret, c.JWT.PreviousKeyID = "x", "k1" }, errMsg: "debe diferir"},
		{name: "previous sin plazo", mutate: func(c *Config) { c.JWT.PreviousSecret, c.JWT.PreviousKeyID = "x", "k0" }, errMsg: "JWT_PREVIOUS_VALID_UNTIL"},
		{name: "previous con plazo", mutate: func(c *Config) {
			c.JWT.PreviousSecret, c.JWT.PreviousKeyID, c.JWT.PreviousValidUntil = "x", "k0", "2026-06-01T12:00:00Z"
		}},
		{name: "plazo ilegible", mutate: func(c *Config) { c.JWT.PreviousValidUntil = "mañana" }, errMsg: "JWT_PREVIOUS_VALID_UNTIL"},
		{name: "edad máxima negativa", mutate: func(c *Config) { c.JWT.MaxSessionMinutes = -1 }, errMsg: "JWT_MAX_SESSION_MINUTES"},
		{name: "backend desconocido", mutate: func(c *Config) { c.Revocation.Backend = "memcached" }, errMsg: "REVOCATION_BACKEND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDSN_EscapesPassword(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss/word", DBName: "voter_auth", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%2Fword@db:5432/voter_auth?sslmode=disable", c.ConnectionString())

	c.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", c.ConnectionString())
}
