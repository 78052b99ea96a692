package config

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
	t.Setenv("PASSWORD_PEPPER", "pepper")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTRefreshTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, 5, cfg.LoginMaxAttempts)
	assert.Equal(t, 30*time.Minute, cfg.LoginLockoutWindow)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.False(t, cfg.SessionRevokeScan)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.TrustedProxies)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOGIN_MAX_ATTEMPTS", "3")
	t.Setenv("LOGIN_LOCKOUT_WINDOW", "10m")
	t.Setenv("SESSION_REVOKE_SCAN", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("BCRYPT_COST", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 3, cfg.LoginMaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.LoginLockoutWindow)
	assert.True(t, cfg.SessionRevokeScan)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 12, cfg.BcryptCost, "unparsable values fall back to the default")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		errMsg string
	}{
		{name: "missing access secret", env: map[string]string{"JWT_SECRET": ""}, errMsg: "JWT_SECRET is required"},
		{name: "missing refresh secret", env: map[string]string{"JWT_REFRESH_SECRET": ""}, errMsg: "JWT_REFRESH_SECRET is required"},
		{name: "equal secrets", env: map[string]string{"JWT_REFRESH_SECRET": "access-secret"}, errMsg: "must differ"},
		{name: "missing pepper", env: map[string]string{"PASSWORD_PEPPER": ""}, errMsg: "PASSWORD_PEPPER"},
		{name: "access ttl not shorter", env: map[string]string{"JWT_ACCESS_TTL": "200h"}, errMsg: "shorter"},
		{name: "bcrypt cost too high", env: map[string]string{"BCRYPT_COST": "40"}, errMsg: "BCRYPT_COST"},
		{name: "bad log format", env: map[string]string{"LOG_FORMAT": "xml"}, errMsg: "LOG_FORMAT"},
		{name: "pool bounds", env: map[string]string{"DB_MIN_CONNS": "20"}, errMsg: "DB_MIN_CONNS"},
		{name: "bad trusted proxy", env: map[string]string{"TRUSTED_PROXIES": "10.0.0.0/8, proxy.local"}, errMsg: "TRUSTED_PROXIES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadTrustedProxies(t *testing.T) {
	setRequired(t)
	t.Setenv("TRUSTED_PROXIES", "10.1.2.3/8, 192.0.2.10, ::ffff:198.51.100.1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.10/32"),
		netip.MustParsePrefix("198.51.100.1/32"),
	}, cfg.TrustedProxies)
}
