package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "RECORD_STORE_DRIVER", "RECORD_STORE_API_KEY",
		"RECORD_STORE_SQLITE_PATH", "RECORD_STORE_TIMEOUT", "SESSION_BACKEND", "REDIS_ADDR",
		"REDIS_PASSWORD", "REDIS_DB", "SESSION_TTL", "SESSION_SWEEP_INTERVAL",
		"WEBHOOK_TIMEOUT", "MENU_VARIANT", "TIMEZONE", "ESCALATION_EVENT", "LANGUAGE_CODE",
		"RATE_LIMIT_PER_MINUTE", "CHAT_WS_ENABLED", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("RECORD_STORE_URL", "https://sheet.best/api/sheets/abc")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, 9*time.Second, cfg.Server.WebhookTimeout)
	assert.Equal(t, 120, cfg.Server.RateLimitPerMinute)
	assert.True(t, cfg.Server.ChatWSEnabled)
	assert.Empty(t, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, StoreDriverHTTP, cfg.Store.Driver)
	assert.Equal(t, 8*time.Second, cfg.Store.Timeout)
	assert.Equal(t, SessionBackendMemory, cfg.Session.Backend)
	assert.Equal(t, 15*time.Minute, cfg.Session.TTL)
	assert.Equal(t, time.Minute, cfg.Session.SweepInterval)
	assert.Equal(t, "classic", cfg.Dialogue.MenuVariant)
	assert.Equal(t, "America/Sao_Paulo", cfg.Dialogue.Location.String())
	assert.Equal(t, "pt-BR", cfg.Dialogue.LanguageCode)
	assert.Len(t, cfg.Dialogue.Menu().Options, 4)
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "127.0.0.1:8080")
	t.Setenv("RECORD_STORE_DRIVER", "SQLite")
	t.Setenv("RECORD_STORE_SQLITE_PATH", "/tmp/records.db")
	t.Setenv("SESSION_BACKEND", "redis")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("SESSION_TTL", "900")
	t.Setenv("WEBHOOK_TIMEOUT", "5s")
	t.Setenv("MENU_VARIANT", "faq")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("CHAT_WS_ENABLED", "false")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://intranet.example.com, ,https://widget.example.com ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, StoreDriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/tmp/records.db", cfg.Store.SQLitePath)
	assert.Equal(t, SessionBackendRedis, cfg.Session.Backend)
	assert.Equal(t, 2, cfg.Session.RedisDB)
	assert.Equal(t, 15*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 5*time.Second, cfg.Server.WebhookTimeout)
	assert.False(t, cfg.Server.ChatWSEnabled)
	assert.Zero(t, cfg.Server.RateLimitPerMinute)
	assert.Equal(t, []string{"https://intranet.example.com", "https://widget.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, time.UTC, cfg.Dialogue.Location)
	assert.Len(t, cfg.Dialogue.Menu().Options, 5)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]struct {
		key, value string
	}{
		"port with space":   {"PORT", "30 00"},
		"port not a number": {"PORT", "abc"},
		"store driver":      {"RECORD_STORE_DRIVER", "postgres"},
		"session backend":   {"SESSION_BACKEND", "memcached"},
		"ttl":               {"SESSION_TTL", "soon"},
		"negative timeout":  {"WEBHOOK_TIMEOUT", "-1s"},
		"redis db":          {"REDIS_DB", "one"},
		"menu variant":      {"MENU_VARIANT", "vip"},
		"timezone":          {"TIMEZONE", "Mars/Olympus"},
		"ws flag":           {"CHAT_WS_ENABLED", "maybe"},
		"rate limit":        {"RATE_LIMIT_PER_MINUTE", "-5"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.key)
		})
	}
}

func TestLoadRequiresURLForHTTPDriver(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RECORD_STORE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECORD_STORE_URL")
}
