package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresCoreSettings(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379",
		"JWT_SECRET":   "secret",
	})
	require.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":      "postgres://localhost:5432/bughaw",
		"REDIS_URL":         "redis://localhost:6379",
		"JWT_SECRET":        "secret",
		"PORT":              "",
		"ACCESS_TOKEN_TTL":  "",
		"LOGIN_RATE_LIMIT":  "",
		"LOW_STOCK_THRESHOLD": "",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, 10, cfg.LoginRateLimit)
	require.Equal(t, 20, cfg.LowStockThreshold)
}

func TestLoadParsesOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":        "postgres://localhost:5432/bughaw",
		"REDIS_URL":           "redis://localhost:6379",
		"JWT_SECRET":          "secret",
		"PORT":                "9090",
		"ACCESS_TOKEN_TTL":    "1h",
		"LOGIN_RATE_WINDOW":   "30s",
		"LOW_STOCK_THRESHOLD": "5",
		"CORS_ALLOWED_ORIGINS": "https://pos.bughaw.ph, https://admin.bughaw.ph",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, time.Hour, cfg.AccessTokenTTL)
	require.Equal(t, 30*time.Second, cfg.LoginRateWindow)
	require.Equal(t, 5, cfg.LowStockThreshold)
	require.Equal(t, []string{"https://pos.bughaw.ph", "https://admin.bughaw.ph"}, cfg.CORSAllowedOrigins)
}
