package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("DB_ADAPTER", "memory")

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, "8080", c.Port)
	require.Equal(t, 100, c.RateLimitMax)
	require.Equal(t, 15*time.Minute, c.RateLimitWindow)
	require.EqualValues(t, 5<<20, c.UploadMaxBytes)
	require.False(t, c.IsProduction())
}

func TestRateLimitOverrides(t *testing.T) {
	t.Setenv("DB_ADAPTER", "memory")
	t.Setenv("RATE_LIMIT_MAX", "42")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "60")

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, 42, c.RateLimitMax)
	require.Equal(t, time.Minute, c.RateLimitWindow)
}

func TestRateLimitRejectsGarbage(t *testing.T) {
	t.Setenv("DB_ADAPTER", "memory")
	t.Setenv("RATE_LIMIT_MAX", "lots")

	_, err := New()
	require.Error(t, err)
}

func TestProductionNeedsSecret(t *testing.T) {
	t.Setenv("DB_ADAPTER", "memory")
	t.Setenv("ENV", "production")

	_, err := New()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "a-real-secret")
	c, err := New()
	require.NoError(t, err)
	require.True(t, c.IsProduction())
}

func TestPostgresDSN(t *testing.T) {
	c := &Config{
		PostgresHost: "db.internal",
		PostgresUser: "app",
		PostgresDB:   "spendwise",
	}
	dsn, err := c.BuildPostgresDSN()
	require.NoError(t, err)
	require.Equal(t, "host=db.internal port=5432 user=app dbname=spendwise sslmode=disable", dsn)

	c.PostgresDSN = "postgres://u:p@h/db"
	dsn, err = c.BuildPostgresDSN()
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@h/db", dsn)
}

func TestInvalidPort(t *testing.T) {
	t.Setenv("DB_ADAPTER", "memory")
	t.Setenv("PORT", "http")

	_, err := New()
	require.Error(t, err)
}
