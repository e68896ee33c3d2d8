package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORTONE_API_SECRET", "portone-secret")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "KRW", cfg.Currency)
	assert.Equal(t, "https://api.portone.io", cfg.PortOneBaseURL)
	assert.Equal(t, 5*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 30*time.Minute, cfg.PendingTTL)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORTONE_API_SECRET", "portone-secret")
	t.Setenv("PORT", "9090")
	t.Setenv("PENDING_TTL", "15m")
	t.Setenv("DATABASE_URL", "postgres://app:app@db:5432/storefront")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.PendingTTL)
	assert.Equal(t, "postgres://app:app@db:5432/storefront", cfg.DatabaseURL)
}

func TestLoad_RequiredSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PORTONE_API_SECRET", "portone-secret")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORTONE_API_SECRET", "")

	_, err = Load()
	assert.Error(t, err)
}
