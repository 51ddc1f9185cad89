package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SESSION_TTL", "")
	t.Setenv("COUPONS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, "INR", cfg.Currency)
	assert.Empty(t, cfg.Coupons)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("KAFKA_ADDR", "k1:9092,k2:9092")
	t.Setenv("COUPONS", "welcome:500, FESTIVE:1500")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, map[string]int64{"WELCOME": 500, "FESTIVE": 1500}, cfg.Coupons)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("GATEWAY_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("GATEWAY_TIMEOUT", "")
	t.Setenv("COUPONS", "NOAMOUNT")
	_, err = Load()
	assert.Error(t, err)
}
