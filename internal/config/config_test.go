package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesOverrides(t *testing.T) {
	t.Setenv("GYM_API_BASE_URL", "https://gym.example.com/")
	t.Setenv("GYM_HTTP_TIMEOUT", "5s")
	t.Setenv("GYM_PAGE_SIZE", "15")
	t.Setenv("SESSION_BACKEND", "Redis")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")

	cfg := Load()

	require.Equal(t, "https://gym.example.com", cfg.APIBaseURL)
	require.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	require.Equal(t, 15, cfg.PageSize)
	require.Equal(t, "redis", cfg.SessionBackend)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestLoadDefaultsAndClamp(t *testing.T) {
	t.Setenv("GYM_PAGE_SIZE", "500")
	t.Setenv("GYM_HTTP_TIMEOUT", "not-a-duration")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()

	require.Equal(t, 20, cfg.PageSize)
	require.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	require.Empty(t, cfg.KafkaBrokers)
	require.NotEmpty(t, cfg.SessionFile)
}

func TestClampPageSize(t *testing.T) {
	require.Equal(t, 10, clampPageSize(0))
	require.Equal(t, 12, clampPageSize(12))
	require.Equal(t, 20, clampPageSize(21))
}
