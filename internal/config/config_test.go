package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 80.0, cfg.CreditAlertThresholdPct)
	assert.Equal(t, 30, cfg.DefaultPaymentTermsDays)
	assert.Equal(t, 4, cfg.StatementBatchConcurrency)
	assert.Equal(t, time.Hour, cfg.StatementSchedulerInterval)
	assert.Equal(t, 5*time.Second, cfg.EventDispatchInterval)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Empty(t, cfg.NotifyWebhookURL)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsBadThreshold(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CREDIT_ALERT_THRESHOLD_PCT", "150")

	_, err := Load()
	require.Error(t, err)
}
