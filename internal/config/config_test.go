package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setLocalEnv(t *testing.T) {
	t.Helper()

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("PAYMENT_DRIVER", "sandbox")
	t.Setenv("EVENTS_DRIVER", "log")
}

func TestNew_Defaults(t *testing.T) {
	setLocalEnv(t)

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Booking.PendingTTL)
	assert.Equal(t, 10*time.Second, cfg.Booking.PendingGateTTL)
	assert.Equal(t, 30*time.Second, cfg.Booking.SweepInterval)
	assert.Equal(t, 3, cfg.Booking.ReserveMaxRetries)
	assert.Equal(t, int64(80), cfg.Booking.RefundPercent)
	assert.Equal(t, 24*time.Hour, cfg.Booking.CancelCutoff)
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without credentials", map[string]string{"STORAGE_DRIVER": "postgres"}},
		{"unknown storage", map[string]string{"STORAGE_DRIVER": "sqlite"}},
		{"omise without keys", map[string]string{"PAYMENT_DRIVER": "omise"}},
		{"amqp without url", map[string]string{"EVENTS_DRIVER": "amqp"}},
		{"kafka without brokers", map[string]string{"EVENTS_DRIVER": "kafka"}},
		{"refund above 100", map[string]string{"REFUND_PERCENT": "120"}},
		{"bad duration", map[string]string{"PENDING_TTL": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setLocalEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := New()
			assert.Error(t, err)
		})
	}

	t.Run("missing jwt secret", func(t *testing.T) {
		setLocalEnv(t)
		t.Setenv("JWT_SECRET", "")
		require.NoError(t, os.Unsetenv("JWT_SECRET"))

		_, err := New()
		assert.Error(t, err)
	})
}

func TestNew_PolicyFile(t *testing.T) {
	setLocalEnv(t)

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("refund_percent: 50\ncancel_cutoff: 12h\n"), 0o600))
	t.Setenv("POLICY_FILE", path)

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, int64(50), cfg.Booking.RefundPercent)
	assert.Equal(t, 12*time.Hour, cfg.Booking.CancelCutoff)
	assert.Equal(t, 15*time.Minute, cfg.Booking.PendingTTL, "absent keys keep env values")

	require.NoError(t, os.WriteFile(path, []byte("refund_percent: 150\n"), 0o600))
	_, err = New()
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	c := PostgresConfig{User: "app", Password: "p@ss", Name: "courts", Host: "db", Port: 5432, SSLMode: "disable"}

	assert.Equal(t, "postgres://app:p%40ss@db:5432/courts?sslmode=disable", c.DSN())
}
