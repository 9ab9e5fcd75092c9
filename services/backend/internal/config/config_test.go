package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "http://localhost:9000/assets", cfg.StorageURL)
	assert.Equal(t, 24*time.Hour, cfg.AccessTTL)
	assert.Equal(t, "local", cfg.StorageDisk)
}

func TestLoadMissing(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "database", env: map[string]string{"JWT_SECRET": "s"}, want: "DATABASE_URL"},
		{name: "secret", env: map[string]string{"DATABASE_URL": "x"}, want: "JWT_SECRET"},
		{name: "bucket", env: map[string]string{"DATABASE_URL": "x", "JWT_SECRET": "s", "STORAGE_DISK": "s3"}, want: "S3_BUCKET"},
		{name: "ttl", env: map[string]string{"DATABASE_URL": "x", "JWT_SECRET": "s", "ACCESS_TOKEN_TTL": "-1m"}, want: "ACCESS_TOKEN_TTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"DATABASE_URL", "JWT_SECRET", "STORAGE_DISK", "S3_BUCKET", "ACCESS_TOKEN_TTL"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
