package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STOREFRONT_GATEWAY_URL", "")
	t.Setenv("STOREFRONT_TOKEN", "")
	t.Setenv("STOREFRONT_TOKEN_FILE", filepath.Join(t.TempDir(), "missing"))
	t.Setenv("STOREFRONT_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.GatewayURL)
	assert.Equal(t, "", cfg.Token)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
}

func TestLoad_TokenFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sf", "token")
	require.NoError(t, SaveToken(path, "abc.def.ghi"))

	t.Setenv("STOREFRONT_GATEWAY_URL", "http://shop.local:9000")
	t.Setenv("STOREFRONT_TOKEN", "")
	t.Setenv("STOREFRONT_TOKEN_FILE", path)
	t.Setenv("STOREFRONT_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", cfg.Token)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
}

func TestLoad_EnvTokenWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, SaveToken(path, "from-file"))
	t.Setenv("STOREFRONT_TOKEN", "from-env")
	t.Setenv("STOREFRONT_TOKEN_FILE", path)
	t.Setenv("STOREFRONT_GATEWAY_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Token)
}

func TestLoad_RejectsRelativeURL(t *testing.T) {
	t.Setenv("STOREFRONT_GATEWAY_URL", "localhost")
	_, err := Load()
	require.Error(t, err)
}
