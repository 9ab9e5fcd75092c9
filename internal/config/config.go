// Package config loads the storefront client configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	pkgconfig "github.com/Skotchmaster/storefront/pkg/config"
)

type Config struct {
	GatewayURL string
	Token      string
	TokenFile  string
	LogLevel   string
	Timeout    time.Duration
}

func Load() (*Config, error) {
	pkgconfig.LoadDotEnv()

	cfg := &Config{
		GatewayURL: pkgconfig.EnvDefault("STOREFRONT_GATEWAY_URL", "http://localhost:8080"),
		Token:      os.Getenv("STOREFRONT_TOKEN"),
		TokenFile:  pkgconfig.EnvDefault("STOREFRONT_TOKEN_FILE", defaultTokenFile()),
		LogLevel:   pkgconfig.EnvDefault("LOG_LEVEL", "warn"),
		Timeout:    pkgconfig.EnvDurationDefault("STOREFRONT_TIMEOUT", 15*time.Second),
	}
	if err := pkgconfig.MustNonEmpty(cfg.GatewayURL, "STOREFRONT_GATEWAY_URL"); err != nil {
		return nil, err
	}
	if u, err := url.Parse(cfg.GatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("STOREFRONT_GATEWAY_URL %q is not an absolute URL", cfg.GatewayURL)
	}
	if cfg.Token == "" && cfg.TokenFile != "" {
		tok, err := ReadToken(cfg.TokenFile)
		if err != nil {
			return nil, err
		}
		cfg.Token = tok
	}
	return cfg, nil
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "storefront", "token")
}

// ReadToken returns "" when the file does not exist.
func ReadToken(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func SaveToken(path, token string) error {
	if path == "" {
		return errors.New("no token file configured (STOREFRONT_TOKEN_FILE)")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}
