// Package config loads service configuration from MEDSIGN_* environment
// variables.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ListenAddr  string
	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// SessionSecretBase64 seals passphrase sessions; when empty the secret is
	// read from Vault instead.
	SessionSecretBase64 string
	VaultAddr           string
	VaultToken          string
	VaultSecretPath     string

	SessionDefaultTTL        time.Duration
	SessionMaxTTL            time.Duration
	SessionInactivityTimeout time.Duration

	PolicyBundlePath string
	PolicyBundleID   string

	PlaceholderCapacity int

	VerifyRateLimit  int
	VerifyRateWindow time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		ListenAddr:          getEnv("MEDSIGN_LISTEN_ADDR", ":8080"),
		DatabaseDSN:         os.Getenv("MEDSIGN_DATABASE_DSN"),
		RedisAddr:           os.Getenv("MEDSIGN_REDIS_ADDR"),
		RedisPassword:       os.Getenv("MEDSIGN_REDIS_PASSWORD"),
		SessionSecretBase64: os.Getenv("MEDSIGN_SESSION_SECRET_BASE64"),
		VaultAddr:           os.Getenv("MEDSIGN_VAULT_ADDR"),
		VaultToken:          os.Getenv("MEDSIGN_VAULT_TOKEN"),
		VaultSecretPath:     getEnv("MEDSIGN_VAULT_SECRET_PATH", "secret/data/medsign/session"),
		PolicyBundlePath:    os.Getenv("MEDSIGN_POLICY_BUNDLE_PATH"),
		PolicyBundleID:      os.Getenv("MEDSIGN_POLICY_BUNDLE_ID"),
	}

	var err error
	if cfg.RedisDB, err = getInt("MEDSIGN_REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.SessionDefaultTTL, err = getDuration("MEDSIGN_SESSION_TTL", 4*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SessionMaxTTL, err = getDuration("MEDSIGN_SESSION_MAX_TTL", 12*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SessionInactivityTimeout, err = getDuration("MEDSIGN_SESSION_INACTIVITY_TIMEOUT", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.PlaceholderCapacity, err = getInt("MEDSIGN_PLACEHOLDER_CAPACITY", 8192); err != nil {
		return Config{}, err
	}
	if cfg.VerifyRateLimit, err = getInt("MEDSIGN_VERIFY_RATE_LIMIT", 60); err != nil {
		return Config{}, err
	}
	if cfg.VerifyRateWindow, err = getDuration("MEDSIGN_VERIFY_RATE_WINDOW", time.Minute); err != nil {
		return Config{}, err
	}

	// The ceiling is a hard property of the session model, never raisable by
	// configuration.
	if cfg.SessionMaxTTL > 12*time.Hour {
		cfg.SessionMaxTTL = 12 * time.Hour
	}
	if cfg.SessionDefaultTTL > cfg.SessionMaxTTL {
		cfg.SessionDefaultTTL = cfg.SessionMaxTTL
	}
	return cfg, nil
}

// SessionSecret decodes the configured sealing secret, if set in the
// environment.
func (c Config) SessionSecret() ([]byte, error) {
	if c.SessionSecretBase64 == "" {
		return nil, nil
	}
	secret, err := base64.StdEncoding.DecodeString(c.SessionSecretBase64)
	if err != nil {
		return nil, fmt.Errorf("MEDSIGN_SESSION_SECRET_BASE64: %w", err)
	}
	return secret, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return parsed, nil
}
