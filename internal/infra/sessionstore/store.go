// Package sessionstore holds certificate passphrases just long enough to sign
// without re-prompting. Passphrases are sealed with AES-GCM under a key
// derived from the server secret and the owning user; sessions obey both an
// absolute expiry and an inactivity window, and reveal-and-touch is atomic
// with respect to the expiry checks.
package sessionstore

import (
	"context"
	"time"
)

const (
	DefaultTTL               = 4 * time.Hour
	DefaultMaxTTL            = 12 * time.Hour
	DefaultInactivityTimeout = 30 * time.Minute
)

type Config struct {
	// ServerSecret keys the passphrase sealing KDF. Required.
	ServerSecret []byte

	DefaultTTL        time.Duration
	MaxTTL            time.Duration
	InactivityTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = DefaultTTL
	}
	if c.MaxTTL <= 0 || c.MaxTTL > DefaultMaxTTL {
		c.MaxTTL = DefaultMaxTTL
	}
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = DefaultInactivityTimeout
	}
	return c
}

func (c Config) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = c.DefaultTTL
	}
	if ttl > c.MaxTTL {
		ttl = c.MaxTTL
	}
	return ttl
}

// Store is the only holder of plaintext-recoverable passphrases in the
// system. Reveal is the single method allowed to return plaintext and
// refreshes the inactivity clock atomically with the expiry checks; absent or
// expired sessions surface as domain.ErrLocked, never as a transient error.
type Store interface {
	Unlock(ctx context.Context, certificateID, userID, passphrase string, ttl time.Duration) error
	Touch(ctx context.Context, certificateID, userID string) error
	Reveal(ctx context.Context, certificateID, userID string) (string, error)
	Lock(ctx context.Context, certificateID, userID string) error
}

func sessionKey(certificateID, userID string) string {
	return certificateID + "|" + userID
}
