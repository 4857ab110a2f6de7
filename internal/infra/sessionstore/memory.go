package sessionstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"medsign/internal/domain"
)

// MemoryStore is the in-process fallback for single-instance deployments. It
// enforces the same expiry semantics as the redis driver via explicit
// timestamp checks under one mutex, which also makes reveal-and-touch atomic.
type MemoryStore struct {
	mu       sync.Mutex
	cfg      Config
	now      func() time.Time
	sessions map[string]*memorySession
}

type memorySession struct {
	blob         []byte
	createdAt    time.Time
	expiresAt    time.Time
	lastActivity time.Time
}

func NewMemoryStore(cfg Config, now func() time.Time) (*MemoryStore, error) {
	if len(cfg.ServerSecret) == 0 {
		return nil, errors.New("session server secret is required")
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		cfg:      cfg.withDefaults(),
		now:      now,
		sessions: make(map[string]*memorySession),
	}, nil
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Unlock(_ context.Context, certificateID, userID, passphrase string, ttl time.Duration) error {
	blob, err := seal(deriveKey(s.cfg.ServerSecret, userID), []byte(passphrase))
	if err != nil {
		return err
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionKey(certificateID, userID)] = &memorySession{
		blob:         blob,
		createdAt:    now,
		expiresAt:    now.Add(s.cfg.clampTTL(ttl)),
		lastActivity: now,
	}
	return nil
}

func (s *MemoryStore) Touch(_ context.Context, certificateID, userID string) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.usable(sessionKey(certificateID, userID), now)
	if session == nil {
		// Absence is not an error; callers treat it as locked on next reveal.
		return nil
	}
	session.lastActivity = now
	return nil
}

func (s *MemoryStore) Reveal(_ context.Context, certificateID, userID string) (string, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.usable(sessionKey(certificateID, userID), now)
	if session == nil {
		return "", domain.ErrLocked
	}
	plaintext, err := unseal(deriveKey(s.cfg.ServerSecret, userID), session.blob)
	if err != nil {
		return "", err
	}
	session.lastActivity = now
	return string(plaintext), nil
}

func (s *MemoryStore) Lock(_ context.Context, certificateID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey(certificateID, userID))
	return nil
}

// usable returns the session only while both the absolute and inactivity
// windows hold; expired entries are removed on sight. Callers hold s.mu.
func (s *MemoryStore) usable(key string, now time.Time) *memorySession {
	session, ok := s.sessions[key]
	if !ok {
		return nil
	}
	if !now.Before(session.expiresAt) || now.Sub(session.lastActivity) >= s.cfg.InactivityTimeout {
		delete(s.sessions, key)
		return nil
	}
	return session
}
