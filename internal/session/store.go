// Package session remembers which chat session belongs to a visitor so a
// reconnecting widget resumes the same backend conversation.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Store maps a visitor key to a session id. Load returns "" for unknown keys.
type Store interface {
	Load(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, key, sessionID string) error
}

// Record is the persisted form of a session binding.
type Record struct {
	SessionID string    `json:"session_id" yaml:"session_id"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

var errKeyRequired = errors.New("session: visitor key required")

func validate(key, sessionID string) error {
	if strings.TrimSpace(key) == "" {
		return errKeyRequired
	}
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("session: session id required")
	}
	return nil
}

// MemoryStore keeps bindings for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-process store. A zero ttl never expires.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Load(_ context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errKeyRequired
	}
	s.mu.RLock()
	rec, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return "", nil
	}
	if s.ttl > 0 && s.now().Sub(rec.UpdatedAt) > s.ttl {
		s.mu.Lock()
		delete(s.records, key)
		s.mu.Unlock()
		return "", nil
	}
	return rec.SessionID, nil
}

func (s *MemoryStore) Save(_ context.Context, key, sessionID string) error {
	if err := validate(key, sessionID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = Record{SessionID: sessionID, UpdatedAt: s.now().UTC()}
	return nil
}
