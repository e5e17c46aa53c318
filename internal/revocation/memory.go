// Package revocation holds the set of session tokens revoked before their
// natural expiry.
package revocation

import (
	"context"
	"sync"
	"time"

	"github.com/chaisthra/vibetrack/internal/model"
)

var _ model.RevocationStore = (*Memory)(nil)

// Memory is a thread-safe in-memory revocation set. Entries remember the
// token's natural expiry so Cleanup can drop them once verification would
// reject the token anyway.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewMemory creates an empty revocation set.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]time.Time),
	}
}

// Revoke adds tokenID. Revoking the same ID again is a no-op.
func (m *Memory) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[tokenID]; !ok {
		m.entries[tokenID] = expiresAt
	}
	return nil
}

// IsRevoked checks whether tokenID has been revoked.
func (m *Memory) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[tokenID]
	return ok, nil
}

// Cleanup removes entries whose token expired at or before now.
func (m *Memory) Cleanup(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for tokenID, expiresAt := range m.entries {
		if !now.Before(expiresAt) {
			delete(m.entries, tokenID)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
