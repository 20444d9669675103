package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/sundaybox/weekplanner/internal/errors"
)

// Manager is the in-memory session registry, used when no Redis is
// configured.
type Manager struct {
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	mu       sync.RWMutex
}

// NewManager creates a new in-memory session registry with the given TTL.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create issues a fresh unique token expiring one TTL from now.
func (m *Manager) Create(ctx context.Context, owner, deviceInfo string) (*Session, error) {
	now := m.now()
	s := &Session{
		Token:      uuid.NewString(),
		Owner:      owner,
		DeviceInfo: deviceInfo,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.ttl),
		LastActive: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = s

	copied := *s
	return &copied, nil
}

// Validate returns the session if the token exists and has not expired.
func (m *Manager) Validate(ctx context.Context, token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[token]
	if !ok || !m.now().Before(s.ExpiresAt) {
		return nil, apperrors.ErrSessionNotFound
	}

	copied := *s
	return &copied, nil
}

// Touch updates last_active only; expiry is a hard lifetime.
func (m *Manager) Touch(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok || !m.now().Before(s.ExpiresAt) {
		return apperrors.ErrSessionNotFound
	}
	s.LastActive = m.now()
	return nil
}

// AttachPlan binds the session to a plan so another device can resume it.
func (m *Manager) AttachPlan(ctx context.Context, token string, planID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok || !m.now().Before(s.ExpiresAt) {
		return apperrors.ErrSessionNotFound
	}
	s.PlanID = planID
	return nil
}

// Sweep deletes every expired session and returns the count removed.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for token, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, token)
			removed++
		}
	}
	return removed, nil
}

// Close releases nothing for the in-memory registry.
func (m *Manager) Close() error {
	return nil
}
