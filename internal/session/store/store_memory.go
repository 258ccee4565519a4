package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"labgate/internal/session"
	id "labgate/pkg/domain"
	dErrors "labgate/pkg/domain-errors"
)

// InMemoryStore stores sessions in memory for tests/dev.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*session.Session
}

// NewInMemory constructs an empty in-memory session store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[id.SessionID]*session.Session)}
}

// ReplaceActive deactivates any active session for the same (admin, IP) pair
// and inserts the new record under one lock, so concurrent logins for the
// same admin cannot both create a session.
func (s *InMemoryStore) ReplaceActive(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.AdminID == sess.AdminID && existing.IPAddress == sess.IPAddress && existing.Active {
			existing.Deactivate()
		}
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, sessionID id.SessionID) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[sessionID]; ok {
		cp := *sess
		return &cp, nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
}

func (s *InMemoryStore) FindUsableByAdminIP(_ context.Context, adminID id.AdminID, ip string, now time.Time) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.AdminID == adminID && sess.IPAddress == ip && sess.IsUsable(now) {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "no usable session for admin at this IP")
}

func (s *InMemoryStore) ListByAdmin(_ context.Context, adminID id.AdminID) ([]*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*session.Session
	for _, sess := range s.sessions {
		if sess.AdminID == adminID {
			cp := *sess
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) UpdateUsage(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.sessions[sess.ID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	existing.LastUsageAt = sess.LastUsageAt
	existing.UsageCount = sess.UsageCount
	return nil
}

// DeactivateExpired marks expired sessions inactive as of the given time.
// The time parameter is injected for testability (no hidden time.Now() calls).
func (s *InMemoryStore) DeactivateExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, sess := range s.sessions {
		if sess.Active && sess.IsExpired(now) {
			sess.Deactivate()
			count++
		}
	}
	return count, nil
}

var _ Store = (*InMemoryStore)(nil)
