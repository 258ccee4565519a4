// Package store provides admin profile persistence behind login.AdminStore.
package store

import (
	"context"
	"strings"
	"sync"

	"labgate/internal/login"
	dErrors "labgate/pkg/domain-errors"
)

// InMemoryAdminStore stores admin profiles in memory for tests/dev.
type InMemoryAdminStore struct {
	mu     sync.RWMutex
	admins map[string]*login.Admin // keyed by lowercase username
}

// NewInMemory constructs an empty in-memory admin store.
func NewInMemory() *InMemoryAdminStore {
	return &InMemoryAdminStore{admins: make(map[string]*login.Admin)}
}

func (s *InMemoryAdminStore) FindByUsername(_ context.Context, username string) (*login.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if admin, ok := s.admins[strings.ToLower(username)]; ok {
		cp := *admin
		return &cp, nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "admin not found")
}

func (s *InMemoryAdminStore) Upsert(_ context.Context, admin *login.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *admin
	s.admins[strings.ToLower(admin.Username)] = &cp
	return nil
}

var _ login.AdminStore = (*InMemoryAdminStore)(nil)
