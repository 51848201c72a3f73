package membership

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/okian/vnclub/internal/domain/model"
)

// Memory keeps role assignments in process. Members must be added with
// Join before their roles can be read or changed.
type Memory struct {
	mu    sync.RWMutex
	roles map[string]map[string][]string // community -> member -> roles
}

// NewMemory creates an empty in-memory membership directory.
func NewMemory() *Memory {
	return &Memory{roles: make(map[string]map[string][]string)}
}

// Join registers member in community with the given roles.
func (m *Memory) Join(communityID, memberID string, roles ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.roles[communityID]
	if !ok {
		members = make(map[string][]string)
		m.roles[communityID] = members
	}
	members[memberID] = slices.Clone(roles)
}

// Roles implements the membership collaborator.
func (m *Memory) Roles(_ context.Context, communityID, memberID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	roles, ok := m.roles[communityID][memberID]
	if !ok {
		return nil, fmt.Errorf("community %s member %s: %w", communityID, memberID, model.ErrMemberNotFound)
	}
	return slices.Clone(roles), nil
}

// Grant implements the membership collaborator.
func (m *Memory) Grant(_ context.Context, communityID, memberID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	roles, ok := m.roles[communityID][memberID]
	if !ok {
		return fmt.Errorf("community %s member %s: %w", communityID, memberID, model.ErrMemberNotFound)
	}
	if !slices.Contains(roles, roleID) {
		m.roles[communityID][memberID] = append(roles, roleID)
	}
	return nil
}

// Revoke implements the membership collaborator.
func (m *Memory) Revoke(_ context.Context, communityID, memberID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	roles, ok := m.roles[communityID][memberID]
	if !ok {
		return fmt.Errorf("community %s member %s: %w", communityID, memberID, model.ErrMemberNotFound)
	}
	m.roles[communityID][memberID] = slices.DeleteFunc(roles, func(r string) bool { return r == roleID })
	return nil
}
