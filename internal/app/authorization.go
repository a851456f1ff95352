package app

import (
	"fmt"
	"log"
	"slices"
	"sync"

	"github.com/jaakkos/promptbox/internal/domain"
)

// AllowList is a persisted set of role ids. Insertion order is kept on disk but
// carries no meaning.
type AllowList struct {
	name   domain.RoleList
	repo   RoleRepository
	logger *log.Logger

	mu    sync.Mutex
	roles []int64
}

// NewAllowList loads the list from repo.
func NewAllowList(name domain.RoleList, repo RoleRepository, logger *log.Logger) (*AllowList, error) {
	roles, err := repo.Load()
	if err != nil {
		return nil, fmt.Errorf("load %s roles: %w", name, err)
	}
	l := &AllowList{name: name, repo: repo, logger: orDiscard(logger), roles: dedupe(roles)}
	l.logger.Printf("Loaded %d %s role(s)", len(l.roles), name)
	return l, nil
}

// Name returns which allow-list this is.
func (l *AllowList) Name() domain.RoleList { return l.name }

// AddRole adds id and persists. Returns false when id was already present.
func (l *AllowList) AddRole(id int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if slices.Contains(l.roles, id) {
		return false, nil
	}
	next := append(slices.Clip(l.roles), id)
	if err := l.repo.Save(next); err != nil {
		return false, fmt.Errorf("save %s roles: %w", l.name, err)
	}
	l.roles = next
	l.logger.Printf("Role %d added to %s list", id, l.name)
	return true, nil
}

// RemoveRole removes id and persists. Returns false when id was not present.
func (l *AllowList) RemoveRole(id int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := slices.Index(l.roles, id)
	if i < 0 {
		return false, nil
	}
	next := slices.Delete(slices.Clone(l.roles), i, i+1)
	if err := l.repo.Save(next); err != nil {
		return false, fmt.Errorf("save %s roles: %w", l.name, err)
	}
	l.roles = next
	l.logger.Printf("Role %d removed from %s list", id, l.name)
	return true, nil
}

// Check reports whether any of candidates is on the list.
func (l *AllowList) Check(candidates []int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.Intersects(l.roles, candidates)
}

// Roles returns a copy of the list.
func (l *AllowList) Roles() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.roles)
}

// Reload replaces the in-memory list with the backing record. On error the current
// list is kept. The lock is held across the read so a concurrent Add or Remove
// cannot be overwritten by a stale copy.
func (l *AllowList) Reload() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	roles, err := l.repo.Load()
	if err != nil {
		return fmt.Errorf("reload %s roles: %w", l.name, err)
	}
	l.roles = dedupe(roles)
	return nil
}

// AuthorizationRegistry pairs the admin-delete and can-submit allow-lists.
type AuthorizationRegistry struct {
	Admin  *AllowList
	Submit *AllowList
}

// NewAuthorizationRegistry loads both allow-lists.
func NewAuthorizationRegistry(admin, submit RoleRepository, logger *log.Logger) (*AuthorizationRegistry, error) {
	a, err := NewAllowList(domain.RoleListAdmin, admin, logger)
	if err != nil {
		return nil, err
	}
	s, err := NewAllowList(domain.RoleListSubmit, submit, logger)
	if err != nil {
		return nil, err
	}
	return &AuthorizationRegistry{Admin: a, Submit: s}, nil
}

// IsAdmin reports whether roles grant privileged delete.
func (r *AuthorizationRegistry) IsAdmin(roles []int64) bool { return r.Admin.Check(roles) }

// CanSubmit reports whether roles grant submission.
func (r *AuthorizationRegistry) CanSubmit(roles []int64) bool { return r.Submit.Check(roles) }

// List returns the allow-list called name, or nil.
func (r *AuthorizationRegistry) List(name domain.RoleList) *AllowList {
	switch name {
	case domain.RoleListAdmin:
		return r.Admin
	case domain.RoleListSubmit:
		return r.Submit
	}
	return nil
}

// dedupe drops repeated ids, keeping the first occurrence.
func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
