// Package repository builds the storage ports for the configured backend.
package repository

import (
	"fmt"

	"github.com/jaakkos/promptbox/internal/app"
	"github.com/jaakkos/promptbox/internal/domain"
	"github.com/jaakkos/promptbox/internal/ownercipher"
	"github.com/jaakkos/promptbox/internal/policy"
	"github.com/jaakkos/promptbox/internal/repository/flatfile"
	"github.com/jaakkos/promptbox/internal/repository/sqlite"
)

// Set is the storage for one running bot.
type Set struct {
	Submissions app.SubmissionRepository
	AdminRoles  app.RoleRepository
	SubmitRoles app.RoleRepository

	// RoleFiles maps a role file path to its list name. Empty unless the
	// backend is flatfile; used to wire the role file watcher.
	RoleFiles map[string]domain.RoleList

	closer func() error
}

// Close releases backend resources. Safe to call on a Set without any.
func (s *Set) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// Open returns repositories for pol.Backend(), using cipher for owner tokens.
func Open(pol *policy.Policy, cipher *ownercipher.Cipher) (*Set, error) {
	switch pol.Backend() {
	case policy.BackendFlatfile:
		return OpenFlatfile(pol, cipher), nil
	case policy.BackendSQLite:
		return OpenSQLite(pol.SQLiteFile(), cipher)
	default:
		return nil, fmt.Errorf("unknown backend %q", pol.Backend())
	}
}

// OpenFlatfile returns the line-oriented text file repositories.
func OpenFlatfile(pol *policy.Policy, cipher *ownercipher.Cipher) *Set {
	return &Set{
		Submissions: flatfile.NewSubmissionFile(pol.SubmissionsFile(), cipher),
		AdminRoles:  flatfile.NewRoleFile(pol.AdminRolesFile()),
		SubmitRoles: flatfile.NewRoleFile(pol.SubmitRolesFile()),
		RoleFiles: map[string]domain.RoleList{
			pol.AdminRolesFile():  domain.RoleListAdmin,
			pol.SubmitRolesFile(): domain.RoleListSubmit,
		},
	}
}

// OpenSQLite returns repositories backed by the SQLite database at path.
func OpenSQLite(path string, cipher *ownercipher.Cipher) (*Set, error) {
	store, err := sqlite.New(path, cipher)
	if err != nil {
		return nil, err
	}
	return &Set{
		Submissions: store.Submissions(),
		AdminRoles:  store.Roles(domain.RoleListAdmin),
		SubmitRoles: store.Roles(domain.RoleListSubmit),
		closer:      store.Close,
	}, nil
}

// Migrate copies every submission and both allow-lists from src to dst,
// replacing whatever dst held. It returns the number of submissions copied.
func Migrate(src, dst *Set) (int, error) {
	subs, err := src.Submissions.Load()
	if err != nil {
		return 0, fmt.Errorf("load submissions: %w", err)
	}
	admin, err := src.AdminRoles.Load()
	if err != nil {
		return 0, fmt.Errorf("load admin roles: %w", err)
	}
	submit, err := src.SubmitRoles.Load()
	if err != nil {
		return 0, fmt.Errorf("load submit roles: %w", err)
	}

	if err := dst.Submissions.Save(subs); err != nil {
		return 0, fmt.Errorf("save submissions: %w", err)
	}
	if err := dst.AdminRoles.Save(admin); err != nil {
		return 0, fmt.Errorf("save admin roles: %w", err)
	}
	if err := dst.SubmitRoles.Save(submit); err != nil {
		return 0, fmt.Errorf("save submit roles: %w", err)
	}
	return len(subs), nil
}
