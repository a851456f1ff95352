// Package app implements the registry use cases and defines ports (repository interfaces).
package app

import (
	"github.com/jaakkos/promptbox/internal/domain"
)

// SubmissionRepository loads and saves the full, ordered submission list.
// Implementations: internal/repository/flatfile and internal/repository/sqlite.
type SubmissionRepository interface {
	Load() ([]domain.Submission, error)
	Save([]domain.Submission) error
}

// RoleRepository loads and saves one allow-list of role ids, order preserved.
type RoleRepository interface {
	Load() ([]int64, error)
	Save([]int64) error
}
