package app

import (
	"fmt"
	"log"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/jaakkos/promptbox/internal/domain"
)

// SubmissionService holds the submission list in memory and rewrites the backing
// record after every mutation. Memory only changes once the write has succeeded.
type SubmissionService struct {
	repo   SubmissionRepository
	logger *log.Logger
	intn   func(n int) int

	mu   sync.Mutex
	subs []domain.Submission
}

// SubmissionOption configures a SubmissionService.
type SubmissionOption func(*SubmissionService)

// WithIntn replaces the random index source used by RandomSubmission (default rand.IntN).
func WithIntn(intn func(n int) int) SubmissionOption {
	return func(s *SubmissionService) { s.intn = intn }
}

// NewSubmissionService loads the current submissions from repo. A load error means the
// backing record is unusable and the caller should not start.
func NewSubmissionService(repo SubmissionRepository, logger *log.Logger, opts ...SubmissionOption) (*SubmissionService, error) {
	subs, err := repo.Load()
	if err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}
	s := &SubmissionService{
		repo:   repo,
		logger: orDiscard(logger),
		intn:   rand.IntN,
		subs:   subs,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger.Printf("Loaded %d submissions", len(subs))
	return s, nil
}

// Submit stores text under category for owner. It returns false without writing
// when the same text already exists in any category.
func (s *SubmissionService) Submit(owner string, category domain.Category, text string) (bool, error) {
	if !category.Valid() {
		return false, fmt.Errorf("invalid category %q", category)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if domain.HasText(s.subs, text) {
		return false, nil
	}
	next := append(slices.Clip(s.subs), domain.Submission{Owner: owner, Category: category, Text: text})
	if err := s.repo.Save(next); err != nil {
		return false, fmt.Errorf("save submissions: %w", err)
	}
	s.subs = next
	s.logger.Printf("Submission added by %s in %s", owner, category)
	return true, nil
}

// Delete removes text. Privileged callers remove every entry with that text; others
// only remove their own. Returns true iff something was removed.
func (s *SubmissionService) Delete(owner, text string, privileged bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, removed := domain.Remove(s.subs, owner, text, privileged)
	if removed == 0 {
		return false, nil
	}
	if err := s.repo.Save(next); err != nil {
		return false, fmt.Errorf("save submissions: %w", err)
	}
	s.subs = next
	s.logger.Printf("Deleted %d submission(s) for %s (privileged=%v)", removed, owner, privileged)
	return true, nil
}

// RandomSubmission returns the text of a uniformly chosen submission under category,
// or domain.NoSubmissions when there is none. A nil category samples all submissions.
func (s *SubmissionService) RandomSubmission(category *domain.Category) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := domain.Filter(s.subs, category)
	if len(candidates) == 0 {
		return domain.NoSubmissions
	}
	return candidates[s.intn(len(candidates))].Text
}

// AllSubmissions renders every submission under category as one block.
func (s *SubmissionService) AllSubmissions(category *domain.Category) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Render(domain.Filter(s.subs, category))
}

// Count returns the number of submissions under category.
func (s *SubmissionService) Count(category *domain.Category) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(domain.Filter(s.subs, category))
}

// Snapshot returns a copy of the submission list.
func (s *SubmissionService) Snapshot() []domain.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.subs)
}
