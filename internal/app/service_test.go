package app

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/jaakkos/promptbox/internal/domain"
)

type memSubmissionRepo struct {
	mu      sync.Mutex
	subs    []domain.Submission
	saves   int
	saveErr error
	loadErr error
}

func (r *memSubmissionRepo) Load() ([]domain.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return slices.Clone(r.subs), nil
}

func (r *memSubmissionRepo) Save(subs []domain.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.subs = slices.Clone(subs)
	r.saves++
	return nil
}

func newTestService(t *testing.T, repo *memSubmissionRepo, opts ...SubmissionOption) *SubmissionService {
	t.Helper()
	svc, err := NewSubmissionService(repo, nil, opts...)
	if err != nil {
		t.Fatalf("NewSubmissionService: %v", err)
	}
	return svc
}

func categoryPtr(c domain.Category) *domain.Category { return &c }

func TestSubmissionService_Scenario(t *testing.T) {
	repo := &memSubmissionRepo{}
	svc := newTestService(t, repo)

	if ok, err := svc.Submit("alice", domain.CategorySafe, "hello"); err != nil || !ok {
		t.Fatalf("first submit = %v, %v; want true", ok, err)
	}
	if ok, err := svc.Submit("bob", domain.CategorySafe, "hello"); err != nil || ok {
		t.Fatalf("duplicate submit = %v, %v; want false", ok, err)
	}
	if got := svc.RandomSubmission(categoryPtr(domain.CategorySafe)); got != "hello" {
		t.Errorf("RandomSubmission(safe) = %q, want hello", got)
	}
	if got := svc.RandomSubmission(categoryPtr(domain.CategoryNSFW)); got != domain.NoSubmissions {
		t.Errorf("RandomSubmission(nsfw) = %q, want sentinel", got)
	}
	if ok, err := svc.Delete("alice", "hello", false); err != nil || !ok {
		t.Fatalf("owner delete = %v, %v; want true", ok, err)
	}
	if got := svc.RandomSubmission(nil); got != domain.NoSubmissions {
		t.Errorf("RandomSubmission() after delete = %q, want sentinel", got)
	}
	if repo.saves != 2 {
		t.Errorf("saves = %d, want 2 (submit + delete)", repo.saves)
	}
}

func TestSubmissionService_DuplicateAcrossCategories(t *testing.T) {
	repo := &memSubmissionRepo{}
	svc := newTestService(t, repo)

	for _, c := range domain.Categories {
		ok, err := svc.Submit("owner-"+string(c), c, "same text")
		if err != nil {
			t.Fatal(err)
		}
		if want := c == domain.CategorySafe; ok != want {
			t.Errorf("Submit in %s = %v, want %v", c, ok, want)
		}
	}
	if n := svc.Count(nil); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
	if repo.saves != 1 {
		t.Errorf("rejected submits must not write, saves = %d", repo.saves)
	}
}

func TestSubmissionService_InvalidCategory(t *testing.T) {
	svc := newTestService(t, &memSubmissionRepo{})
	if _, err := svc.Submit("alice", domain.Category("SAFE"), "x"); err == nil {
		t.Error("expected error for non-normalized category")
	}
}

func TestSubmissionService_Delete(t *testing.T) {
	seed := []domain.Submission{
		{Owner: "alice", Category: domain.CategorySafe, Text: "shared"},
		{Owner: "bob", Category: domain.CategoryNSFW, Text: "shared"},
		{Owner: "bob", Category: domain.CategorySafe, Text: "mine"},
	}
	tests := []struct {
		name       string
		owner      string
		text       string
		privileged bool
		want       bool
		wantLeft   int
	}{
		{"owner removes own pair", "bob", "mine", false, true, 2},
		{"owner removes only own duplicate", "alice", "shared", false, true, 2},
		{"non-owner cannot remove", "carol", "mine", false, false, 3},
		{"privileged removes every match", "carol", "shared", true, true, 1},
		{"privileged miss", "carol", "absent", true, false, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := &memSubmissionRepo{subs: slices.Clone(seed)}
			svc := newTestService(t, repo)
			got, err := svc.Delete(tc.owner, tc.text, tc.privileged)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("Delete = %v, want %v", got, tc.want)
			}
			if n := svc.Count(nil); n != tc.wantLeft {
				t.Errorf("left = %d, want %d", n, tc.wantLeft)
			}
			if len(repo.subs) != tc.wantLeft {
				t.Errorf("persisted = %d, want %d", len(repo.subs), tc.wantLeft)
			}
		})
	}
}

func TestSubmissionService_SaveFailureLeavesMemory(t *testing.T) {
	repo := &memSubmissionRepo{subs: []domain.Submission{{Owner: "a", Category: domain.CategorySafe, Text: "keep"}}}
	svc := newTestService(t, repo)
	repo.saveErr = errors.New("disk full")

	if ok, err := svc.Submit("a", domain.CategorySafe, "new"); err == nil || ok {
		t.Fatalf("Submit = %v, %v; want false and error", ok, err)
	}
	if ok, err := svc.Delete("a", "keep", false); err == nil || ok {
		t.Fatalf("Delete = %v, %v; want false and error", ok, err)
	}
	if got := svc.Snapshot(); len(got) != 1 || got[0].Text != "keep" {
		t.Errorf("memory changed after failed save: %+v", got)
	}
}

func TestSubmissionService_LoadError(t *testing.T) {
	if _, err := NewSubmissionService(&memSubmissionRepo{loadErr: errors.New("corrupt")}, nil); err == nil {
		t.Error("expected load error to propagate")
	}
}

func TestSubmissionService_RandomStaysInCandidates(t *testing.T) {
	repo := &memSubmissionRepo{subs: []domain.Submission{
		{Owner: "a", Category: domain.CategorySafe, Text: "s1"},
		{Owner: "a", Category: domain.CategoryNSFW, Text: "n1"},
		{Owner: "a", Category: domain.CategorySafe, Text: "s2"},
	}}
	var asked []int
	svc := newTestService(t, repo, WithIntn(func(n int) int {
		asked = append(asked, n)
		return n - 1
	}))
	if got := svc.RandomSubmission(categoryPtr(domain.CategorySafe)); got != "s2" {
		t.Errorf("got %q, want s2", got)
	}
	if got := svc.RandomSubmission(nil); got != "s2" {
		t.Errorf("got %q, want s2", got)
	}
	if !slices.Equal(asked, []int{2, 3}) {
		t.Errorf("intn called with %v, want [2 3]", asked)
	}

	live := newTestService(t, repo)
	for range 50 {
		got := live.RandomSubmission(categoryPtr(domain.CategorySafe))
		if got != "s1" && got != "s2" {
			t.Fatalf("RandomSubmission(safe) returned %q outside the candidate set", got)
		}
	}
}

func TestSubmissionService_AllSubmissions(t *testing.T) {
	repo := &memSubmissionRepo{subs: []domain.Submission{
		{Owner: "a", Category: domain.CategorySafe, Text: "s1"},
		{Owner: "a", Category: domain.CategoryNSFW, Text: "n1"},
	}}
	svc := newTestService(t, repo)
	want := "Category: nsfw - Text: n1 " + domain.EntrySeparator
	if got := svc.AllSubmissions(categoryPtr(domain.CategoryNSFW)); got != want {
		t.Errorf("AllSubmissions(nsfw) = %q, want %q", got, want)
	}
	if got := svc.AllSubmissions(categoryPtr(domain.CategoryQuestionable)); got != domain.NoSubmissions {
		t.Errorf("AllSubmissions(questionable) = %q, want sentinel", got)
	}
}
