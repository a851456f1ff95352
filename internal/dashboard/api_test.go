package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jaakkos/promptbox/internal/app"
	"github.com/jaakkos/promptbox/internal/domain"
)

type mockSubmissionRepo struct {
	subs []domain.Submission
}

func (m *mockSubmissionRepo) Load() ([]domain.Submission, error) { return m.subs, nil }
func (m *mockSubmissionRepo) Save(s []domain.Submission) error   { m.subs = s; return nil }

type mockRoleRepo struct {
	mu      sync.Mutex
	roles   []int64
	loadErr error
}

func (m *mockRoleRepo) Load() ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return slices.Clone(m.roles), nil
}

func (m *mockRoleRepo) Save(r []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles = slices.Clone(r)
	return nil
}

func newTestHandler(t *testing.T, subs []domain.Submission, admin, submit *mockRoleRepo) *Handler {
	t.Helper()
	store, err := app.NewSubmissionService(&mockSubmissionRepo{subs: subs}, nil)
	if err != nil {
		t.Fatal(err)
	}
	auth, err := app.NewAuthorizationRegistry(admin, submit, nil)
	if err != nil {
		t.Fatal(err)
	}
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return NewHandler(store, auth, "flatfile", WithClock(func() time.Time { return fixed }))
}

func serve(h *Handler, method, path string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestAPIState_Empty(t *testing.T) {
	h := newTestHandler(t, nil, &mockRoleRepo{}, &mockRoleRepo{})

	w := serve(h, "GET", "/api/state")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var snap StateSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if snap.Timestamp != "2024-05-01T10:00:00Z" {
		t.Errorf("timestamp = %q", snap.Timestamp)
	}
	if snap.Total != 0 || len(snap.Categories) != 3 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestAPIState_WithData(t *testing.T) {
	subs := []domain.Submission{
		{Owner: "alice", Category: domain.CategorySafe, Text: "a"},
		{Owner: "bob", Category: domain.CategorySafe, Text: "b"},
		{Owner: "alice", Category: domain.CategoryNSFW, Text: "c"},
	}
	h := newTestHandler(t, subs, &mockRoleRepo{roles: []int64{1234567890123456789}}, &mockRoleRepo{roles: []int64{5, 6}})

	w := serve(h, "GET", "/api/state")
	var snap StateSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if snap.Total != 3 || snap.Categories["safe"] != 2 || snap.Categories["questionable"] != 0 || snap.Categories["nsfw"] != 1 {
		t.Errorf("counts wrong: %+v", snap)
	}
	if !slices.Equal(snap.AdminRoles, []string{"1234567890123456789"}) {
		t.Errorf("admin roles = %v", snap.AdminRoles)
	}
	if !slices.Equal(snap.SubmitRoles, []string{"5", "6"}) {
		t.Errorf("submit roles = %v", snap.SubmitRoles)
	}
	if strings.Contains(w.Body.String(), "alice") {
		t.Error("owners must not be exposed")
	}
}

func TestAPIReloadRoles(t *testing.T) {
	admin := &mockRoleRepo{}
	submit := &mockRoleRepo{}
	h := newTestHandler(t, nil, admin, submit)

	// Edited behind the registry's back.
	_ = admin.Save([]int64{9})

	w := serve(h, "POST", "/api/reload-roles")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !h.auth.IsAdmin([]int64{9}) {
		t.Error("reload should pick up the new admin role")
	}
}

func TestAPIReloadRoles_RequiresPOST(t *testing.T) {
	h := newTestHandler(t, nil, &mockRoleRepo{}, &mockRoleRepo{})
	w := serve(h, "GET", "/api/reload-roles")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
	if w := serve(h, "OPTIONS", "/api/reload-roles"); w.Code != http.StatusNoContent {
		t.Errorf("OPTIONS expected 204, got %d", w.Code)
	}
}

func TestAPIReloadRoles_Error(t *testing.T) {
	submit := &mockRoleRepo{roles: []int64{1}}
	h := newTestHandler(t, nil, &mockRoleRepo{}, submit)

	submit.mu.Lock()
	submit.loadErr = errors.New("disk gone")
	submit.mu.Unlock()

	w := serve(h, "POST", "/api/reload-roles")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "disk gone") {
		t.Errorf("body = %s", w.Body.String())
	}
	if !h.auth.CanSubmit([]int64{1}) {
		t.Error("failed reload must keep the current list")
	}
}
