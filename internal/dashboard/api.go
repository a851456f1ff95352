// Package dashboard serves a read-only JSON view of the registry for operators.
// Owners are never exposed; only counts and the allow-lists.
package dashboard

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/jaakkos/promptbox/internal/app"
	"github.com/jaakkos/promptbox/internal/domain"
)

// StateSnapshot is the JSON payload for /api/state.
type StateSnapshot struct {
	Timestamp   string         `json:"timestamp"`
	Backend     string         `json:"backend"`
	Total       int            `json:"total"`
	Categories  map[string]int `json:"categories"`
	AdminRoles  []string       `json:"admin_roles"`
	SubmitRoles []string       `json:"submit_roles"`
}

// Handler holds dependencies for dashboard HTTP handlers.
type Handler struct {
	store   *app.SubmissionService
	auth    *app.AuthorizationRegistry
	backend string
	now     func() time.Time
}

// NewHandler creates a dashboard handler.
func NewHandler(store *app.SubmissionService, auth *app.AuthorizationRegistry, backend string, opts ...HandlerOption) *Handler {
	h := &Handler{store: store, auth: auth, backend: backend, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandlerOption configures optional dependencies for the dashboard handler.
type HandlerOption func(*Handler)

// WithClock replaces time.Now for snapshot timestamps.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

// RegisterRoutes adds dashboard routes to the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/state", h.handleAPIState)
	mux.HandleFunc("/api/reload-roles", h.handleAPIReloadRoles)
}

func (h *Handler) handleAPIState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache")

	snap := StateSnapshot{
		Timestamp:   h.now().Format(time.RFC3339),
		Backend:     h.backend,
		Total:       h.store.Count(nil),
		Categories:  make(map[string]int, len(domain.Categories)),
		AdminRoles:  roleStrings(h.auth.Admin.Roles()),
		SubmitRoles: roleStrings(h.auth.Submit.Roles()),
	}
	for _, c := range domain.Categories {
		snap.Categories[string(c)] = h.store.Count(&c)
	}

	_ = json.NewEncoder(w).Encode(snap)
}

// handleAPIReloadRoles re-reads both allow-lists from storage, for backends
// (or deployments) where the file watcher is off.
func (h *Handler) handleAPIReloadRoles(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"error":"POST required"}`))
		return
	}

	for _, l := range []*app.AllowList{h.auth.Admin, h.auth.Submit} {
		if err := l.Reload(); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
	}
	w.Write([]byte(`{"status":"ok","message":"Roles reloaded"}`))
}

// roleStrings renders ids as strings; snowflakes do not survive JSON numbers.
func roleStrings(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	return out
}
