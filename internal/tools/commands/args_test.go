package commands

import (
	"slices"
	"strings"
	"testing"

	"github.com/jaakkos/promptbox/internal/domain"
)

func TestRequireString(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]any
		key     string
		want    string
		wantErr string
	}{
		{"valid", map[string]any{"user": "alice#1"}, "user", "alice#1", ""},
		{"missing", map[string]any{}, "user", "", "user is required"},
		{"empty string", map[string]any{"user": ""}, "user", "", "user is required"},
		{"wrong type", map[string]any{"user": 42}, "user", "", "user is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := requireString(tt.args, tt.key)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRoleID(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    int64
		wantErr string
	}{
		{"snowflake string", "1234567890123456789", 1234567890123456789, ""},
		{"padded string", " 42 ", 42, ""},
		{"number", float64(42), 42, ""},
		{"negative", "-3", -3, ""},
		{"fraction", float64(1.5), 0, "must be an integer"},
		{"too large for number", float64(1 << 60), 0, "as strings"},
		{"not numeric", "admins", 0, "not an integer"},
		{"nil", nil, 0, "required"},
		{"bool", true, 0, "string or number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRoleID(tt.in)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRoleIDs(t *testing.T) {
	got, err := roleIDs(map[string]any{"roles": []any{"1", float64(2)}}, "roles")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []int64{1, 2}) {
		t.Errorf("got %v", got)
	}

	got, err = roleIDs(map[string]any{}, "roles")
	if err != nil || got != nil {
		t.Errorf("missing roles = %v, %v", got, err)
	}

	if _, err := roleIDs(map[string]any{"roles": []any{"1", "x"}}, "roles"); err == nil || !strings.Contains(err.Error(), "roles[1]") {
		t.Errorf("err = %v, want index in message", err)
	}
}

func TestOptionalCategory(t *testing.T) {
	c, ok := optionalCategory(map[string]any{}, "category")
	if !ok || c != nil {
		t.Errorf("absent = %v, %v", c, ok)
	}
	c, ok = optionalCategory(map[string]any{"category": "  "}, "category")
	if !ok || c != nil {
		t.Errorf("blank = %v, %v", c, ok)
	}
	c, ok = optionalCategory(map[string]any{"category": "NSFW"}, "category")
	if !ok || c == nil || *c != domain.CategoryNSFW {
		t.Errorf("NSFW = %v, %v", c, ok)
	}
	if _, ok = optionalCategory(map[string]any{"category": "other"}, "category"); ok {
		t.Error("unknown category should not be ok")
	}
}
