// Package domain holds submission entities and role allow-list values.
// It has no dependencies on other packages.
package domain

import (
	"fmt"
	"slices"
	"strings"
)

// NoSubmissions is returned instead of a text when no submission matches.
const NoSubmissions = "No submissions available."

// EntrySeparator is the delimiter line that follows every entry of a bulk dump.
const EntrySeparator = "\n----------------------\n"

// Category classifies a submission.
type Category string

const (
	CategorySafe         Category = "safe"
	CategoryQuestionable Category = "questionable"
	CategoryNSFW         Category = "nsfw"
)

// Categories lists the accepted categories in display order.
var Categories = []Category{CategorySafe, CategoryQuestionable, CategoryNSFW}

// ParseCategory normalizes s (any case, surrounding spaces ignored) to a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("invalid category %q", s)
	}
	return c, nil
}

// Valid reports whether c is one of the three accepted categories.
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

func (c Category) String() string { return string(c) }

// Submission is an owner-attributed, categorized text. Text is unique across a store.
type Submission struct {
	Owner    string   `json:"owner"`
	Category Category `json:"category"`
	Text     string   `json:"text"`
}

// Matches reports whether s falls under category; a nil category matches everything.
func (s Submission) Matches(category *Category) bool {
	return category == nil || s.Category == *category
}

// HasText reports whether any submission carries exactly text.
func HasText(subs []Submission, text string) bool {
	return slices.ContainsFunc(subs, func(s Submission) bool { return s.Text == text })
}

// Filter returns the submissions under category, preserving order.
func Filter(subs []Submission, category *Category) []Submission {
	out := make([]Submission, 0, len(subs))
	for _, s := range subs {
		if s.Matches(category) {
			out = append(out, s)
		}
	}
	return out
}

// Remove returns subs without the entries matching text. When privileged is false
// only entries that also belong to owner are removed. The second return value is
// the number of entries removed.
func Remove(subs []Submission, owner, text string, privileged bool) ([]Submission, int) {
	kept := make([]Submission, 0, len(subs))
	removed := 0
	for _, s := range subs {
		if s.Text == text && (privileged || s.Owner == owner) {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	return kept, removed
}

// Render formats subs as a bulk dump, each entry tagged with its category and
// followed by EntrySeparator. An empty slice renders NoSubmissions.
func Render(subs []Submission) string {
	if len(subs) == 0 {
		return NoSubmissions
	}
	entries := make([]string, len(subs))
	for i, s := range subs {
		entries[i] = fmt.Sprintf("Category: %s - Text: %s %s", s.Category, s.Text, EntrySeparator)
	}
	return strings.Join(entries, "\n")
}

// RoleList names one of the two allow-lists.
type RoleList string

const (
	// RoleListAdmin grants privileged delete.
	RoleListAdmin RoleList = "admin"
	// RoleListSubmit grants permission to submit.
	RoleListSubmit RoleList = "submit"
)

// Intersects reports whether any candidate id is present in allowed.
func Intersects(allowed, candidates []int64) bool {
	for _, c := range candidates {
		if slices.Contains(allowed, c) {
			return true
		}
	}
	return false
}
