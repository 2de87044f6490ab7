// Package tags owns the global tag vocabulary: canonicalisation of free-form tag input,
// persistence of tags (unique case-insensitively), and the public tag listing.
package tags

import (
	"context"
	"sort"
	"strings"
)

// Tag is a globally shared label. Name is always canonical.
type Tag struct {
	ID   int64  `json:"id" example:"3"`
	Name string `json:"name" example:"golang"`
}

// Store persists tags. Implementations must treat names case-insensitively and never
// hand out two Tag rows for one canonical name.
type Store interface {
	// GetOrCreate returns the tag called name, creating it if needed. name must be canonical.
	GetOrCreate(ctx context.Context, name string) (*Tag, error)
	// FindByName returns an apperror NotFound when no tag is called name.
	FindByName(ctx context.Context, name string) (*Tag, error)
	// ListAll returns every tag ordered by name.
	ListAll(ctx context.Context) ([]Tag, error)
}

// Canonical lower-cases and trims a single tag name.
func Canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Normalize turns raw tag input into its canonical set: every entry canonicalised,
// blanks dropped, duplicates removed. The result is sorted so equal sets compare equal.
// It never returns nil.
func Normalize(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		c := Canonical(n)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Diff compares two canonical sets and returns what must be added to current and removed
// from it to reach desired. Both results are sorted.
func Diff(current, desired []string) (toAdd, toRemove []string) {
	cur := make(map[string]struct{}, len(current))
	for _, c := range current {
		cur[Canonical(c)] = struct{}{}
	}
	want := make(map[string]struct{}, len(desired))
	for _, d := range desired {
		want[Canonical(d)] = struct{}{}
	}

	for name := range want {
		if _, ok := cur[name]; !ok {
			toAdd = append(toAdd, name)
		}
	}
	for name := range cur {
		if _, ok := want[name]; !ok {
			toRemove = append(toRemove, name)
		}
	}
	sort.Strings(toAdd)
	sort.Strings(toRemove)
	return toAdd, toRemove
}
