// Package category assigns category slugs to events.
package category

import (
	"strings"

	"techcal/internal/model"
)

// Resolve picks the categories for one event. Event-level categories
// win when any of them survive the known-slug filter; otherwise the
// group's configured categories are inherited, under the same filter.
func Resolve(eventCategories, groupCategories []string, known map[string]model.Category) []string {
	if out := filter(eventCategories, known); len(out) > 0 {
		return out
	}
	return filter(groupCategories, known)
}

func filter(slugs []string, known map[string]model.Category) []string {
	out := make([]string, 0, len(slugs))
	seen := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		slug := strings.ToLower(strings.TrimSpace(s))
		if slug == "" || seen[slug] {
			continue
		}
		if _, ok := known[slug]; !ok {
			continue
		}
		seen[slug] = true
		out = append(out, slug)
	}
	return out
}
