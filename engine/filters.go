package engine

import (
	"strings"
)

// ============================================================================
// FILTERS — Dimension-based row selection via TableView
// ============================================================================
// Single-pass filter: checks ALL dimension constraints per row in one
// loop. Returns a SubView (index list into parent) — zero data copy.
// District matching is case-insensitive so "pune" and "Pune" both hit
// the normalized table key.
// ============================================================================

// ApplyFilters returns a view of rows matching all dimension filters.
// Dimensions are AND-combined; values within a dimension are
// OR-combined. An empty filter map means no restriction.
func ApplyFilters(view TableView, filters map[string][]string) TableView {
	sets := make(map[string]map[string]bool)
	for dim, allowed := range filters {
		if len(allowed) > 0 {
			sets[dim] = toLowerSet(allowed)
		}
	}
	if len(sets) == 0 {
		return view
	}

	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		pass := true
		for dim, set := range sets {
			val := strings.ToLower(strings.TrimSpace(view.Dimension(i, dim)))
			if !set[val] {
				pass = false
				break
			}
		}
		if pass {
			indices = append(indices, i)
		}
	}

	return newSubView(view, indices)
}

// toLowerSet converts a string slice to a lowercase lookup set.
func toLowerSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.ToLower(strings.TrimSpace(item))] = true
	}
	return set
}
