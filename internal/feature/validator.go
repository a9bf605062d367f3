// Package feature encodes compatibility rules between feature toggles and
// validates candidate combinations before any build resource is allocated.
package feature

import (
	"fmt"
	"sort"
	"strings"

	"git.home.luguber.info/inful/buildmatrix/internal/config"
)

// ReasonCode enumerates why a combination was rejected for a target.
type ReasonCode string

const (
	// ReasonConflict: two or more toggles share a mutually-exclusive category.
	ReasonConflict ReasonCode = "conflicting_toggles"
	// ReasonMissingCompanion: a toggle's required companion is absent.
	ReasonMissingCompanion ReasonCode = "missing_companion"
	// ReasonUnsupportedPlatform: a toggle is not valid on the target's OS.
	ReasonUnsupportedPlatform ReasonCode = "unsupported_platform"
	// ReasonUnknownToggle: the combination names a toggle that is not declared.
	ReasonUnknownToggle ReasonCode = "unknown_toggle"
	// ReasonMissingMandatory: a mandatory category has no toggle present.
	ReasonMissingMandatory ReasonCode = "missing_mandatory_category"
)

// Rejection describes one reason a (combination, target) pair is illegal.
type Rejection struct {
	Code     ReasonCode `json:"code"`
	Toggle   string     `json:"toggle,omitempty"`
	Category string     `json:"category,omitempty"`
	Detail   string     `json:"detail"`
}

func (r Rejection) String() string { return r.Detail }

// Set is a compiled view of the configured features and categories.
// It is immutable after construction and Validate is a pure function,
// so a single Set may be shared across goroutines.
type Set struct {
	features   map[string]config.Feature
	categories map[string]config.Category
}

// NewSet compiles the configured categories and features into a Set.
func NewSet(categories []config.Category, features []config.Feature) *Set {
	s := &Set{
		features:   make(map[string]config.Feature, len(features)),
		categories: make(map[string]config.Category, len(categories)),
	}
	for _, c := range categories {
		s.categories[c.Name] = c
	}
	for _, f := range features {
		s.features[f.Name] = f
	}
	return s
}

// Validate checks one candidate combination against one target and returns
// every rejection found. An empty slice means the pair is legal. An empty
// combination is valid only when no category is mandatory.
func (s *Set) Validate(combo config.Combination, target config.Target) []Rejection {
	var rejections []Rejection

	present := make(map[string]bool, len(combo))
	byCategory := make(map[string][]string)

	for _, name := range combo {
		f, ok := s.features[name]
		if !ok {
			rejections = append(rejections, Rejection{
				Code:   ReasonUnknownToggle,
				Toggle: name,
				Detail: fmt.Sprintf("unknown toggle %q", name),
			})
			continue
		}
		present[name] = true
		byCategory[f.Category] = append(byCategory[f.Category], name)

		if !f.SupportsOS(target.OS) {
			rejections = append(rejections, Rejection{
				Code:     ReasonUnsupportedPlatform,
				Toggle:   name,
				Category: f.Category,
				Detail:   fmt.Sprintf("toggle %q is unsupported on platform %s", name, target.OS),
			})
		}
	}

	// Exclusive categories allow at most one member. Categories are walked
	// in name order so rejection output is comparable run over run.
	for _, cat := range s.sortedCategories() {
		members := byCategory[cat.Name]
		if cat.Kind != config.CategoryExclusive || len(members) <= 1 {
			continue
		}
		sort.Strings(members)
		rejections = append(rejections, Rejection{
			Code:     ReasonConflict,
			Category: cat.Name,
			Detail: fmt.Sprintf("conflicting toggles in category %s: %s",
				cat.Name, strings.Join(members, ", ")),
		})
	}

	// Companion requirements.
	for _, name := range combo {
		f, ok := s.features[name]
		if !ok {
			continue
		}
		for _, req := range f.Requires {
			if !present[req] {
				rejections = append(rejections, Rejection{
					Code:     ReasonMissingCompanion,
					Toggle:   name,
					Category: f.Category,
					Detail:   fmt.Sprintf("toggle %q requires companion %q", name, req),
				})
			}
		}
	}

	// Mandatory categories must be represented.
	for _, cat := range s.sortedCategories() {
		if !cat.Mandatory {
			continue
		}
		if len(byCategory[cat.Name]) == 0 {
			rejections = append(rejections, Rejection{
				Code:     ReasonMissingMandatory,
				Category: cat.Name,
				Detail:   fmt.Sprintf("mandatory category %s has no toggle selected", cat.Name),
			})
		}
	}

	return rejections
}

// Valid reports whether the pair is legal, discarding the reasons.
func (s *Set) Valid(combo config.Combination, target config.Target) bool {
	return len(s.Validate(combo, target)) == 0
}

// sortedCategories returns categories in name order so rejection output is
// deterministic run over run.
func (s *Set) sortedCategories() []config.Category {
	out := make([]config.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CanonicalKey returns the canonical ordering key for a combination:
// de-duplicated toggle names, sorted, joined by "+". Two combinations with
// the same toggles in different order share a key.
func CanonicalKey(combo config.Combination) string {
	seen := make(map[string]bool, len(combo))
	names := make([]string, 0, len(combo))
	for _, n := range combo {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return strings.Join(names, "+")
}
