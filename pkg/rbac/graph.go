package rbac

import (
	"strings"
)

// ExpandPatterns filters the full permission collection down to the
// slugs selected by the include patterns minus those matched by the
// exclude patterns, in that order. Patterns support a single '*' as
// prefix or suffix wildcard ("view_*", "*_budgets"); a bare "*"
// matches everything and anything else is an exact slug.
//
// This is a provisioning convenience for building coarse-grained roles
// at seed time; it never runs on the evaluation path.
func ExpandPatterns(all []Permission, include, exclude []string) []Permission {
	var selected []Permission
	for _, p := range all {
		if matchesAny(p.Slug, include) && !matchesAny(p.Slug, exclude) {
			selected = append(selected, p)
		}
	}
	return selected
}

func matchesAny(slug string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchSlugPattern(pattern, slug) {
			return true
		}
	}
	return false
}

func matchSlugPattern(pattern, slug string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(slug, strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(slug, strings.TrimPrefix(pattern, "*"))
	default:
		return pattern == slug
	}
}
