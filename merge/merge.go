// Package merge overlays localized strings onto CMS entries and compares
// generations of a resource file.
package merge

import (
	"sort"
)

// reserved holds entry metadata keys. Localized data never overrides
// them; the base entry's values always win.
var reserved = map[string]bool{
	"l10nId":      true,
	"name":        true,
	"entrypoint":  true,
	"id":          true,
	"documentId":  true,
	"locale":      true,
	"createdAt":   true,
	"updatedAt":   true,
	"publishedAt": true,
}

// Merge returns base with the string fields of localized laid over it.
//   - base is shallow-copied and never modified.
//   - Reserved metadata keys in localized are ignored.
//   - Each localized component must be an object; its string fields
//     replace or add to the same-named fields of the base component.
//   - Non-string values in localized are ignored, so nothing deeper than
//     one level below a component is merged.
func Merge(base, localized map[string]any) map[string]any {
	merged := make(map[string]any, len(base))
	for k, v := range base {
		merged[k] = v
	}

	for component, raw := range localized {
		if reserved[component] {
			continue
		}
		fields, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		// Copy the base component before writing into it.
		target := make(map[string]any)
		if existing, ok := merged[component].(map[string]any); ok {
			for k, v := range existing {
				target[k] = v
			}
		}
		for field, v := range fields {
			if s, ok := v.(string); ok {
				target[field] = s
			}
		}
		merged[component] = target
	}

	return merged
}

// Changes describes how the message ids of a resource file moved between
// two generations.
type Changes struct {
	// Added are ids present only in the new generation.
	Added []string `json:"added"`
	// Removed are ids present only in the old generation; their
	// translations are now obsolete.
	Removed []string `json:"removed"`
	// Kept are ids present in both.
	Kept []string `json:"kept"`
}

// Changed reports whether any id was added or removed.
func (c Changes) Changed() bool {
	return len(c.Added) > 0 || len(c.Removed) > 0
}

// Diff compares two id lists. Results are sorted.
func Diff(oldIDs, newIDs []string) Changes {
	old := make(map[string]bool, len(oldIDs))
	for _, id := range oldIDs {
		old[id] = true
	}

	var c Changes
	matched := make(map[string]bool, len(newIDs))
	for _, id := range newIDs {
		if matched[id] {
			continue
		}
		matched[id] = true
		if old[id] {
			c.Kept = append(c.Kept, id)
		} else {
			c.Added = append(c.Added, id)
		}
	}

	// Anything the new generation did not match is obsolete.
	for id := range old {
		if !matched[id] {
			c.Removed = append(c.Removed, id)
		}
	}

	sort.Strings(c.Added)
	sort.Strings(c.Removed)
	sort.Strings(c.Kept)
	return c
}
