// Package extract pulls localizable strings out of CMS entries.
//
// Each entry tree is flattened into dotted field paths ("headline.text").
// Structural and metadata keys are skipped at every depth, as are values
// that are plainly not prose: URLs, ISO-8601 timestamps and CSS colours.
// What remains is turned into resource entries for the ftl package.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/minios-linux/cmsl10n/entry"
	"github.com/minios-linux/cmsl10n/ftl"
)

// skipKeys contains keys that never hold localizable text. The identity
// fields are captured at entry level instead.
var skipKeys = map[string]bool{
	"id":            true,
	"documentId":    true,
	"l10nId":        true,
	"name":          true,
	"entrypoint":    true,
	"createdAt":     true,
	"updatedAt":     true,
	"publishedAt":   true,
	"locale":        true,
	"localizations": true,
	"__component":   true,
	"__typename":    true,
}

// urlPrefixes mark values that are links, not prose.
var urlPrefixes = []string{"http://", "https://", "//"}

// dateRe matches the date-time prefix of an ISO-8601 timestamp.
var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}`)

// Result holds the outcome of extracting a batch of entries.
type Result struct {
	// Entries is the normalized list of resource entries.
	Entries []ftl.Entry
	// Localizable is the number of input entries that carried an l10nId.
	Localizable int
	// Skipped is the number of input entries without an l10nId.
	Skipped int
}

// Fields flattens root into a map of dotted field path → string value.
// Arrays are not descended into and null values are ignored. A root
// that is not an object yields an empty map.
func Fields(root entry.Node) map[string]string {
	out := make(map[string]string)
	collect(root, "", out)
	return out
}

// collect recursively walks an object node and records localizable leaves.
func collect(node entry.Node, prefix string, out map[string]string) {
	if node.Kind != entry.KindObject {
		return
	}
	for _, key := range node.Keys() {
		if skipKeys[key] {
			continue
		}
		child := node.Fields[key]

		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		switch child.Kind {
		case entry.KindObject:
			collect(child, path, out)
		case entry.KindString:
			if IsLocalizable(child.Str) {
				out[path] = child.Str
			}
		}
	}
}

// IsLocalizable reports whether s is prose worth translating.
func IsLocalizable(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return !IsURL(s) && !IsDate(s) && !IsColor(s)
}

// IsURL reports whether s starts like an absolute or protocol-relative URL.
func IsURL(s string) bool {
	s = strings.TrimSpace(s)
	for _, p := range urlPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// IsDate reports whether s starts with an ISO-8601 date-time.
func IsDate(s string) bool {
	return dateRe.MatchString(strings.TrimSpace(s))
}

// IsColor reports whether s looks like a CSS colour or gradient literal.
func IsColor(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "#") ||
		strings.HasPrefix(s, "rgb(") ||
		strings.HasPrefix(s, "rgba(") ||
		strings.Contains(s, "linear-gradient")
}

// EntryResources builds the resource entries of a single CMS entry, in
// field path order and not yet de-duplicated.
func EntryResources(e entry.Entry) []ftl.Entry {
	fields := Fields(e.Root)
	out := make([]ftl.Entry, 0, len(fields))
	for _, path := range sortedKeys(fields) {
		if re, ok := ftl.NewEntry(e.L10nID, path, fields[path], e.Name, e.Entrypoint); ok {
			out = append(out, re)
		}
	}
	return out
}

// Resources extracts every localizable string from entries and returns
// them normalized: duplicates removed, sorted by (l10nId, field path).
// Entries without an l10nId contribute nothing.
func Resources(entries []entry.Entry) Result {
	var (
		res Result
		all []ftl.Entry
	)
	for _, e := range entries {
		if e.L10nID == "" {
			res.Skipped++
			continue
		}
		res.Localizable++
		all = append(all, EntryResources(e)...)
	}
	res.Entries = ftl.Normalize(all)
	return res
}

// sortedKeys returns the keys of m in sorted order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
