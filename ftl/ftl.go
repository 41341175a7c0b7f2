// Package ftl implements the translation resource format shared between
// the CMS and the translation repository.
//
// Format: one `id = "value"` message per line. Lines starting with '#'
// are comments; blank lines separate groups. A generated file looks like:
//
//	# This file is generated from CMS content. Do not edit it by hand.
//	# Generated: 2026-10-19T08:00:00Z
//
//	## l10nId: signin-page
//	## Entry: SignIn
//	# Field: headline.text
//	signin-page-headline-text-3f4a2b1c = "Welcome back"
//
// Values escape backslash, double quote, newline and carriage return.
// Messages are grouped by l10nId and sorted by field path so that
// regenerating unchanged content yields an identical diff.
package ftl

import (
	"bytes"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Comment prefixes written by Marshal and recognised by Parse.
const (
	headerLine      = "# This file is generated from CMS content. Do not edit it by hand."
	generatedPrefix = "# Generated: "
	groupPrefix     = "## l10nId: "
	entryPrefix     = "## Entry: "
	entrypointPref  = "## Entrypoint: "
	fieldPrefix     = "# Field: "
)

// ---------------------------------------------------------------------------
// Resource entries
// ---------------------------------------------------------------------------

// Entry is one localizable string ready for serialization.
type Entry struct {
	// L10nID is the owning CMS entry's l10nId.
	L10nID string
	// ID is the generated message identifier.
	ID string
	// Value is the sanitized string.
	Value string
	// FieldPath is the dotted path of the value inside the CMS entry.
	FieldPath string
	// EntryName is the CMS entry name, if any.
	EntryName string
	// Entrypoint is the CMS entrypoint, if any.
	Entrypoint string
}

// NewEntry sanitizes raw and builds the resource entry for it. It returns
// false when nothing is left after sanitizing, or when the l10nId or field
// path cannot be written as a message id.
func NewEntry(l10nID, fieldPath, raw, entryName, entrypoint string) (Entry, bool) {
	value := Sanitize(raw)
	if value == "" || l10nID == "" || fieldPath == "" {
		return Entry{}, false
	}
	id := GenerateID(l10nID, fieldPath, value)
	if !ValidID(id) {
		return Entry{}, false
	}
	return Entry{
		L10nID:     l10nID,
		ID:         id,
		Value:      value,
		FieldPath:  fieldPath,
		EntryName:  entryName,
		Entrypoint: entrypoint,
	}, true
}

// Normalize drops duplicate ids (the first occurrence wins) and sorts the
// rest by (L10nID, FieldPath). The input slice is not modified.
func Normalize(entries []Entry) []Entry {
	seen := make(map[string]bool, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].L10nID != out[j].L10nID {
			return out[i].L10nID < out[j].L10nID
		}
		return out[i].FieldPath < out[j].FieldPath
	})
	return out
}

// ValidID reports whether id can appear on the left of a message line:
// non-empty, with no whitespace, control characters, '=', '#' or '"'.
// Letters of any script are allowed.
func ValidID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r == '=', r == '#', r == '"':
			return false
		case unicode.IsSpace(r), unicode.IsControl(r), r == unicode.ReplacementChar:
			return false
		}
	}
	return true
}

// IDs returns the message ids of entries in order.
func IDs(entries []Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// Marshal serialises entries to the resource format. Entries must already
// be normalized: groups are cut whenever the l10nId changes, so unsorted
// input produces repeated group headers.
func Marshal(entries []Entry, generated time.Time) []byte {
	var buf bytes.Buffer
	buf.WriteString(headerLine)
	buf.WriteByte('\n')
	buf.WriteString(generatedPrefix)
	buf.WriteString(generated.UTC().Format(time.RFC3339))
	buf.WriteByte('\n')

	current := ""
	for i, e := range entries {
		if i == 0 || e.L10nID != current {
			current = e.L10nID
			buf.WriteByte('\n')
			buf.WriteString(groupPrefix + commentText(e.L10nID) + "\n")
			if name := commentText(e.EntryName); name != "" {
				buf.WriteString(entryPrefix + name + "\n")
			}
			if ep := commentText(e.Entrypoint); ep != "" {
				buf.WriteString(entrypointPref + ep + "\n")
			}
		}
		buf.WriteString(fieldPrefix + commentText(e.FieldPath) + "\n")
		buf.WriteString(e.ID)
		buf.WriteString(` = "`)
		buf.WriteString(Escape(e.Value))
		buf.WriteString("\"\n")
	}
	return buf.Bytes()
}

// commentText folds line breaks so a value stays on its comment line.
func commentText(s string) string {
	return strings.TrimSpace(commentFolder.Replace(s))
}

var commentFolder = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ", "\u2028", " ", "\u2029", " ")

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)

// Escape encodes a value for use inside double quotes.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Unescape reverses Escape. Unknown escape sequences are kept verbatim.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case '"':
			b.WriteByte('"')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
