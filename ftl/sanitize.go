package ftl

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Sanitize makes a CMS string safe to embed in a resource file:
//
//   - decomposes (NFD) and strips combining diacritical marks (U+0300 to
//     U+036F), so "café" becomes "cafe"; marks of other scripts such as
//     kana voicing or the Devanagari virama are kept
//   - strips C0/C1 control characters except tab, newline and carriage return
//   - strips zero-width characters and the byte order mark
//   - strips bidirectional embedding, override and isolate controls
//   - trims surrounding whitespace
//
// Sanitize is idempotent.
func Sanitize(s string) string {
	// Transformers carry state, so the chain is built per call.
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.Predicate(isDiacritic)),
		runes.Remove(runes.Predicate(isInvisible)),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		// Only malformed input can fail here; fall back to the raw text.
		out = s
	}
	return strings.TrimSpace(out)
}

// isDiacritic reports whether r is in the Combining Diacritical Marks block.
func isDiacritic(r rune) bool {
	return r >= 0x300 && r <= 0x36f
}

// isInvisible reports whether r is a control or formatting character that
// must not reach the resource file.
func isInvisible(r rune) bool {
	switch r {
	case '\t', '\n', '\r':
		return false
	case '\u2060', '\ufeff': // word joiner, BOM
		return true
	}
	switch {
	case r < 0x20, r >= 0x7f && r <= 0x9f:
		return true
	case r >= 0x200b && r <= 0x200f: // zero-width space/joiners, LRM, RLM
		return true
	case r >= 0x202a && r <= 0x202e: // embeddings and overrides
		return true
	case r >= 0x2066 && r <= 0x2069: // isolates
		return true
	}
	return false
}
