package ftl

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// hashLen is the number of hex digits of the value hash kept in an id.
const hashLen = 8

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// GenerateID builds the content-addressed identifier of a message:
//
//	<l10nID>-<fieldPath with '.' replaced by '-'>-<first 8 hex digits of md5(value)>
//
// The same field with the same value always yields the same id, and any
// change to the value yields a new one, orphaning stale translations
// instead of silently mismatching them.
func GenerateID(l10nID, fieldPath, sanitized string) string {
	return l10nID + "-" + strings.ReplaceAll(fieldPath, ".", "-") + "-" + Hash(sanitized)[:hashLen]
}

// ParseIDToFieldPath recovers the field path from an id by dropping the
// first segment (l10nId) and the last one (hash) and joining the rest
// with dots. It needs at least four dash-separated segments.
//
// The mapping is ambiguous when the l10nId or a field name contains
// dashes: "signin-page-headline-text-0a1b2c3d" yields
// "page.headline.text". Use ParseIDForL10nID when the l10nId is known.
func ParseIDToFieldPath(id string) (string, bool) {
	parts := strings.Split(id, "-")
	if len(parts) < 4 {
		return "", false
	}
	return strings.Join(parts[1:len(parts)-1], "."), true
}

// ParseIDForL10nID recovers the field path from an id whose l10nId is
// known, so dashes inside the l10nId do not leak into the path.
func ParseIDForL10nID(id, l10nID string) (string, bool) {
	prefix := l10nID + "-"
	if l10nID == "" || !strings.HasPrefix(id, prefix) {
		return "", false
	}
	rest := id[len(prefix):]
	i := strings.LastIndexByte(rest, '-')
	if i <= 0 || i == len(rest)-1 {
		return "", false
	}
	return strings.ReplaceAll(rest[:i], "-", "."), true
}

// L10nIDOf returns the l10nId embedded in an id, taken as its first
// dash-separated segment.
func L10nIDOf(id string) string {
	if i := strings.IndexByte(id, '-'); i >= 0 {
		return id[:i]
	}
	return id
}

// fieldPathPrefix returns the id prefix shared by every value of the
// given field: "<l10nID>-<dashed path>-".
func fieldPathPrefix(l10nID, fieldPath string) string {
	return l10nID + "-" + strings.ReplaceAll(fieldPath, ".", "-") + "-"
}
