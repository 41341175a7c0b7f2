// Package i18n translates the cmsl10n command line's own messages.
//
// Catalogues are gettext .po files embedded under
// locales/<lang>/LC_MESSAGES/cmsl10n.po. The user's locale is matched
// against the embedded catalogues with golang.org/x/text/language, so
// "ru_RU.UTF-8", "ru-RU" and "ru" all pick the ru catalogue. English is the
// source language and needs no catalogue.
//
//	i18n.Init("")
//	logInfo(i18n.N("Extracted %d string", "Extracted %d strings", n), n)
package i18n

import (
	"embed"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/language"
)

//go:embed all:locales
var locales embed.FS

const (
	domain     = "cmsl10n"
	localesDir = "locales"
	sourceLang = "en"
)

var (
	po *gotext.Locale

	// catalogues lists the selectable catalogue names, source language
	// first; matcher holds the same list as tags, index for index.
	catalogues []string
	matcher    language.Matcher
)

func init() {
	catalogues = embeddedCatalogues()
	tags := make([]language.Tag, 0, len(catalogues))
	for _, name := range catalogues {
		tag, _ := parseLocale(name)
		tags = append(tags, tag)
	}
	matcher = language.NewMatcher(tags)
}

// embeddedCatalogues returns the source language followed by the sorted
// names of the embedded catalogue directories that parse as locales.
func embeddedCatalogues() []string {
	names := []string{sourceLang}
	dirs, err := fs.ReadDir(locales, localesDir)
	if err != nil {
		return names
	}
	var found []string
	for _, d := range dirs {
		if !d.IsDir() || d.Name() == sourceLang {
			continue
		}
		if _, ok := parseLocale(d.Name()); ok {
			found = append(found, d.Name())
		}
	}
	sort.Strings(found)
	return append(names, found...)
}

// Init selects the catalogue for lang, a locale or a colon-separated
// preference list ("ru_RU.UTF-8", "de:ru"). An empty lang reads the
// environment the way GNU gettext does.
func Init(lang string) {
	var prefs []language.Tag
	if lang == "" {
		prefs = envPreferences()
	} else {
		prefs = parsePreferences(lang)
	}

	po = gotext.NewLocaleFSWithPath(match(prefs...), locales, localesDir)
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// T translates msgid, returning it unchanged when no translation exists.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// N translates with plural forms chosen by the catalogue's plural formula.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// match returns the catalogue best serving prefs, or the source language
// when none is close enough.
func match(prefs ...language.Tag) string {
	if len(prefs) == 0 {
		return sourceLang
	}
	_, idx, conf := matcher.Match(prefs...)
	if conf == language.No || idx < 0 || idx >= len(catalogues) {
		return sourceLang
	}
	return catalogues[idx]
}

// envPreferences collects locale preferences from LANGUAGE, LC_ALL,
// LC_MESSAGES and LANG, in that order. LANGUAGE may list several.
func envPreferences() []language.Tag {
	var prefs []language.Tag
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		prefs = append(prefs, parsePreferences(os.Getenv(env))...)
	}
	return prefs
}

// parsePreferences parses a colon-separated locale list, dropping the
// entries that name no language.
func parsePreferences(list string) []language.Tag {
	var prefs []language.Tag
	for _, item := range strings.Split(list, ":") {
		if tag, ok := parseLocale(item); ok {
			prefs = append(prefs, tag)
		}
	}
	return prefs
}

// parseLocale turns a POSIX locale ("pt_BR.UTF-8@euro") or a BCP 47 tag
// into a canonical tag. "C" and "POSIX" mean no translation.
func parseLocale(s string) (language.Tag, bool) {
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "C" || s == "POSIX" {
		return language.Und, false
	}
	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil || tag == language.Und {
		return language.Und, false
	}
	return tag, true
}
