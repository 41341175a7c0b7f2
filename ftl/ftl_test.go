package ftl

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var generatedAt = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

// ---------------------------------------------------------------------------
// Sanitize
// ---------------------------------------------------------------------------

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Welcome back", "Welcome back"},
		{"trims", "  Hello \n", "Hello"},
		{"strips diacritics", "Café crème", "Cafe creme"},
		{"keeps inner newline and tab", "a\tb\nc\r\nd", "a\tb\nc\r\nd"},
		{"strips C0 controls", "a\x00b\x07c", "abc"},
		{"strips C1 controls", "a\u0085b\u009fc", "abc"},
		{"strips zero width", "a\u200bb\u200cc\u200dd\u2060e", "abcde"},
		{"strips BOM", "\ufeffHello", "Hello"},
		{"strips isolates", "\u2066Hi\u2069 \u2068there\u2069", "Hi there"},
		{"strips embeddings", "\u202aab\u202c", "ab"},
		{"only invisible", "\u200b\ufeff ", ""},
		{"keeps kana voicing", "がぎぐ", "がぎぐ"},
		{"keeps decomposed kana voicing", "\u304b\u3099", "が"},
		{"keeps virama", "हिन्दी", "हिन्दी"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Sanitize(tc.in); got != tc.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"Café",
		"  \u2066x\u2069  ",
		"Ñandú\x01 ",
		"한국어",
		"がぎぐ",
		"हिन्दी",
		"Zürich \u200b",
		"line1\nline2",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		if twice := Sanitize(once); twice != once {
			t.Errorf("Sanitize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

// ---------------------------------------------------------------------------
// Identifiers
// ---------------------------------------------------------------------------

var idRe = regexp.MustCompile(`^signin-page-headline-text-[0-9a-f]{8}$`)

func TestGenerateID(t *testing.T) {
	id := GenerateID("signin-page", "headline.text", "Welcome back")
	if !idRe.MatchString(id) {
		t.Fatalf("GenerateID = %q, want signin-page-headline-text-<8hex>", id)
	}
	if want := "signin-page-headline-text-" + Hash("Welcome back")[:8]; id != want {
		t.Errorf("GenerateID = %q, want %q", id, want)
	}
}

func TestGenerateIDStable(t *testing.T) {
	a := GenerateID("home", "hero.title", "Hello")
	b := GenerateID("home", "hero.title", "Hello")
	if a != b {
		t.Errorf("GenerateID not deterministic: %s != %s", a, b)
	}
	c := GenerateID("home", "hero.title", "Hellp")
	if a == c {
		t.Errorf("one-character change kept id %s", a)
	}
	if a[:len(a)-8] != c[:len(c)-8] {
		t.Errorf("only the hash suffix should change: %s vs %s", a, c)
	}
}

func TestParseIDToFieldPath(t *testing.T) {
	tests := []struct {
		id     string
		want   string
		wantOK bool
	}{
		{"home-hero-title-0123abcd", "hero.title", true},
		{"home-hero-cta-label-0123abcd", "hero.cta.label", true},
		{"signin-page-headline-text-0123abcd", "page.headline.text", true}, // dashed l10nId leaks into the path
		{"home-title-0123abcd", "", false},
		{"home", "", false},
	}
	for _, tc := range tests {
		got, ok := ParseIDToFieldPath(tc.id)
		if ok != tc.wantOK || got != tc.want {
			t.Errorf("ParseIDToFieldPath(%q) = %q, %v; want %q, %v", tc.id, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestParseIDForL10nID(t *testing.T) {
	got, ok := ParseIDForL10nID("signin-page-headline-text-0123abcd", "signin-page")
	if !ok || got != "headline.text" {
		t.Errorf("got %q, %v; want headline.text, true", got, ok)
	}
	if _, ok := ParseIDForL10nID("home-hero-title-0123abcd", "signin"); ok {
		t.Error("foreign l10nId should not parse")
	}
	if _, ok := ParseIDForL10nID("home-0123abcd", "home"); ok {
		t.Error("id without field path should not parse")
	}
}

// ---------------------------------------------------------------------------
// Entries and serialization
// ---------------------------------------------------------------------------

func TestNewEntry(t *testing.T) {
	e, ok := NewEntry("signin-page", "headline.text", "  Welcome back ", "SignIn", "web")
	if !ok {
		t.Fatal("NewEntry returned false")
	}
	if e.Value != "Welcome back" {
		t.Errorf("Value = %q", e.Value)
	}
	if e.ID != GenerateID("signin-page", "headline.text", "Welcome back") {
		t.Errorf("ID = %q", e.ID)
	}

	if _, ok := NewEntry("x", "a.b", "\u200b ", "", ""); ok {
		t.Error("empty sanitized value should be rejected")
	}
}

func TestNewEntryRejectsUnwritableIDs(t *testing.T) {
	tests := []struct {
		name      string
		l10nID    string
		fieldPath string
	}{
		{"space in field", "home", "hero.main title"},
		{"newline in l10nId", "home\nx", "hero.title"},
		{"equals sign", "home", "a=b.c"},
		{"quote", "home", `a"b.c`},
		{"hash", "home", "a#b.c"},
		{"no-break space", "home", "hero.a\u00a0b"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if e, ok := NewEntry(tc.l10nID, tc.fieldPath, "Hi", "", ""); ok {
				t.Errorf("NewEntry accepted id %q", e.ID)
			}
		})
	}
}

func TestValidID(t *testing.T) {
	for _, id := range []string{"home-hero-title-0123abcd", "home-hero-título-f688ae26", "ホーム-見出し-0123abcd"} {
		if !ValidID(id) {
			t.Errorf("ValidID(%q) = false", id)
		}
	}
	for _, id := range []string{"", "a b", "a\tb", "a=b", "#a", `a"b`} {
		if ValidID(id) {
			t.Errorf("ValidID(%q) = true", id)
		}
	}
}

func TestNormalize(t *testing.T) {
	mk := func(l10n, path, value, name string) Entry {
		e, _ := NewEntry(l10n, path, value, name, "")
		return e
	}
	in := []Entry{
		mk("b", "x.y", "one", ""),
		mk("a", "z.z", "two", "first"),
		mk("a", "c.d", "three", ""),
		mk("a", "z.z", "two", "second"), // duplicate id
	}
	got := Normalize(in)

	var paths []string
	for _, e := range got {
		paths = append(paths, e.L10nID+":"+e.FieldPath)
	}
	want := []string{"a:c.d", "a:z.z", "b:x.y"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("Normalize order mismatch (-want +got):\n%s", diff)
	}
	if got[1].EntryName != "first" {
		t.Errorf("duplicate should keep first occurrence, got %q", got[1].EntryName)
	}
	if in[0].L10nID != "b" {
		t.Error("Normalize modified its input")
	}
}

func TestMarshal(t *testing.T) {
	e1, _ := NewEntry("signin-page", "headline.text", "Welcome back", "SignIn", "web")
	e2, _ := NewEntry("signin-page", "subtitle.text", `Say "hi"`+"\nnow", "SignIn", "web")
	e3, _ := NewEntry("zeta", "a.b", "Z", "", "")

	got := string(Marshal(Normalize([]Entry{e2, e3, e1}), generatedAt))
	want := strings.Join([]string{
		headerLine,
		"# Generated: 2026-10-19T08:00:00Z",
		"",
		"## l10nId: signin-page",
		"## Entry: SignIn",
		"## Entrypoint: web",
		"# Field: headline.text",
		e1.ID + ` = "Welcome back"`,
		"# Field: subtitle.text",
		e2.ID + ` = "Say \"hi\"\nnow"`,
		"",
		"## l10nId: zeta",
		"# Field: a.b",
		e3.ID + ` = "Z"`,
		"",
	}, "\n")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Marshal mismatch (-want +got):\n%s", diff)
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	values := []string{
		`plain`,
		`with "quotes"`,
		"multi\nline\r\nvalue",
		`back\slash`,
		`trailing\`,
		`\n literal`,
	}
	for _, v := range values {
		if got := Unescape(Escape(v)); got != v {
			t.Errorf("round trip %q -> %q -> %q", v, Escape(v), got)
		}
	}
}

func TestUnescapeUnknownSequence(t *testing.T) {
	if got := Unescape(`a\tb`); got != `a\tb` {
		t.Errorf("Unescape = %q, want unchanged", got)
	}
}
