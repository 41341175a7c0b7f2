package entry

import (
	stdjson "encoding/json"
	"reflect"
	"testing"
)

func TestFromJSON(t *testing.T) {
	n, err := FromJSON([]byte(`{
		"l10nId": "home",
		"count": 12345678901234567890,
		"published": true,
		"tags": ["a", null],
		"hero": {"title": "Hi", "image": null}
	}`))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if n.Kind != KindObject {
		t.Fatalf("Kind = %v, want object", n.Kind)
	}
	if got := n.Keys(); !reflect.DeepEqual(got, []string{"count", "hero", "l10nId", "published", "tags"}) {
		t.Errorf("Keys = %v", got)
	}
	if got := n.Get("count"); got.Kind != KindNumber || got.Str != "12345678901234567890" {
		t.Errorf("count = %+v, want exact number text", got)
	}
	if got := n.Get("published"); got.Kind != KindBool || !got.Bool {
		t.Errorf("published = %+v", got)
	}
	tags := n.Get("tags")
	if tags.Kind != KindArray || len(tags.Items) != 2 || !tags.Items[1].IsNull() {
		t.Errorf("tags = %+v", tags)
	}
	if s, ok := n.Get("hero").Get("title").Text(); !ok || s != "Hi" {
		t.Errorf("hero.title = %q, %v", s, ok)
	}
	if !n.Get("hero").Get("image").IsNull() {
		t.Error("hero.image should be null")
	}
	if !n.Get("missing").Get("deeper").IsNull() {
		t.Error("missing path should be null")
	}
}

func TestFromJSONInvalid(t *testing.T) {
	if _, err := FromJSON([]byte(`{"a":`)); err == nil {
		t.Fatal("expected error")
	}
}

func TestFromValueUnknownTypeIsNull(t *testing.T) {
	if n := FromValue(struct{}{}); !n.IsNull() {
		t.Errorf("FromValue(struct{}) = %+v, want null", n)
	}
	if n := FromValue(3.5); n.Kind != KindNumber || n.Str != "3.5" {
		t.Errorf("FromValue(3.5) = %+v", n)
	}
}

func TestInterfaceRoundTrip(t *testing.T) {
	in := map[string]any{
		"l10nId": "home",
		"id":     stdjson.Number("7"),
		"hero":   map[string]any{"title": "Hi", "visible": false},
		"list":   []any{"x", nil},
	}
	if got := FromValue(in).Interface(); !reflect.DeepEqual(got, in) {
		t.Errorf("Interface() = %#v, want %#v", got, in)
	}
}

func TestNewEntry(t *testing.T) {
	n := FromValue(map[string]any{
		"l10nId":     "  signin-page ",
		"name":       "SignIn",
		"entrypoint": "web",
	})
	e, ok := NewEntry(n)
	if !ok {
		t.Fatal("NewEntry returned false")
	}
	if e.L10nID != "signin-page" || e.Name != "SignIn" || e.Entrypoint != "web" {
		t.Errorf("entry = %+v", e)
	}
	if got := e.Map()["name"]; got != "SignIn" {
		t.Errorf("Map()[name] = %v", got)
	}

	for name, n := range map[string]Node{
		"not an object": String("x"),
		"missing id":    Object(map[string]Node{"name": String("n")}),
		"blank id":      Object(map[string]Node{FieldL10nID: String("  ")}),
		"numeric id":    FromValue(map[string]any{FieldL10nID: 5}),
	} {
		if _, ok := NewEntry(n); ok {
			t.Errorf("%s: NewEntry accepted %+v", name, n)
		}
	}
}

func TestKindString(t *testing.T) {
	if got := KindObject.String(); got != "object" {
		t.Errorf("KindObject.String() = %q", got)
	}
	if got := Kind(42).String(); got != "kind(42)" {
		t.Errorf("Kind(42).String() = %q", got)
	}
}
