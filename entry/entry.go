// Package entry models CMS entries as a closed tree of JSON-like nodes.
//
// Entries arrive from the CMS as arbitrary nested JSON. Instead of walking
// untyped maps everywhere, the payload is converted once into a Node tree
// whose Kind is one of a fixed set of variants:
//
//	Null, Bool, Number, String, Array, Object
//
// CMS payloads are trees, never graphs, so recursion depth is bounded by
// the depth of the input document.
package entry

import (
	stdjson "encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// json is the codec used for CMS payloads. Numbers decode as json.Number
// so that large ids survive the round trip unchanged.
var json = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// ---------------------------------------------------------------------------
// Node model
// ---------------------------------------------------------------------------

// Kind identifies the variant held by a Node.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Node is a single value in an entry tree. Only the field matching Kind
// is meaningful.
type Node struct {
	Kind   Kind
	Str    string // KindString, and the literal text of KindNumber
	Bool   bool
	Items  []Node
	Fields map[string]Node
}

// Null is the zero Node.
var Null = Node{}

// String builds a string node.
func String(s string) Node { return Node{Kind: KindString, Str: s} }

// Object builds an object node from the given fields.
func Object(fields map[string]Node) Node {
	if fields == nil {
		fields = make(map[string]Node)
	}
	return Node{Kind: KindObject, Fields: fields}
}

// IsNull reports whether n is a null node.
func (n Node) IsNull() bool { return n.Kind == KindNull }

// Keys returns the object keys of n in sorted order, or nil when n is not
// an object.
func (n Node) Keys() []string {
	if n.Kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(n.Fields))
	for k := range n.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the child named key. A missing key or a non-object node
// yields Null.
func (n Node) Get(key string) Node {
	if n.Kind != KindObject {
		return Null
	}
	return n.Fields[key]
}

// Text returns the string value of n, and false for any other kind.
func (n Node) Text() (string, bool) {
	if n.Kind != KindString {
		return "", false
	}
	return n.Str, true
}

// ---------------------------------------------------------------------------
// Conversion from decoded JSON
// ---------------------------------------------------------------------------

// FromValue converts a decoded JSON value into a Node. Values of Go types
// that JSON decoding never produces are treated as null.
func FromValue(v any) Node {
	switch t := v.(type) {
	case nil:
		return Null
	case string:
		return String(t)
	case bool:
		return Node{Kind: KindBool, Bool: t}
	case stdjson.Number:
		return Node{Kind: KindNumber, Str: string(t)}
	case float64:
		return Node{Kind: KindNumber, Str: strconv.FormatFloat(t, 'f', -1, 64)}
	case int:
		return Node{Kind: KindNumber, Str: strconv.Itoa(t)}
	case int64:
		return Node{Kind: KindNumber, Str: strconv.FormatInt(t, 10)}
	case []any:
		items := make([]Node, len(t))
		for i, item := range t {
			items[i] = FromValue(item)
		}
		return Node{Kind: KindArray, Items: items}
	case map[string]any:
		fields := make(map[string]Node, len(t))
		for k, item := range t {
			fields[k] = FromValue(item)
		}
		return Object(fields)
	}
	return Null
}

// FromJSON decodes a JSON document into a Node.
func FromJSON(data []byte) (Node, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Null, fmt.Errorf("decoding entry JSON: %w", err)
	}
	return FromValue(v), nil
}

// Interface converts n back into plain Go values: map[string]any, []any,
// string, bool, json.Number or nil.
func (n Node) Interface() any {
	switch n.Kind {
	case KindBool:
		return n.Bool
	case KindNumber:
		return stdjson.Number(n.Str)
	case KindString:
		return n.Str
	case KindArray:
		out := make([]any, len(n.Items))
		for i, item := range n.Items {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(n.Fields))
		for k, item := range n.Fields {
			out[k] = item.Interface()
		}
		return out
	}
	return nil
}

// ---------------------------------------------------------------------------
// Entries
// ---------------------------------------------------------------------------

// Identity field names carried by every localizable CMS entry.
const (
	FieldL10nID     = "l10nId"
	FieldName       = "name"
	FieldEntrypoint = "entrypoint"
)

// Entry is a CMS record with its identity fields lifted out of the tree.
type Entry struct {
	// L10nID groups every localizable field of this entry.
	L10nID string
	// Name is the human-readable entry name (optional).
	Name string
	// Entrypoint identifies the product surface the entry belongs to (optional).
	Entrypoint string
	// Root is the full entry tree, identity fields included.
	Root Node
}

// NewEntry lifts the identity fields out of root. It returns false when
// root is not an object or has no usable l10nId; such entries are not
// localizable.
func NewEntry(root Node) (Entry, bool) {
	if root.Kind != KindObject {
		return Entry{}, false
	}
	id, ok := root.Get(FieldL10nID).Text()
	if !ok || strings.TrimSpace(id) == "" {
		return Entry{}, false
	}
	name, _ := root.Get(FieldName).Text()
	entrypoint, _ := root.Get(FieldEntrypoint).Text()
	return Entry{
		L10nID:     strings.TrimSpace(id),
		Name:       name,
		Entrypoint: entrypoint,
		Root:       root,
	}, true
}

// Map returns the entry tree as a plain map, suitable for merging and
// JSON encoding.
func (e Entry) Map() map[string]any {
	m, _ := e.Root.Interface().(map[string]any)
	if m == nil {
		m = make(map[string]any)
	}
	return m
}
