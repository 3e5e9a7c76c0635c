package contentful

import (
	"encoding/json"

	"github.com/eringen/folioblog/richtext"
)

// Entry is a normalized entry: the sys-derived keys id, contentType, createdAt
// and updatedAt merged with the normalized fields. Values are JSON scalars,
// nested Entry values, *Asset, []any of resolved links, richtext.HTML for the
// rendered content field, or nil for links that did not resolve.
type Entry map[string]any

// ID returns the entry id.
func (e Entry) ID() string { return e.String("id") }

// ContentType returns the content type id.
func (e Entry) ContentType() string { return e.String("contentType") }

// Has reports whether key is present, even with a nil value.
func (e Entry) Has(key string) bool {
	_, ok := e[key]
	return ok
}

// String returns the value at key as a string. Rendered HTML counts.
func (e Entry) String(key string) string {
	switch v := e[key].(type) {
	case string:
		return v
	case richtext.HTML:
		return string(v)
	}
	return ""
}

// HTML returns the rendered rich text at key.
func (e Entry) HTML(key string) (richtext.HTML, bool) {
	h, ok := e[key].(richtext.HTML)
	return h, ok
}

// Int returns the numeric value at key truncated to int.
func (e Entry) Int(key string) int {
	switch v := e[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}

// Link returns the linked entry at key, or nil.
func (e Entry) Link(key string) Entry {
	linked, _ := e[key].(Entry)
	return linked
}

// Links returns the linked entries at key, skipping anything else.
func (e Entry) Links(key string) []Entry {
	switch v := e[key].(type) {
	case []any:
		out := make([]Entry, 0, len(v))
		for _, item := range v {
			if linked, ok := item.(Entry); ok {
				out = append(out, linked)
			}
		}
		return out
	case Entry:
		return []Entry{v}
	}
	return nil
}

// Asset returns the linked asset at key, or nil.
func (e Entry) Asset(key string) *Asset {
	a, _ := e[key].(*Asset)
	return a
}
