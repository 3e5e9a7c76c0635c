package contentful

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/eringen/folioblog/richtext"
)

// maxLinkDepth bounds how many entry hops a single normalization follows.
const maxLinkDepth = 10

// Normalize resolves the links in raw against includes and flattens its rich
// text fields: "content" becomes HTML, any other document becomes plain text.
// Links that cannot be resolved become nil and are dropped from link arrays.
func Normalize(raw RawEntry, includes *Includes) Entry {
	t := newLinkTable(includes)
	return t.normalize(raw, nil, 0)
}

// linkTable is an immutable id index over one response's includes.
type linkTable struct {
	entries map[string]RawEntry
	assets  map[string]RawEntry
	list    richtext.AssetList
}

func newLinkTable(includes *Includes) *linkTable {
	t := &linkTable{
		entries: make(map[string]RawEntry),
		assets:  make(map[string]RawEntry),
	}
	if includes == nil {
		return t
	}
	for _, e := range includes.Entry {
		t.entries[e.Sys.ID] = e
	}
	for _, a := range includes.Asset {
		t.assets[a.Sys.ID] = a
		if asset := toAsset(a); asset != nil {
			t.list = append(t.list, *asset)
		}
	}
	return t
}

// normalize builds the Entry for raw. path holds the ids of the entries being
// resolved above this one; a link back into path resolves to nil.
func (t *linkTable) normalize(raw RawEntry, path []string, depth int) Entry {
	path = append(path, raw.Sys.ID)
	out := Entry{
		"id":          raw.Sys.ID,
		"contentType": raw.ContentTypeID(),
		"createdAt":   raw.Sys.CreatedAt,
		"updatedAt":   raw.Sys.UpdatedAt,
	}
	for key, value := range raw.Fields {
		out[key] = t.field(key, value, path, depth)
	}
	return out
}

func (t *linkTable) field(key string, value json.RawMessage, path []string, depth int) any {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return nil
	}
	switch value[0] {
	case '{':
		var shape struct {
			Sys      *Sys          `json:"sys"`
			NodeType richtext.Kind `json:"nodeType"`
		}
		if err := json.Unmarshal(value, &shape); err != nil {
			break
		}
		if shape.Sys != nil && shape.Sys.Type == "Link" {
			resolved := t.resolve(Link{Sys: *shape.Sys}, path, depth)
			if key == "tags" {
				if resolved == nil {
					return []any{}
				}
				return []any{resolved}
			}
			return resolved
		}
		if shape.NodeType == richtext.Document {
			var doc richtext.Node
			if err := json.Unmarshal(value, &doc); err != nil {
				break
			}
			if key == "content" {
				return richtext.HTML(richtext.ToHTML(&doc, t.list))
			}
			return richtext.ToPlainText(&doc)
		}
	case '[':
		if links, ok := decodeLinks(value); ok {
			resolved := make([]any, 0, len(links))
			for _, l := range links {
				if !l.IsLink() {
					continue
				}
				if v := t.resolve(l, path, depth); v != nil {
					resolved = append(resolved, v)
				}
			}
			return resolved
		}
	}
	var v any
	if err := json.Unmarshal(value, &v); err != nil {
		slog.Warn("contentful: undecodable field", "field", key, "error", err)
		return nil
	}
	return v
}

// decodeLinks reports whether value is a non-empty array whose first element
// is a link, returning every element decoded as a Link.
func decodeLinks(value json.RawMessage) ([]Link, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(value, &items); err != nil || len(items) == 0 {
		return nil, false
	}
	var first Link
	if err := json.Unmarshal(items[0], &first); err != nil || !first.IsLink() {
		return nil, false
	}
	links := make([]Link, len(items))
	for i, item := range items {
		_ = json.Unmarshal(item, &links[i])
	}
	return links, true
}

// resolve returns a nested Entry, an *Asset, or nil. It never returns a typed nil.
func (t *linkTable) resolve(l Link, path []string, depth int) any {
	id := l.Sys.ID
	switch l.Sys.LinkType {
	case LinkEntry:
		raw, ok := t.entries[id]
		if !ok {
			slog.Debug("contentful: unresolved entry link", "id", id)
			return nil
		}
		if depth+1 > maxLinkDepth || contains(path, id) {
			slog.Debug("contentful: link cycle or depth limit", "id", id, "depth", depth)
			return nil
		}
		return t.normalize(raw, path, depth+1)
	case LinkAsset:
		raw, ok := t.assets[id]
		if !ok {
			slog.Debug("contentful: unresolved asset link", "id", id)
			return nil
		}
		if asset := toAsset(raw); asset != nil {
			return asset
		}
	}
	return nil
}

// toAsset converts an asset entry. Assets without a file do not resolve.
func toAsset(raw RawEntry) *Asset {
	fileRaw, ok := raw.Fields["file"]
	if !ok {
		return nil
	}
	var file assetFile
	if err := json.Unmarshal(fileRaw, &file); err != nil {
		return nil
	}
	var title string
	if titleRaw, ok := raw.Fields["title"]; ok {
		_ = json.Unmarshal(titleRaw, &title)
	}
	url := file.URL
	if strings.HasPrefix(url, "//") {
		url = "https:" + url
	}
	asset := &Asset{
		ID:          raw.Sys.ID,
		Title:       title,
		URL:         url,
		ContentType: file.ContentType,
	}
	if img := file.Details.Image; img != nil {
		asset.Width = img.Width
		asset.Height = img.Height
	}
	return asset
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
