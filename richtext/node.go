// Package richtext renders Contentful rich text documents to HTML or plain text.
package richtext

// Kind identifies a rich text node.
type Kind string

// Block kinds.
const (
	Document            Kind = "document"
	Paragraph           Kind = "paragraph"
	Heading1            Kind = "heading-1"
	Heading2            Kind = "heading-2"
	Heading3            Kind = "heading-3"
	Heading4            Kind = "heading-4"
	Heading5            Kind = "heading-5"
	Heading6            Kind = "heading-6"
	UnorderedList       Kind = "unordered-list"
	OrderedList         Kind = "ordered-list"
	ListItem            Kind = "list-item"
	Quote               Kind = "blockquote"
	HorizontalRule      Kind = "hr"
	EmbeddedEntryBlock  Kind = "embedded-entry-block"
	EmbeddedAssetBlock  Kind = "embedded-asset-block"
	Hyperlink           Kind = "hyperlink"
	EntryHyperlink      Kind = "entry-hyperlink"
	AssetHyperlink      Kind = "asset-hyperlink"
	EmbeddedEntryInline Kind = "embedded-entry-inline"
	Text                Kind = "text"
)

// Mark types applied to text nodes.
const (
	MarkBold      = "bold"
	MarkItalic    = "italic"
	MarkUnderline = "underline"
	MarkCode      = "code"
)

// Node is one element of a rich text tree. Text nodes carry Value and Marks;
// blocks and inlines carry Content and, for links and embeds, Data.
type Node struct {
	NodeType Kind    `json:"nodeType"`
	Value    string  `json:"value,omitempty"`
	Marks    []Mark  `json:"marks,omitempty"`
	Data     Data    `json:"data"`
	Content  []*Node `json:"content,omitempty"`
}

// Mark is a text decoration such as bold or code.
type Mark struct {
	Type string `json:"type"`
}

// Data holds the link payload of hyperlink and embed nodes.
type Data struct {
	URI    string  `json:"uri,omitempty"`
	Target *Target `json:"target,omitempty"`
}

// Target references the entry or asset an inline or embed points at.
type Target struct {
	Sys struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		LinkType string `json:"linkType"`
	} `json:"sys"`
}

// TargetID returns the referenced id, or "" when the node has no target.
func (n *Node) TargetID() string {
	if n == nil || n.Data.Target == nil {
		return ""
	}
	return n.Data.Target.Sys.ID
}

// IsDocument reports whether n is a document root.
func (n *Node) IsDocument() bool {
	return n != nil && n.NodeType == Document
}

// Asset is a resolved binary resource referenced by embedded-asset blocks.
type Asset struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	ContentType string `json:"contentType"`
}

// AssetSource supplies assets to the HTML renderer, keyed by id.
type AssetSource interface {
	assetIndex() AssetMap
}

// AssetMap is an already-keyed asset lookup.
type AssetMap map[string]Asset

func (m AssetMap) assetIndex() AssetMap { return m }

// AssetList is an ordered asset sequence; it is indexed by id once per render.
type AssetList []Asset

func (l AssetList) assetIndex() AssetMap {
	m := make(AssetMap, len(l))
	for _, a := range l {
		if a.ID != "" {
			m[a.ID] = a
		}
	}
	return m
}
