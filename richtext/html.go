package richtext

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/a-h/templ"
)

// HTML is markup produced by the renderer. It is already escaped.
type HTML string

// Component returns a templ.Component that writes h verbatim.
func (h HTML) Component() templ.Component {
	return templ.Raw(string(h))
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// Escape replaces & < > " ' with their HTML entities.
func Escape(s string) string {
	return escaper.Replace(s)
}

// ToHTML renders doc as HTML. Embedded assets are looked up in assets.
// A nil or non-document root renders to "".
func ToHTML(doc *Node, assets AssetSource) string {
	if !doc.IsDocument() {
		return ""
	}
	r := htmlRenderer{}
	if assets != nil {
		r.assets = assets.assetIndex()
	}
	return r.nodes(doc.Content)
}

// Component returns a templ.Component rendering doc as HTML.
func Component(doc *Node, assets AssetSource) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, ToHTML(doc, assets))
		return err
	})
}

type htmlRenderer struct {
	assets AssetMap
}

func (r htmlRenderer) nodes(nodes []*Node) string {
	var b strings.Builder
	for _, n := range nodes {
		if n == nil {
			continue
		}
		b.WriteString(r.node(n))
	}
	return b.String()
}

func (r htmlRenderer) node(n *Node) string {
	switch n.NodeType {
	case Text:
		return applyMarks(Escape(n.Value), n.Marks)
	case Document, EmbeddedEntryBlock, EntryHyperlink, AssetHyperlink, EmbeddedEntryInline:
		return r.nodes(n.Content)
	case Paragraph:
		inner := r.nodes(n.Content)
		if inner == "" {
			return ""
		}
		return "<p>" + inner + "</p>"
	case Heading1:
		return wrap("h1", r.nodes(n.Content))
	case Heading2:
		return wrap("h2", r.nodes(n.Content))
	case Heading3:
		return wrap("h3", r.nodes(n.Content))
	case Heading4:
		return wrap("h4", r.nodes(n.Content))
	case Heading5:
		return wrap("h5", r.nodes(n.Content))
	case Heading6:
		return wrap("h6", r.nodes(n.Content))
	case UnorderedList:
		return wrap("ul", r.nodes(n.Content))
	case OrderedList:
		return wrap("ol", r.nodes(n.Content))
	case ListItem:
		return wrap("li", r.nodes(n.Content))
	case Quote:
		return wrap("blockquote", r.nodes(n.Content))
	case HorizontalRule:
		return "<hr/>"
	case EmbeddedAssetBlock:
		return r.embeddedAsset(n)
	case Hyperlink:
		href := safeURL(n.Data.URI)
		if href == "" {
			href = "#"
		}
		return `<a href="` + Escape(href) + `" target="_blank" rel="noopener noreferrer">` + r.nodes(n.Content) + "</a>"
	default:
		slog.Warn("richtext: unknown node type", "nodeType", string(n.NodeType))
		if len(n.Content) == 0 {
			return ""
		}
		return r.nodes(n.Content)
	}
}

func (r htmlRenderer) embeddedAsset(n *Node) string {
	id := n.TargetID()
	if id == "" {
		return ""
	}
	asset, ok := r.assets[id]
	if !ok || safeURL(asset.URL) == "" {
		return ""
	}
	if strings.HasPrefix(asset.ContentType, "image/") {
		alt := asset.Title
		if alt == "" {
			alt = "Image"
		}
		return `<img src="` + Escape(asset.URL) + `" alt="` + Escape(alt) + `" loading="lazy">`
	}
	label := asset.Title
	if label == "" {
		label = "Download"
	}
	return `<a href="` + Escape(asset.URL) + `" target="_blank" rel="noopener noreferrer">` + Escape(label) + "</a>"
}

// safeURL returns raw trimmed when it is relative, a fragment, or an http,
// https, mailto or tel URL, and "" otherwise. The result is not escaped.
func safeURL(raw string) string {
	val := strings.TrimSpace(raw)
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "#") || (strings.HasPrefix(val, "/") && !strings.HasPrefix(val, "//")) {
		return val
	}
	u, err := url.Parse(val)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto", "tel":
		return val
	case "":
		// Relative reference such as "posts/a"; a colon before any slash
		// would have made it a scheme.
		if u.Host == "" && !strings.Contains(val, ":") {
			return val
		}
	}
	return ""
}

// applyMarks wraps text in one tag per mark, in the order the marks are listed.
func applyMarks(text string, marks []Mark) string {
	for _, m := range marks {
		switch m.Type {
		case MarkBold:
			text = wrap("strong", text)
		case MarkItalic:
			text = wrap("em", text)
		case MarkUnderline:
			text = wrap("u", text)
		case MarkCode:
			text = wrap("code", text)
		}
	}
	return text
}

func wrap(tag, inner string) string {
	return "<" + tag + ">" + inner + "</" + tag + ">"
}
