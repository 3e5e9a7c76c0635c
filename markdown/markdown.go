// Package markdown renders Markdown long-text fields to HTML, as strings or as
// templ components.
package markdown

import (
	"bytes"
	"context"
	"html"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in the source is omitted and unsafe link schemes are blanked,
// which is goldmark's default without html.WithUnsafe.
var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
	goldmark.WithRendererOptions(
		gmhtml.WithHardWraps(),
	),
)

// Render converts src to HTML.
func Render(src string) (string, error) {
	var buf bytes.Buffer
	if err := RenderTo(&buf, src); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderTo writes the HTML representation of src to w.
func RenderTo(w io.Writer, src string) error {
	return md.Convert([]byte(src), w)
}

// Markdown returns a templ.Component that renders src as HTML.
func Markdown(src string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return RenderTo(w, src)
	})
}

// SafeURL validates and sanitizes a URL for use in HTML attributes.
// Relative paths and http, https, mailto and tel URLs pass; anything else
// becomes "".
func SafeURL(raw string) string {
	val := strings.TrimSpace(html.UnescapeString(raw))
	if val == "" {
		return ""
	}
	if strings.HasPrefix(val, "/") || strings.HasPrefix(val, "#") {
		return html.EscapeString(val)
	}
	parsed, err := url.Parse(val)
	if err != nil || parsed.Scheme == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "mailto", "tel":
		return html.EscapeString(val)
	default:
		return ""
	}
}
