package folioblog

import (
	"encoding/xml"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folioblog/blog"
	"github.com/eringen/folioblog/views"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func (a *App) buildSitemap(posts []blog.Post, categories []string) sitemapURLSet {
	base := a.Config.URL
	urls := []sitemapURL{
		{Loc: BuildURL(base)},
	}
	for _, c := range categories {
		urls = append(urls, sitemapURL{Loc: strings.TrimRight(base, "/") + views.ListURL(c, "", 1)})
	}
	for _, p := range posts {
		lastMod := p.UpdatedAt
		if lastMod == "" {
			lastMod = p.Date()
		}
		if t, ok := views.ParseDate(lastMod); ok {
			lastMod = t.Format("2006-01-02")
		} else {
			lastMod = ""
		}
		urls = append(urls, sitemapURL{
			Loc:     BuildURL(base, "blog", p.Slug),
			LastMod: lastMod,
		})
	}
	return sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
}

func (a *App) renderSitemap(c echo.Context, posts []blog.Post, categories []string) error {
	return renderXML(c, "application/xml; charset=utf-8", a.buildSitemap(posts, categories))
}
