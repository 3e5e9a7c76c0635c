package views

import "github.com/eringen/folioblog/blog"

// SiteConfig holds the site-wide settings every page reads.
type SiteConfig struct {
	Name        string
	URL         string
	Description string
	Author      string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string // og:image, optional
}

// Theme preferences. ThemeAuto follows the reader's system setting.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeAuto  = "auto"
)

// ValidTheme reports whether mode is one of the theme preferences.
func ValidTheme(mode string) bool {
	switch mode {
	case ThemeLight, ThemeDark, ThemeAuto:
		return true
	}
	return false
}

// Chrome is the per-request state shared by every page: theme and preview mode.
type Chrome struct {
	Theme   string
	Preview bool
	CSRF    string
}

// ListPage is the data for the post listing.
type ListPage struct {
	Site       SiteConfig
	Chrome     Chrome
	Posts      []blog.Post // current page
	Popular    []blog.Post
	Categories []string
	Category   string
	Query      string
	Page       int
	TotalPages int
	Total      int // matching posts across all pages
	Error      string
}

// PostPage is the data for a single post.
type PostPage struct {
	Site    SiteConfig
	Chrome  Chrome
	Post    blog.Post
	Related []blog.Post
}
