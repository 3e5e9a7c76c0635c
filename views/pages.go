package views

//go:generate templ generate

import (
	"html"

	"github.com/a-h/templ"

	"github.com/eringen/folioblog/markdown"
)

var themeModes = []string{ThemeLight, ThemeDark, ThemeAuto}

// Home renders the post listing with category pills, search and pagination.
func Home(p ListPage) templ.Component {
	meta := PageMeta{
		Title:       p.Site.Name,
		Description: p.Site.Description,
		URL:         buildURL(p.Site.URL),
		OGType:      "website",
	}
	return Layout(p.Site, meta, p.Chrome, WebsiteJsonLD(p.Site), BlogSection(p))
}

// Post renders a single post with its related posts.
func Post(p PostPage) templ.Component {
	post := p.Post
	meta := PageMeta{
		Title:       post.Title + " | " + p.Site.Name,
		Description: post.Excerpt,
		URL:         buildURL(p.Site.URL, "blog", post.Slug),
		OGType:      "article",
		Image:       imageURL(post.Thumbnail),
	}
	return Layout(p.Site, meta, p.Chrome, BlogPostingJsonLD(p.Site, post), PostBody(p))
}

// PreviewLogin renders the preview password form.
func PreviewLogin(site SiteConfig, chrome Chrome, showError bool) templ.Component {
	meta := PageMeta{Title: "Preview | " + site.Name, URL: buildURL(site.URL, "preview"), OGType: "website"}
	return Layout(site, meta, chrome, "", previewLoginBody(chrome.CSRF, showError))
}

// NotFound renders the 404 page.
func NotFound(site SiteConfig, chrome Chrome) templ.Component {
	return errorPage(site, chrome, "Page not found", "The page you are looking for does not exist.")
}

// ServerError renders the 500 page.
func ServerError(site SiteConfig, chrome Chrome) templ.Component {
	return errorPage(site, chrome, "Something went wrong", "Please try again later.")
}

func errorPage(site SiteConfig, chrome Chrome, title, message string) templ.Component {
	meta := PageMeta{Title: title + " | " + site.Name, URL: buildURL(site.URL), OGType: "website"}
	return Layout(site, meta, chrome, "", errorBody(title, message))
}

// jsonLDScript embeds structured data. The JSON encoder already escapes
// characters that could close the script element.
func jsonLDScript(data string) templ.Component {
	return templ.Raw(`<script type="application/ld+json">` + data + `</script>`)
}

// imageURL returns raw when it is safe to use as an image source, or "".
// Attribute escaping is left to the template.
func imageURL(raw string) string {
	return html.UnescapeString(markdown.SafeURL(raw))
}
