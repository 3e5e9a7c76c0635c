package folioblog

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/folioblog/blog"
	"github.com/eringen/folioblog/contentful"
)

func TestHomeListsPosts(t *testing.T) {
	app := newTestApp(t, newStubSource(), nil)
	rec := newBrowser(t, app).get("/")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<!doctype html>")
	for _, slug := range []string{"alpha", "beta", "gamma", "delta"} {
		assert.Contains(t, body, `href="/blog/`+slug+`/"`)
	}
	assert.Contains(t, body, `href="/?category=CSS"`)
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))
}

func TestHomeFiltersAndPaginates(t *testing.T) {
	app := newTestApp(t, newStubSource(), func(c *SiteConfig) { c.ItemsPerPage = 2 })
	b := newBrowser(t, app)

	rec := b.get("/?category=Go&page=2")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `href="/blog/delta/"`)
	assert.NotContains(t, body, `href="/blog/alpha/"`)
	assert.NotContains(t, body, `href="/blog/gamma/"`)
	assert.Contains(t, body, `rel="prev"`)

	rec = b.get("/?q=gamma")
	body = rec.Body.String()
	assert.Contains(t, body, `href="/blog/gamma/"`)
	assert.NotContains(t, body, `href="/blog/beta/"`)

	rec = b.get("/?q=nothing-matches")
	assert.Contains(t, rec.Body.String(), "No posts found.")
}

func TestHomePartial(t *testing.T) {
	app := newTestApp(t, newStubSource(), nil)
	rec := newBrowser(t, app).do(http.MethodGet, "/?partial=blog", nil, map[string]string{"HX-Request": "true"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<!doctype html>")
	assert.Contains(t, rec.Body.String(), `href="/blog/alpha/"`)
}

func TestHomeShowsFetchError(t *testing.T) {
	src := newStubSource()
	src.err = &contentful.Error{Status: http.StatusUnauthorized, Message: "Unauthorized"}
	app := newTestApp(t, src, nil)
	rec := newBrowser(t, app).get("/")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `role="alert">Failed to load`)
	assert.Contains(t, body, "No posts found.")
}

func TestPostPage(t *testing.T) {
	app := newTestApp(t, newStubSource(), nil)
	rec := newBrowser(t, app).get("/blog/alpha/")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<h1>Alpha</h1>")
	assert.Contains(t, body, "<strong>Alpha</strong>")
	assert.Contains(t, body, "Related posts")
	assert.Contains(t, body, `href="/blog/beta/"`)
}

func TestPostPartial(t *testing.T) {
	app := newTestApp(t, newStubSource(), nil)
	rec := newBrowser(t, app).do(http.MethodGet, "/blog/beta/?partial=post", nil, map[string]string{"HX-Request": "true"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), `<article class="post">`))
}

func TestPostNotFound(t *testing.T) {
	src := newStubSource()
	app := newTestApp(t, src, nil)
	rec := newBrowser(t, app).get("/blog/missing/")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found")
	assert.Equal(t, 1, src.slugCalls)
}

func TestPostFallsBackToSlugLookup(t *testing.T) {
	src := newStubSource()
	src.hidden = []contentful.Entry{article("8", "Archived", "Go")}
	app := newTestApp(t, src, nil)
	rec := newBrowser(t, app).get("/blog/archived/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Archived</h1>")
}

func TestPostWithoutTrailingSlashRedirects(t *testing.T) {
	app := newTestApp(t, newStubSource(), nil)
	rec := newBrowser(t, app).get("/blog/alpha")

	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/blog/alpha/", rec.Header().Get("Location"))
}

func TestUnknownRouteRendersNotFound(t *testing.T) {
	app := newTestApp(t, newStubSource(), nil)
	rec := newBrowser(t, app).get("/nowhere/")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found")
}

func TestPreviewShowsDrafts(t *testing.T) {
	src := newStubSource()
	src.drafts = []contentful.Entry{article("9", "Draft", "Go")}
	app := newTestApp(t, src, nil)
	b := newBrowser(t, app)

	rec := b.get("/blog/draft/")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = b.get("/preview/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="_csrf"`)

	b.login()
	rec = b.get("/blog/draft/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Draft</h1>")
	assert.Equal(t, "private, no-store", rec.Header().Get("Cache-Control"))

	rec = b.get("/preview/")
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = b.post("/preview/logout/", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	rec = b.get("/blog/draft/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewWrongPassword(t *testing.T) {
	app := newTestApp(t, newStubSource(), nil)
	b := newBrowser(t, app)

	rec := b.post("/preview/login/", url.Values{"password": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Wrong password.")
}

func TestPreviewLoginRateLimited(t *testing.T) {
	app := newTestApp(t, newStubSource(), nil)
	b := newBrowser(t, app)

	for i := 0; i < 5; i++ {
		rec := b.post("/preview/login/", url.Values{"password": {"nope"}})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := b.post("/preview/login/", url.Values{"password": {app.Config.PreviewPassword}})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestPreviewLoginRequiresCSRF(t *testing.T) {
	app := newTestApp(t, newStubSource(), nil)
	rec := newBrowser(t, app).do(http.MethodPost, "/preview/login/",
		url.Values{"password": {app.Config.PreviewPassword}}, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPreviewDisabledWithoutPassword(t *testing.T) {
	app := newTestApp(t, newStubSource(), func(c *SiteConfig) { c.PreviewPassword = "" })
	rec := newBrowser(t, app).get("/preview/")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefresh(t *testing.T) {
	src := newStubSource()
	app := newTestApp(t, src, nil)
	b := newBrowser(t, app)

	rec := b.post("/refresh/", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/preview/", rec.Header().Get("Location"))
	assert.Equal(t, 0, src.listCalls)

	b.get("/")
	require.Equal(t, 1, src.listCalls)
	b.get("/")
	assert.Equal(t, 1, src.listCalls, "second page view should be served from cache")

	b.login()
	rec = b.post("/refresh/", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, 2, src.listCalls)
}

func TestThemeSwitch(t *testing.T) {
	app := newTestApp(t, newStubSource(), nil)
	b := newBrowser(t, app)

	rec := b.do(http.MethodGet, "/theme/dark/", nil, map[string]string{"Referer": "http://example.com/blog/alpha/"})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/blog/alpha/", rec.Header().Get("Location"))

	rec = b.get("/")
	assert.Contains(t, rec.Body.String(), `data-theme="dark"`)

	rec = b.do(http.MethodGet, "/theme/light/", nil, map[string]string{"Referer": "https://evil.example.org/"})
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = b.get("/theme/purple/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeed(t *testing.T) {
	app := newTestApp(t, newStubSource(), nil)
	rec := newBrowser(t, app).get("/feed.xml")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/rss+xml; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Folio</title>")
	assert.Contains(t, body, "<title>Alpha</title>")
	assert.Contains(t, body, "<link>https://example.com/blog/alpha/</link>")
	assert.Contains(t, body, "<category>backend</category>")
	assert.Contains(t, body, "<lastBuildDate>")
}

func TestSitemap(t *testing.T) {
	app := newTestApp(t, newStubSource(), nil)
	rec := newBrowser(t, app).get("/sitemap.xml")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<loc>https://example.com</loc>")
	assert.Contains(t, body, "<loc>https://example.com/?category=Go</loc>")
	assert.Contains(t, body, "<loc>https://example.com/blog/gamma/</loc>")
	assert.Contains(t, body, "<lastmod>2024-01-13</lastmod>")
}

func TestRobotsGenerated(t *testing.T) {
	app := newTestApp(t, newStubSource(), nil)
	rec := newBrowser(t, app).get("/robots.txt")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sitemap: https://example.com/sitemap.xml")
	assert.Contains(t, rec.Body.String(), "Disallow: /preview/")
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, newStubSource(), nil)
	b := newBrowser(t, app)
	b.get("/")

	var resp HealthResponse
	rec := b.get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 4, resp.Posts)
	assert.NotEmpty(t, resp.LastFetch)
	assert.True(t, resp.Preview)
}

func TestHealthDegraded(t *testing.T) {
	src := newStubSource()
	src.err = errOffline
	app := newTestApp(t, src, nil)
	b := newBrowser(t, app)
	b.get("/")

	var resp HealthResponse
	rec := b.get("/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Contains(t, resp.Error, "Please try again later.")
}

func TestAPIPosts(t *testing.T) {
	app := newTestApp(t, newStubSource(), nil)
	b := newBrowser(t, app)

	var resp PostsResponse
	rec := b.get("/api/posts?perPage=3&page=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Total)
	assert.Equal(t, 2, resp.TotalPages)
	assert.Equal(t, 2, resp.Page)
	require.Len(t, resp.Posts, 1)
	assert.Equal(t, "Delta", resp.Posts[0].Title)
	assert.Equal(t, "https://example.com/blog/delta/", resp.Posts[0].URL)

	resp = PostsResponse{}
	rec = b.get("/api/posts?category=CSS")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Posts, 1)
	assert.Equal(t, "Gamma", resp.Posts[0].Title)
	assert.Equal(t, []string{"frontend"}, resp.Posts[0].Tags)
}

func TestAPIPostByID(t *testing.T) {
	app := newTestApp(t, newStubSource(), nil)
	b := newBrowser(t, app)

	var post blog.Post
	rec := b.get("/api/posts/3")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
	assert.Equal(t, "Gamma", post.Title)
	assert.Equal(t, "CSS", post.Category)

	rec = b.get("/api/posts/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to load post: The resource could not be found.")
}

func TestAPINames(t *testing.T) {
	app := newTestApp(t, newStubSource(), nil)
	b := newBrowser(t, app)

	var resp NamesResponse
	rec := b.get("/api/categories")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"CSS", "Go"}, resp.Items)

	resp = NamesResponse{}
	rec = b.get("/api/tags")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"backend", "frontend", "testing"}, resp.Items)
}

func TestDiagnosticsRequiresPreview(t *testing.T) {
	app := newTestApp(t, newStubSource(), nil)
	b := newBrowser(t, app)

	rec := b.get("/api/diagnostics")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	b.login()
	rec = b.get("/api/diagnostics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "space")
}

func TestPopularPostsFromViews(t *testing.T) {
	app := newTestApp(t, newStubSource(), func(c *SiteConfig) { c.AnalyticsEnabled = true })
	b := newBrowser(t, app)

	require.Equal(t, http.StatusOK, b.get("/blog/gamma/").Code)
	b.do(http.MethodGet, "/blog/beta/", nil, map[string]string{"DNT": "1"})

	rec := b.get("/")
	body := rec.Body.String()
	require.Contains(t, body, `<aside class="popular">`)
	popular := body[strings.Index(body, `<aside class="popular">`):]
	assert.Contains(t, popular, `href="/blog/gamma/"`)
	assert.NotContains(t, popular, `href="/blog/beta/"`)

	rec = b.get("/api/stats/popular")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"slug":"gamma","path":"/blog/gamma/","views":1}]`, rec.Body.String())
}

func TestPreviewViewsAreNotCounted(t *testing.T) {
	src := newStubSource()
	app := newTestApp(t, src, func(c *SiteConfig) { c.AnalyticsEnabled = true })
	b := newBrowser(t, app)
	b.login()

	require.Equal(t, http.StatusOK, b.get("/blog/alpha/").Code)
	slugs, err := app.Analytics.TopSlugs(t.Context(), 30, 5)
	require.NoError(t, err)
	assert.Empty(t, slugs)
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestScaleImage(t *testing.T) {
	out, err := scaleImage(bytes.NewReader(testPNG(t, 1000, 500)))
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, thumbWidth, cfg.Width)
	assert.Equal(t, 320, cfg.Height)

	out, err = scaleImage(bytes.NewReader(testPNG(t, 200, 100)))
	require.NoError(t, err)
	cfg, err = jpeg.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Width)

	_, err = scaleImage(strings.NewReader("not an image"))
	assert.Error(t, err)
}

func TestThumbnail(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/broken.png" {
			http.Error(w, "gone", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(testPNG(t, 1000, 500))
	}))
	defer srv.Close()

	src := newStubSource()
	src.articles[0]["thumbnail"] = &contentful.Asset{ID: "img1", URL: srv.URL + "/a.png"}
	src.articles[1]["thumbnail"] = &contentful.Asset{ID: "img2", URL: srv.URL + "/broken.png"}
	app := newTestApp(t, src, nil, WithHTTPClient(srv.Client()))
	b := newBrowser(t, app)

	rec := b.get("/")
	assert.Contains(t, rec.Body.String(), `src="/thumb/img1/"`)

	rec = b.get("/thumb/img1/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	cfg, err := jpeg.DecodeConfig(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, thumbWidth, cfg.Width)

	b.get("/thumb/img1/")
	assert.Equal(t, int32(1), hits.Load(), "second request should be served from memory")

	rec = b.get("/thumb/img2/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, srv.URL+"/broken.png", rec.Header().Get("Location"))

	rec = b.get("/thumb/unknown/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuildFeedLimit(t *testing.T) {
	app := New(SiteConfig{Name: "Folio", URL: "https://example.com"}, ViewFuncs{})
	posts := make([]blog.Post, 25)
	for i := range posts {
		posts[i] = blog.Post{Title: "p", Slug: "p", Category: blog.Uncategorized, PublishedDate: "2024-02-01"}
	}

	feed := app.buildFeed(posts, time.Time{})
	assert.Len(t, feed.Channel.Items, feedLimit)
	assert.Empty(t, feed.Channel.LastBuildDate)
	assert.Empty(t, feed.Channel.Items[0].Categories)
	assert.Equal(t, "Thu, 01 Feb 2024 00:00:00 +0000", feed.Channel.Items[0].PubDate)
}

func TestBuildSitemapPrefersUpdatedAt(t *testing.T) {
	app := New(SiteConfig{URL: "https://example.com/"}, ViewFuncs{})
	set := app.buildSitemap([]blog.Post{
		{Slug: "a", PublishedDate: "2024-01-01", UpdatedAt: "2024-03-05T10:00:00.000Z"},
		{Slug: "b", PublishedDate: "not a date"},
	}, []string{"Go & Web"})

	require.Len(t, set.URLs, 4)
	assert.Equal(t, "https://example.com/?category=Go+%26+Web", set.URLs[1].Loc)
	assert.Equal(t, "2024-03-05", set.URLs[2].LastMod)
	assert.Empty(t, set.URLs[3].LastMod)
}
