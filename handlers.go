package folioblog

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/folioblog/blog"
	"github.com/eringen/folioblog/contentful"
	"github.com/eringen/folioblog/views"
)

const (
	relatedLimit = 3
	popularLimit = 5
	popularDays  = 30

	// ctxPostSlug marks a rendered article for view counting.
	ctxPostSlug = "folio.post_slug"
)

func (a *App) setupRoutes() {
	e := a.Echo

	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	e.GET("/public/site.css", echo.WrapHandler(http.StripPrefix("/public/", http.FileServer(http.FS(embeddedFS)))))
	e.Static("/public", a.staticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/healthz", a.handleHealth)
	e.GET("/blog", handleBlogRedirect)
	e.GET("/", a.handleHome)

	var count []echo.MiddlewareFunc
	if a.Analytics != nil {
		count = append(count, a.Analytics.Middleware(countedSlug))
	}
	e.GET("/blog/:slug/", a.handlePost, count...)
	e.GET("/thumb/:id/", a.handleThumbnail)
	e.GET("/theme/:mode/", a.handleTheme)

	e.GET("/preview/", a.handlePreview)
	e.POST("/preview/login/", a.handlePreviewLogin)
	e.POST("/preview/logout/", handlePreviewLogout)
	e.POST("/refresh/", a.handleRefresh, a.requirePreview)

	e.GET("/api/posts", a.handleAPIPosts)
	e.GET("/api/posts/:id", a.handleAPIPost)
	e.GET("/api/categories", a.handleAPICategories)
	e.GET("/api/tags", a.handleAPITags)
	e.GET("/api/diagnostics", a.handleDiagnostics, a.requirePreview)

	if a.Analytics != nil {
		a.Analytics.RegisterRoutes(e, a.requirePreview)
	}
}

func countedSlug(c echo.Context) (string, bool) {
	slug, ok := c.Get(ctxPostSlug).(string)
	return slug, ok && slug != ""
}

func (a *App) listPage(c echo.Context) views.ListPage {
	ctx := c.Request().Context()
	posts := a.Store.FetchPosts(ctx, blog.FetchOptions{})
	categories := a.Store.FetchCategories(ctx, blog.FetchOptions{})

	category := strings.TrimSpace(c.QueryParam("category"))
	query := querySearch(c)
	page := queryPage(c)
	perPage := a.Store.ItemsPerPage()

	filtered := blog.FilterPosts(posts, blog.Filter{Category: category, Query: query})
	return views.ListPage{
		Site:       a.site(),
		Chrome:     a.chrome(c),
		Posts:      blog.Paginate(filtered, page, perPage),
		Popular:    a.popular(ctx, posts),
		Categories: categories,
		Category:   category,
		Query:      query,
		Page:       page,
		TotalPages: blog.PageCount(len(filtered), perPage),
		Total:      len(filtered),
		Error:      a.Store.Err(),
	}
}

func (a *App) handleHome(c echo.Context) error {
	p := a.listPage(c)
	if isPartial(c, "blog") {
		return Render(c, a.Views.BlogSection(p))
	}
	return Render(c, a.Views.Home(p))
}

// popular maps the most viewed slugs onto the held posts.
func (a *App) popular(ctx context.Context, posts []blog.Post) []blog.Post {
	if a.Analytics == nil || len(posts) == 0 {
		return nil
	}
	slugs, err := a.Analytics.TopSlugs(ctx, popularDays, popularLimit)
	if err != nil {
		a.log.Warn("folioblog: popular posts unavailable", "error", err)
		return nil
	}
	bySlug := make(map[string]blog.Post, len(posts))
	for _, p := range posts {
		bySlug[p.Slug] = p
	}
	var out []blog.Post
	for _, s := range slugs {
		if p, ok := bySlug[s]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (a *App) handlePost(c echo.Context) error {
	ctx := c.Request().Context()
	slug := c.Param("slug")
	preview := IsPreview(c) && a.Config.PreviewToken != ""

	post, err := a.findPost(ctx, slug, preview)
	if err != nil {
		if errors.Is(err, blog.ErrNotFound) || contentful.IsNotFound(err) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site(), a.chrome(c)))
		}
		return err
	}
	if !preview {
		c.Set(ctxPostSlug, post.Slug)
	}

	page := views.PostPage{
		Site:    a.site(),
		Chrome:  a.chrome(c),
		Post:    post,
		Related: blog.RelatedPosts(post, a.Store.Posts(), relatedLimit),
	}
	if isPartial(c, "post") {
		return Render(c, a.Views.PostBody(page))
	}
	return Render(c, a.Views.Post(page))
}

// findPost serves published posts from the store and asks the content API
// for previews and for slugs beyond the fetched list.
func (a *App) findPost(ctx context.Context, slug string, preview bool) (blog.Post, error) {
	if !preview {
		a.Store.FetchPosts(ctx, blog.FetchOptions{})
		if p, err := a.Store.PostBySlug(slug); err == nil {
			return p, nil
		}
	}
	e, err := a.finder.GetArticleBySlug(ctx, slug, preview)
	if err != nil {
		return blog.Post{}, err
	}
	return blog.PostFromEntry(e), nil
}

func (a *App) handleSitemap(c echo.Context) error {
	ctx := c.Request().Context()
	posts := a.Store.FetchPosts(ctx, blog.FetchOptions{})
	categories := a.Store.FetchCategories(ctx, blog.FetchOptions{})
	return a.renderSitemap(c, posts, categories)
}

func (a *App) handleFeed(c echo.Context) error {
	posts := a.Store.FetchPosts(c.Request().Context(), blog.FetchOptions{})
	return a.renderRSS(c, posts)
}

func handleBlogRedirect(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/")
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(filepath.Join(a.staticDir, "favicon.svg"))
}

// handleRobots serves the static robots.txt when present and a generated
// one otherwise.
func (a *App) handleRobots(c echo.Context) error {
	path := filepath.Join(a.staticDir, "robots.txt")
	if _, err := os.Stat(path); err == nil {
		return c.File(path)
	}
	var b strings.Builder
	b.WriteString("User-agent: *\nAllow: /\nDisallow: /preview/\nDisallow: /api/\nDisallow: /refresh/\n\n")
	b.WriteString("Sitemap: " + strings.TrimRight(a.Config.URL, "/") + "/sitemap.xml\n")
	return c.String(http.StatusOK, b.String())
}

func (a *App) handleHealth(c echo.Context) error {
	posts := a.Store.Posts()
	resp := HealthResponse{
		Status:  "ok",
		Posts:   len(posts),
		Error:   a.Store.Err(),
		Space:   a.Config.SpaceID,
		Preview: a.Config.PreviewEnabled(),
	}
	if t := a.Store.LastFetch(); !t.IsZero() {
		resp.LastFetch = t.UTC().Format(time.RFC3339)
	}
	code := http.StatusOK
	if resp.Error != "" {
		resp.Status = "degraded"
		if len(posts) == 0 {
			code = http.StatusServiceUnavailable
		}
	}
	return c.JSON(code, resp)
}

// handleRefresh drops the cache and refetches everything.
func (a *App) handleRefresh(c echo.Context) error {
	ctx := c.Request().Context()
	a.Store.Invalidate()
	opts := blog.FetchOptions{ForceRefresh: true}
	a.Store.FetchPosts(ctx, opts)
	a.Store.FetchCategories(ctx, opts)
	a.Store.FetchTags(ctx, opts)
	a.log.Info("folioblog: cache refreshed", "posts", len(a.Store.Posts()), "error", a.Store.Err())
	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) {
		return a.handleHealth(c)
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (a *App) handleAPIPosts(c echo.Context) error {
	ctx := c.Request().Context()
	posts := a.Store.FetchPosts(ctx, blog.FetchOptions{})

	category := strings.TrimSpace(c.QueryParam("category"))
	query := querySearch(c)
	page := queryPage(c)
	perPage := queryInt(c, "perPage", a.Store.ItemsPerPage(), 1, 100)

	filtered := blog.FilterPosts(posts, blog.Filter{Category: category, Query: query})
	return c.JSON(http.StatusOK, PostsResponse{
		Posts:      summarize(a.Config.URL, blog.Paginate(filtered, page, perPage)),
		Category:   category,
		Query:      query,
		Page:       page,
		PerPage:    perPage,
		TotalPages: blog.PageCount(len(filtered), perPage),
		Total:      len(filtered),
		Error:      a.Store.Err(),
	})
}

func (a *App) handleAPIPost(c echo.Context) error {
	post, err := a.Store.FetchPostByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		code := contentful.StatusOf(err)
		if code < 400 {
			code = http.StatusBadGateway
		}
		return c.JSON(code, map[string]string{"error": a.Store.Err()})
	}
	return c.JSON(http.StatusOK, post)
}

func (a *App) handleAPICategories(c echo.Context) error {
	items := a.Store.FetchCategories(c.Request().Context(), blog.FetchOptions{})
	return c.JSON(http.StatusOK, NamesResponse{Items: nonNil(items), Error: a.Store.Err()})
}

func (a *App) handleAPITags(c echo.Context) error {
	items := a.Store.FetchTags(c.Request().Context(), blog.FetchOptions{})
	return c.JSON(http.StatusOK, NamesResponse{Items: nonNil(items), Error: a.Store.Err()})
}

func (a *App) handleDiagnostics(c echo.Context) error {
	return c.JSON(http.StatusOK, a.Client.Diagnostics())
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		if code >= 500 {
			a.log.Error("folioblog: api error", "path", c.Request().URL.Path, "error", err)
		}
		a.Echo.DefaultHTTPErrorHandler(err, c)
		return
	}
	if code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.site(), a.chrome(c)))
		return
	}
	if code >= 500 {
		a.log.Error("folioblog: server error", "path", c.Request().URL.Path, "error", err)
		_ = RenderStatus(c, code, a.Views.ServerError(a.site(), a.chrome(c)))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
