// Package folioblog serves a portfolio blog whose articles live in a
// Contentful space. It is built with Go, Echo, and templ.
//
// Posts are fetched through a cached store and rendered with ViewFuncs,
// which default to the views package and can be replaced one by one.
package folioblog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/folioblog/analytics"
	"github.com/eringen/folioblog/blog"
	"github.com/eringen/folioblog/contentful"
	"github.com/eringen/folioblog/views"
)

// ViewFuncs holds the templ components the handlers render. Nil fields fall
// back to DefaultViews.
type ViewFuncs struct {
	Home         func(p views.ListPage) templ.Component
	BlogSection  func(p views.ListPage) templ.Component
	Post         func(p views.PostPage) templ.Component
	PostBody     func(p views.PostPage) templ.Component
	PreviewLogin func(site views.SiteConfig, chrome views.Chrome, showError bool) templ.Component
	NotFound     func(site views.SiteConfig, chrome views.Chrome) templ.Component
	ServerError  func(site views.SiteConfig, chrome views.Chrome) templ.Component
}

// DefaultViews returns the built-in templates.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Home:         views.Home,
		BlogSection:  views.BlogSection,
		Post:         views.Post,
		PostBody:     views.PostBody,
		PreviewLogin: views.PreviewLogin,
		NotFound:     views.NotFound,
		ServerError:  views.ServerError,
	}
}

func (v *ViewFuncs) fill() {
	d := DefaultViews()
	if v.Home == nil {
		v.Home = d.Home
	}
	if v.BlogSection == nil {
		v.BlogSection = d.BlogSection
	}
	if v.Post == nil {
		v.Post = d.Post
	}
	if v.PostBody == nil {
		v.PostBody = d.PostBody
	}
	if v.PreviewLogin == nil {
		v.PreviewLogin = d.PreviewLogin
	}
	if v.NotFound == nil {
		v.NotFound = d.NotFound
	}
	if v.ServerError == nil {
		v.ServerError = d.ServerError
	}
}

// slugFinder looks up a single article outside the cached list. The content
// client implements it.
type slugFinder interface {
	GetArticleBySlug(ctx context.Context, slug string, preview bool) (contentful.Entry, error)
}

// App is the central folioblog application. It wires together the content
// client, post store, snapshot database, handlers, and templates.
type App struct {
	Config    SiteConfig
	Echo      *echo.Echo
	Client    *contentful.Client
	Store     *blog.Store
	Snapshots *SnapshotStore
	Analytics *analytics.Handler
	Views     ViewFuncs

	loginLimiter *LoginLimiter
	thumbs       *thumbnailer
	finder       slugFinder
	stopCleanup  func()
	customRoutes []func(*App)
	staticDir    string
	log          *slog.Logger
	source       blog.Source
	httpClient   *http.Client
}

// New creates a new folioblog App with the given configuration and views.
func New(cfg SiteConfig, v ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()
	v.fill()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     v,
		staticDir: "public",
		log:       slog.Default(),
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}
	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: a.Config.RequestTimeout}
	}
	return a
}

// Init validates the configuration, opens the database, and registers
// middleware and routes. It does not fetch content or listen.
func (a *App) Init(ctx context.Context) error {
	if err := a.Config.Validate(); err != nil {
		return err
	}

	a.Client = contentful.NewClient(contentful.Config{
		SpaceID:      a.Config.SpaceID,
		AccessToken:  a.Config.AccessToken,
		PreviewToken: a.Config.PreviewToken,
		Timeout:      a.Config.RequestTimeout,
	}, a.clientOptions()...)
	if a.source == nil {
		a.source = a.Client
	}
	if f, ok := a.source.(slugFinder); ok {
		a.finder = f
	} else {
		a.finder = a.Client
	}

	snaps, err := OpenSnapshotStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("folioblog: open database: %w", err)
	}
	a.Snapshots = snaps

	a.Store = blog.New(a.source,
		blog.WithTTL(a.Config.PostCacheTTL),
		blog.WithLogger(a.log),
		blog.WithSnapshot(snaps),
		blog.WithItemsPerPage(a.Config.ItemsPerPage),
		blog.WithFetchLimit(a.Config.FetchLimit),
	)

	a.loginLimiter = NewLoginLimiter(5, time.Minute)
	a.thumbs = newThumbnailer(a.httpClient, a.log)

	if a.Config.AnalyticsEnabled {
		store, err := analytics.NewStore(ctx, snaps.DB())
		if err != nil {
			snaps.Close()
			a.Snapshots = nil
			return fmt.Errorf("folioblog: init analytics: %w", err)
		}
		a.Analytics = analytics.NewHandler(store, analytics.WithLogger(a.log))
		a.stopCleanup = store.StartCleanupScheduler(365*24*time.Hour, 24*time.Hour, a.log)
	}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

func (a *App) clientOptions() []contentful.Option {
	opts := []contentful.Option{
		contentful.WithHTTPClient(a.httpClient),
		contentful.WithLogger(a.log),
	}
	if a.Config.BaseURL != "" || a.Config.PreviewURL != "" {
		live, preview := a.Config.BaseURL, a.Config.PreviewURL
		if live == "" {
			live = contentful.DefaultBaseURL
		}
		if preview == "" {
			preview = contentful.DefaultPreviewURL
		}
		opts = append(opts, contentful.WithBaseURLs(live, preview))
	}
	return opts
}

// Start initializes the app, warms the post cache, and serves until ctx is
// cancelled.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}
	defer a.Close()

	warmCtx, cancel := context.WithTimeout(ctx, 2*a.Config.RequestTimeout)
	if err := a.Store.Initialize(warmCtx); err != nil {
		a.log.Warn("folioblog: cache warm-up interrupted", "error", err)
	}
	cancel()
	if msg := a.Store.Err(); msg != "" {
		a.log.Warn("folioblog: starting with content errors", "error", msg)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("folioblog: listening", "addr", a.Config.Addr, "posts", len(a.Store.Posts()))
		errCh <- a.Echo.Start(a.Config.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Echo.Shutdown(shutdownCtx)
	}
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.stopCleanup != nil {
		a.stopCleanup()
		a.stopCleanup = nil
	}
	if a.Analytics != nil {
		a.Analytics.Close()
	}
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.Snapshots != nil {
		return a.Snapshots.Close()
	}
	return nil
}

// site returns the view-level site settings.
func (a *App) site() views.SiteConfig {
	return views.SiteConfig{
		Name:        a.Config.Name,
		URL:         a.Config.URL,
		Description: a.Config.Description,
		Author:      a.Config.Author,
	}
}
