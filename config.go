package folioblog

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/eringen/folioblog/blog"
)

// SiteConfig holds all configuration for a folioblog site.
type SiteConfig struct {
	Name        string // Site name (default "Portfolio")
	URL         string // Canonical URL (default "http://localhost:3000")
	Description string // Site description for RSS and meta tags
	Author      string // Author name for JSON-LD

	Addr         string // Listen address (default ":3000")
	DatabasePath string // SQLite path for snapshots and page views (default "data/folio.db")

	SpaceID      string // Required: content space id
	AccessToken  string // Required: delivery API token
	PreviewToken string // Preview API token; preview mode is off without it
	BaseURL      string // Delivery API host override
	PreviewURL   string // Preview API host override

	PreviewPassword string // Password for /preview/login/; preview mode is off without it
	SessionSecret   string // Required: session encryption secret
	CookieSecure    bool   // Set true for HTTPS

	PostCacheTTL     time.Duration // Post cache TTL (default 5min)
	ItemsPerPage     int           // Posts per listing page (default 9)
	FetchLimit       int           // Articles requested per fetch (default 100)
	RequestTimeout   time.Duration // Content API timeout (default 15s)
	AnalyticsEnabled bool          // Record page views
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Portfolio"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/folio.db"
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = blog.DefaultTTL
	}
	if c.ItemsPerPage <= 0 {
		c.ItemsPerPage = blog.DefaultItemsPerPage
	}
	if c.FetchLimit <= 0 {
		c.FetchLimit = blog.DefaultFetchLimit
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 15 * time.Second
	}
}

// Validate reports missing required settings.
func (c SiteConfig) Validate() error {
	var errs []error
	if c.SpaceID == "" {
		errs = append(errs, errors.New("folioblog: SpaceID is required"))
	}
	if c.AccessToken == "" {
		errs = append(errs, errors.New("folioblog: AccessToken is required"))
	}
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("folioblog: SessionSecret is required"))
	}
	return errors.Join(errs...)
}

// PreviewEnabled reports whether preview mode can be entered.
func (c SiteConfig) PreviewEnabled() bool {
	return c.PreviewToken != "" && c.PreviewPassword != ""
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithLogger sets the application logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.log = l
	}
}

// WithSource replaces the content client the post store reads from.
func WithSource(src blog.Source) Option {
	return func(a *App) {
		a.source = src
	}
}

// WithHTTPClient sets the client used for content API calls and thumbnail
// downloads.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *App) {
		a.httpClient = hc
	}
}
