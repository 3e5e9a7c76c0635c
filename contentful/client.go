package contentful

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL    = "https://cdn.contentful.com"
	DefaultPreviewURL = "https://preview.contentful.com"

	DefaultLimit   = 10
	DefaultOrder   = "-fields.publishedDate"
	DefaultInclude = 2
)

// Config holds the space credentials.
type Config struct {
	SpaceID      string
	AccessToken  string
	PreviewToken string
	Timeout      time.Duration // HTTP timeout (default 15s)
}

// Client issues queries against the live or preview endpoint and returns
// normalized entries.
type Client struct {
	cfg        Config
	baseURL    string
	previewURL string
	http       *http.Client
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBaseURLs overrides the live and preview hosts.
func WithBaseURLs(live, preview string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(live, "/")
		c.previewURL = strings.TrimRight(preview, "/")
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a Client for cfg.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := &Client{
		cfg:        cfg,
		baseURL:    DefaultBaseURL,
		previewURL: DefaultPreviewURL,
		http:       &http.Client{Timeout: cfg.Timeout},
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ArticleQuery selects a page of articles. Zero Limit means DefaultLimit.
type ArticleQuery struct {
	Limit    int
	Skip     int
	Category string // category entry id
	Tag      string // tag entry id
	Preview  bool
}

func (q ArticleQuery) params() url.Values {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	p := url.Values{}
	p.Set("content_type", "article")
	p.Set("limit", strconv.Itoa(limit))
	p.Set("skip", strconv.Itoa(q.Skip))
	p.Set("order", DefaultOrder)
	p.Set("include", strconv.Itoa(DefaultInclude))
	if q.Category != "" {
		p.Set("fields.category.sys.id", q.Category)
	}
	if q.Tag != "" {
		p.Set("fields.tags.sys.id", q.Tag)
	}
	return p
}

// ListArticles returns a page of articles, newest first.
func (c *Client) ListArticles(ctx context.Context, q ArticleQuery) (*EntryList, error) {
	return c.list(ctx, q.params(), q.Preview)
}

// SearchArticles runs a full-text query over articles.
func (c *Client) SearchArticles(ctx context.Context, query string, q ArticleQuery) (*EntryList, error) {
	p := q.params()
	p.Set("query", query)
	return c.list(ctx, p, q.Preview)
}

// GetArticle fetches one entry by id.
func (c *Client) GetArticle(ctx context.Context, id string, preview bool) (Entry, error) {
	p := url.Values{}
	p.Set("include", strconv.Itoa(DefaultInclude))
	var res entryResponse
	if err := c.fetch(ctx, "/entries/"+url.PathEscape(id), p, preview, &res); err != nil {
		return nil, err
	}
	return Normalize(res.RawEntry, &res.Includes), nil
}

// GetArticleBySlug fetches the article whose slug field equals slug. A slug
// with no match returns a *Error with status 404.
func (c *Client) GetArticleBySlug(ctx context.Context, slug string, preview bool) (Entry, error) {
	p := url.Values{}
	p.Set("content_type", "article")
	p.Set("fields.slug", slug)
	p.Set("include", strconv.Itoa(DefaultInclude))
	p.Set("limit", "1")
	var res collectionResponse
	if err := c.fetch(ctx, "/entries", p, preview, &res); err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		return nil, &Error{Status: http.StatusNotFound, Message: fmt.Sprintf("Article with slug %q not found", slug)}
	}
	return Normalize(res.Items[0], &res.Includes), nil
}

// ListCategories returns every category ordered by name.
func (c *Client) ListCategories(ctx context.Context) ([]Entry, error) {
	p := url.Values{}
	p.Set("content_type", "category")
	p.Set("order", "fields.name")
	return c.items(ctx, p)
}

// ListTags returns every tag ordered by name.
func (c *Client) ListTags(ctx context.Context) ([]Entry, error) {
	p := url.Values{}
	p.Set("content_type", "tag")
	p.Set("order", "fields.name")
	return c.items(ctx, p)
}

// ListAuthors returns every author ordered by name, with one level of links.
func (c *Client) ListAuthors(ctx context.Context) ([]Entry, error) {
	p := url.Values{}
	p.Set("content_type", "author")
	p.Set("order", "fields.name")
	p.Set("include", "1")
	return c.items(ctx, p)
}

func (c *Client) items(ctx context.Context, p url.Values) ([]Entry, error) {
	list, err := c.list(ctx, p, false)
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (c *Client) list(ctx context.Context, p url.Values, preview bool) (*EntryList, error) {
	var res collectionResponse
	if err := c.fetch(ctx, "/entries", p, preview, &res); err != nil {
		return nil, err
	}
	items := make([]Entry, 0, len(res.Items))
	for _, raw := range res.Items {
		items = append(items, Normalize(raw, &res.Includes))
	}
	return &EntryList{Items: items, Total: res.Total, Skip: res.Skip, Limit: res.Limit}, nil
}

// fetch performs GET {base}/spaces/{space}{endpoint}?access_token=...&params
// and decodes the JSON body into out.
func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values, preview bool, out any) error {
	base, token := c.baseURL, c.cfg.AccessToken
	if preview {
		base, token = c.previewURL, c.cfg.PreviewToken
	}
	q := url.Values{}
	q.Set("access_token", token)
	for k, v := range params {
		q[k] = v
	}
	u := base + "/spaces/" + url.PathEscape(c.cfg.SpaceID) + endpoint + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return networkError(err)
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("contentful request failed", "endpoint", endpoint, "preview", preview, "error", err)
		return networkError(err)
	}
	defer resp.Body.Close()

	c.log.Debug("contentful request",
		"endpoint", endpoint,
		"preview", preview,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return apiError(resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return networkError(err)
	}
	return nil
}

// Diagnostics reports which credentials are configured, without their values.
type Diagnostics struct {
	SpaceID         string `json:"spaceId"`
	HasAccessToken  bool   `json:"hasAccessToken"`
	HasPreviewToken bool   `json:"hasPreviewToken"`
}

// Diagnostics returns the client's credential summary.
func (c *Client) Diagnostics() Diagnostics {
	return Diagnostics{
		SpaceID:         c.cfg.SpaceID,
		HasAccessToken:  c.cfg.AccessToken != "",
		HasPreviewToken: c.cfg.PreviewToken != "",
	}
}
