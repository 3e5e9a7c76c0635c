package folioblog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eringen/folioblog/blog"
	"github.com/eringen/folioblog/contentful"
)

const testUA = "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"

var errOffline = errors.New("dial tcp: connection refused")

// failingSource fails every call.
type failingSource struct{}

func (failingSource) ListArticles(context.Context, contentful.ArticleQuery) (*contentful.EntryList, error) {
	return nil, errOffline
}

func (failingSource) GetArticle(context.Context, string, bool) (contentful.Entry, error) {
	return nil, errOffline
}

func (failingSource) ListCategories(context.Context) ([]contentful.Entry, error) {
	return nil, errOffline
}

func (failingSource) ListTags(context.Context) ([]contentful.Entry, error) {
	return nil, errOffline
}

// stubSource serves fixed entries. hidden entries are only reachable by slug,
// drafts only by slug in preview.
type stubSource struct {
	mu         sync.Mutex
	articles   []contentful.Entry
	hidden     []contentful.Entry
	drafts     []contentful.Entry
	categories []contentful.Entry
	tags       []contentful.Entry
	err        error

	listCalls int
	slugCalls int
}

func (s *stubSource) ListArticles(_ context.Context, q contentful.ArticleQuery) (*contentful.EntryList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.err != nil {
		return nil, s.err
	}
	return &contentful.EntryList{Items: s.articles, Total: len(s.articles), Limit: q.Limit}, nil
}

func (s *stubSource) GetArticle(_ context.Context, id string, _ bool) (contentful.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, e := range s.articles {
		if e.ID() == id {
			return e, nil
		}
	}
	return nil, &contentful.Error{Status: http.StatusNotFound, Message: "The resource could not be found."}
}

func (s *stubSource) ListCategories(context.Context) ([]contentful.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categories, s.err
}

func (s *stubSource) ListTags(context.Context) ([]contentful.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tags, s.err
}

func (s *stubSource) GetArticleBySlug(_ context.Context, slug string, preview bool) (contentful.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slugCalls++
	pool := append(append([]contentful.Entry{}, s.articles...), s.hidden...)
	if preview {
		pool = append(pool, s.drafts...)
	}
	for _, e := range pool {
		if e.String("slug") == slug {
			return e, nil
		}
	}
	return nil, &contentful.Error{Status: http.StatusNotFound, Message: fmt.Sprintf("Article with slug %q not found", slug)}
}

func article(id, title, category string, tags ...string) contentful.Entry {
	e := contentful.Entry{
		"id":            id,
		"contentType":   "article",
		"title":         title,
		"slug":          strings.ToLower(title),
		"excerpt":       "About " + title,
		"publishedDate": "2024-01-1" + id,
		"content":       "Body of **" + title + "**.",
		"category":      contentful.Entry{"id": "cat-" + category, "name": category},
	}
	if len(tags) > 0 {
		list := make([]any, 0, len(tags))
		for _, t := range tags {
			list = append(list, contentful.Entry{"id": "tag-" + t, "name": t})
		}
		e["tags"] = list
	}
	return e
}

func named(names ...string) []contentful.Entry {
	out := make([]contentful.Entry, 0, len(names))
	for _, n := range names {
		out = append(out, contentful.Entry{"id": strings.ToLower(n), "name": n})
	}
	return out
}

func newStubSource() *stubSource {
	return &stubSource{
		articles: []contentful.Entry{
			article("1", "Alpha", "Go", "backend"),
			article("2", "Beta", "Go", "backend", "testing"),
			article("3", "Gamma", "CSS", "frontend"),
			article("4", "Delta", "Go"),
		},
		categories: named("CSS", "Go"),
		tags:       named("backend", "frontend", "testing"),
	}
}

func testConfig(t *testing.T) SiteConfig {
	t.Helper()
	return SiteConfig{
		Name:            "Folio",
		URL:             "https://example.com",
		Description:     "Notes on building things",
		Author:          "Test Author",
		SpaceID:         "space",
		AccessToken:     "token",
		PreviewToken:    "preview-token",
		PreviewPassword: "open-sesame",
		SessionSecret:   "0123456789abcdef0123456789abcdef",
		DatabasePath:    filepath.Join(t.TempDir(), "folio.db"),
	}
}

// newTestApp initializes an App backed by src. mutate may adjust the config.
func newTestApp(t *testing.T, src blog.Source, mutate func(*SiteConfig), opts ...Option) *App {
	t.Helper()
	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithStaticDir(t.TempDir()),
		WithSource(src),
	}
	app := New(cfg, ViewFuncs{}, append(base, opts...)...)
	require.NoError(t, app.Init(context.Background()))
	t.Cleanup(func() { app.Close() })
	return app
}

// browser sends requests through the app and keeps the cookies it is given.
type browser struct {
	t       *testing.T
	app     *App
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, app *App) *browser {
	return &browser{t: t, app: app, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(method, target string, form url.Values, header map[string]string) *httptest.ResponseRecorder {
	b.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("User-Agent", testUA)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	for _, c := range b.cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec := httptest.NewRecorder()
	b.app.Echo.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	b.t.Helper()
	return b.do(http.MethodGet, target, nil, nil)
}

// post submits form with the current CSRF token, fetching one first if needed.
func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	if _, ok := b.cookies["_csrf"]; !ok {
		b.get("/healthz")
	}
	c, ok := b.cookies["_csrf"]
	require.True(b.t, ok, "no csrf cookie issued")
	if form == nil {
		form = url.Values{}
	}
	form.Set("_csrf", c.Value)
	return b.do(http.MethodPost, target, form, nil)
}

func (b *browser) login() {
	b.t.Helper()
	rec := b.post("/preview/login/", url.Values{"password": {b.app.Config.PreviewPassword}})
	require.Equal(b.t, http.StatusSeeOther, rec.Code)
}
