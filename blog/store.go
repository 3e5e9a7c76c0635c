package blog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/eringen/folioblog/contentful"
)

const (
	DefaultTTL          = 5 * time.Minute
	DefaultItemsPerPage = 9
	DefaultFetchLimit   = 100

	// SharedFetchTimeout bounds a fetch shared by concurrent callers.
	SharedFetchTimeout = 30 * time.Second
)

// Cache keys.
const (
	keyPosts      = "posts"
	keyCategories = "categories"
	keyTags       = "tags"
)

// ErrNotFound is returned when a requested post is not in the store.
var ErrNotFound = errors.New("blog: post not found")

// Source is the part of the content client the store reads from.
type Source interface {
	ListArticles(ctx context.Context, q contentful.ArticleQuery) (*contentful.EntryList, error)
	GetArticle(ctx context.Context, id string, preview bool) (contentful.Entry, error)
	ListCategories(ctx context.Context) ([]contentful.Entry, error)
	ListTags(ctx context.Context) ([]contentful.Entry, error)
}

// Snapshot persists the last good post list across restarts.
type Snapshot interface {
	LoadPosts(ctx context.Context) ([]Post, time.Time, error)
	SavePosts(ctx context.Context, posts []Post, fetched time.Time) error
}

// FetchOptions controls a fetch. ForceRefresh bypasses a valid cache.
type FetchOptions struct {
	ForceRefresh bool
}

type cacheEntry struct {
	data    any
	fetched time.Time
}

// Store holds the posts, categories and tags fetched from a Source behind a
// TTL cache, plus the filter and pagination state of the listing.
//
// Fetch failures never escape the Store except from FetchPostByID; they are
// recorded as a user-facing message (Err) and the last good data keeps being
// served. Concurrent fetches of the same kind share one request.
type Store struct {
	source     Source
	snapshot   Snapshot
	ttl        time.Duration
	now        func() time.Time
	log        *slog.Logger
	fetchLimit int
	group      singleflight.Group

	mu         sync.RWMutex
	cache      map[string]cacheEntry
	posts      []Post
	categories []string
	tags       []string
	inflight   int
	errMsg     string
	lastFetch  time.Time

	category string
	query    string
	page     int
	perPage  int
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets how long fetched data is served without a new request.
func WithTTL(d time.Duration) Option {
	return func(s *Store) { s.ttl = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithSnapshot persists successful post fetches and seeds the cache on Initialize.
func WithSnapshot(snap Snapshot) Option {
	return func(s *Store) { s.snapshot = snap }
}

// WithItemsPerPage sets the initial page size.
func WithItemsPerPage(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.perPage = n
		}
	}
}

// WithFetchLimit sets how many articles one FetchPosts requests.
func WithFetchLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.fetchLimit = n
		}
	}
}

// New creates a Store reading from source.
func New(source Source, opts ...Option) *Store {
	s := &Store{
		source:     source,
		ttl:        DefaultTTL,
		now:        time.Now,
		log:        slog.Default(),
		fetchLimit: DefaultFetchLimit,
		cache:      make(map[string]cacheEntry),
		posts:      []Post{},
		page:       1,
		perPage:    DefaultItemsPerPage,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize seeds the cache from the snapshot, if any, then fetches posts,
// categories and tags concurrently and waits for all of them. The only error
// is the context's.
func (s *Store) Initialize(ctx context.Context) error {
	s.seed(ctx)

	var g errgroup.Group
	g.Go(func() error {
		s.FetchPosts(ctx, FetchOptions{})
		return ctx.Err()
	})
	g.Go(func() error {
		s.FetchCategories(ctx, FetchOptions{})
		return ctx.Err()
	})
	g.Go(func() error {
		s.FetchTags(ctx, FetchOptions{})
		return ctx.Err()
	})
	return g.Wait()
}

func (s *Store) seed(ctx context.Context) {
	if s.snapshot == nil {
		return
	}
	posts, fetched, err := s.snapshot.LoadPosts(ctx)
	if err != nil {
		s.log.Warn("blog: snapshot load failed", "error", err)
		return
	}
	if len(posts) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cache[keyPosts]; ok {
		return
	}
	s.posts = posts
	// Stale on purpose: a snapshot is only a fallback for the first fetch.
	s.cache[keyPosts] = cacheEntry{data: posts}
	s.lastFetch = fetched
	s.log.Info("blog: seeded from snapshot", "posts", len(posts), "fetched", fetched)
}

// Invalidate marks every cache entry stale. Cached data is kept for fallback.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, c := range s.cache {
		c.fetched = time.Time{}
		s.cache[k] = c
	}
}

// validLocked reports whether key holds data younger than the TTL.
func (s *Store) validLocked(key string) bool {
	c, ok := s.cache[key]
	return ok && s.now().Sub(c.fetched) < s.ttl
}

func (s *Store) begin() {
	s.mu.Lock()
	s.inflight++
	s.errMsg = ""
	s.mu.Unlock()
}

func (s *Store) end() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
}

// sharedContext detaches a shared fetch from the caller that started it, so
// one cancelled request does not fail the others waiting on the same fetch.
func sharedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), SharedFetchTimeout)
}

// FetchPosts returns the posts, from cache when valid. On failure it records
// an error and returns the last cached posts, or none.
func (s *Store) FetchPosts(ctx context.Context, opts FetchOptions) []Post {
	if !opts.ForceRefresh {
		s.mu.RLock()
		if s.validLocked(keyPosts) {
			posts := s.posts
			s.mu.RUnlock()
			return posts
		}
		s.mu.RUnlock()
	}
	v, _, _ := s.group.Do(keyPosts, func() (any, error) {
		ctx, cancel := sharedContext(ctx)
		defer cancel()
		return s.loadPosts(ctx), nil
	})
	return v.([]Post)
}

func (s *Store) loadPosts(ctx context.Context) []Post {
	s.begin()
	defer s.end()

	list, err := s.source.ListArticles(ctx, contentful.ArticleQuery{Limit: s.fetchLimit})
	if err != nil {
		s.log.Error("blog: fetch posts failed", "error", err)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.errMsg = userMessage("posts", err)
		if c, ok := s.cache[keyPosts]; ok {
			s.posts = c.data.([]Post)
		}
		return s.posts
	}

	posts := make([]Post, 0, len(list.Items))
	for _, e := range list.Items {
		posts = append(posts, PostFromEntry(e))
	}
	now := s.now()

	s.mu.Lock()
	s.posts = posts
	s.cache[keyPosts] = cacheEntry{data: posts, fetched: now}
	s.lastFetch = now
	s.mu.Unlock()

	s.log.Debug("blog: posts fetched", "count", len(posts), "total", list.Total)
	if s.snapshot != nil {
		if err := s.snapshot.SavePosts(ctx, posts, now); err != nil {
			s.log.Warn("blog: snapshot save failed", "error", err)
		}
	}
	return posts
}

// FetchCategories returns the category names, from cache when valid. On
// failure it derives them from the posts held in memory.
func (s *Store) FetchCategories(ctx context.Context, opts FetchOptions) []string {
	return s.fetchNames(ctx, opts, keyCategories, s.source.ListCategories, categoriesFromPosts)
}

// FetchTags returns the tag names, from cache when valid. On failure it
// derives them from the posts held in memory.
func (s *Store) FetchTags(ctx context.Context, opts FetchOptions) []string {
	return s.fetchNames(ctx, opts, keyTags, s.source.ListTags, tagsFromPosts)
}

func (s *Store) fetchNames(
	ctx context.Context,
	opts FetchOptions,
	key string,
	list func(context.Context) ([]contentful.Entry, error),
	derive func([]Post) []string,
) []string {
	if !opts.ForceRefresh {
		s.mu.RLock()
		if s.validLocked(key) {
			out := s.cache[key].data.([]string)
			s.mu.RUnlock()
			return out
		}
		s.mu.RUnlock()
	}
	v, _, _ := s.group.Do(key, func() (any, error) {
		ctx, cancel := sharedContext(ctx)
		defer cancel()
		s.begin()
		defer s.end()

		entries, err := list(ctx)
		s.mu.Lock()
		defer s.mu.Unlock()
		var out []string
		if err != nil {
			s.log.Error("blog: fetch failed", "key", key, "error", err)
			s.errMsg = userMessage(key, err)
			out = derive(s.posts)
		} else {
			out = names(entries)
			s.cache[key] = cacheEntry{data: out, fetched: s.now()}
		}
		s.setNamesLocked(key, out)
		return out, nil
	})
	return v.([]string)
}

func (s *Store) setNamesLocked(key string, v []string) {
	switch key {
	case keyCategories:
		s.categories = v
	case keyTags:
		s.tags = v
	}
}

// FetchPostByID always asks the source. The error is recorded and returned.
func (s *Store) FetchPostByID(ctx context.Context, id string) (Post, error) {
	s.begin()
	defer s.end()

	e, err := s.source.GetArticle(ctx, id, false)
	if err != nil {
		s.mu.Lock()
		s.errMsg = userMessage("post", err)
		s.mu.Unlock()
		return Post{}, fmt.Errorf("blog: fetch post %s: %w", id, err)
	}
	return PostFromEntry(e), nil
}

// userMessage turns err into the message shown to readers.
func userMessage(what string, err error) string {
	var ce *contentful.Error
	if errors.As(err, &ce) {
		return fmt.Sprintf("Failed to load %s: %s", what, ce.Message)
	}
	return fmt.Sprintf("Failed to load %s. Please try again later.", what)
}

// Posts returns the posts currently held.
func (s *Store) Posts() []Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.posts
}

// PostBySlug returns a held post by slug.
func (s *Store) PostBySlug(slug string) (Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.posts {
		if p.Slug == slug {
			return p, nil
		}
	}
	return Post{}, ErrNotFound
}

// Categories returns the fetched category names, or those derived from the
// posts when none were fetched.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.categories) > 0 {
		return s.categories
	}
	return categoriesFromPosts(s.posts)
}

// Tags returns the fetched tag names, or those derived from the posts.
func (s *Store) Tags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.tags) > 0 {
		return s.tags
	}
	return tagsFromPosts(s.posts)
}

// Loading reports whether any fetch is in progress.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// Err returns the message of the last failed fetch, or "".
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// LastFetch returns when posts were last fetched successfully.
func (s *Store) LastFetch() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFetch
}

// SetCategory filters by category and returns to page 1.
func (s *Store) SetCategory(category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.category = category
	s.page = 1
}

// SetSearchQuery filters by query and returns to page 1.
func (s *Store) SetSearchQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = query
	s.page = 1
}

// SetItemsPerPage changes the page size and returns to page 1.
func (s *Store) SetItemsPerPage(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perPage = n
	s.page = 1
}

// SetPage moves to page.
func (s *Store) SetPage(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = page
}

// SelectedCategory returns the category filter.
func (s *Store) SelectedCategory() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.category
}

// SearchQuery returns the search filter.
func (s *Store) SearchQuery() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// CurrentPage returns the 1-indexed page.
func (s *Store) CurrentPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// ItemsPerPage returns the page size.
func (s *Store) ItemsPerPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.perPage
}

// FilteredPosts returns the posts matching the current filters.
func (s *Store) FilteredPosts() []Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filteredLocked()
}

func (s *Store) filteredLocked() []Post {
	return FilterPosts(s.posts, Filter{Category: s.category, Query: s.query})
}

// TotalPages returns the page count of the filtered posts.
func (s *Store) TotalPages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return PageCount(len(s.filteredLocked()), s.perPage)
}

// PaginatedPosts returns the current page of the filtered posts.
func (s *Store) PaginatedPosts() []Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Paginate(s.filteredLocked(), s.page, s.perPage)
}
