package blog

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/folioblog/contentful"
)

// fakeSource is a Source whose responses and failures are set per test.
type fakeSource struct {
	mu         sync.Mutex
	articles   []contentful.Entry
	categories []contentful.Entry
	tags       []contentful.Entry
	listErr    error
	taxErr     error
	getErr     error
	gate       chan struct{} // when set, ListArticles blocks until closed

	listCalls atomic.Int32
	catCalls  atomic.Int32
	tagCalls  atomic.Int32
	getCalls  atomic.Int32
	lastQuery contentful.ArticleQuery
}

func (f *fakeSource) ListArticles(ctx context.Context, q contentful.ArticleQuery) (*contentful.EntryList, error) {
	f.listCalls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if err := ctx.Err(); err != nil {
		return nil, &contentful.Error{Message: "Network error: " + err.Error(), Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &contentful.EntryList{Items: f.articles, Total: len(f.articles)}, nil
}

func (f *fakeSource) GetArticle(ctx context.Context, id string, preview bool) (contentful.Entry, error) {
	f.getCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, a := range f.articles {
		if a.ID() == id {
			return a, nil
		}
	}
	return nil, &contentful.Error{Status: http.StatusNotFound, Message: "Contentful API error: Not Found"}
}

func (f *fakeSource) ListCategories(ctx context.Context) ([]contentful.Entry, error) {
	f.catCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taxErr != nil {
		return nil, f.taxErr
	}
	return f.categories, nil
}

func (f *fakeSource) ListTags(ctx context.Context) ([]contentful.Entry, error) {
	f.tagCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taxErr != nil {
		return nil, f.taxErr
	}
	return f.tags, nil
}

func (f *fakeSource) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
	f.taxErr = err
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func article(id, title, category string, tags ...string) contentful.Entry {
	e := contentful.Entry{
		"id":          id,
		"contentType": "article",
		"title":       title,
		"slug":        Slugify(title),
		"excerpt":     "about " + title,
	}
	if category != "" {
		e["category"] = contentful.Entry{"id": "cat-" + category, "name": category}
	}
	tagList := []any{}
	for _, t := range tags {
		tagList = append(tagList, contentful.Entry{"id": "tag-" + t, "name": t})
	}
	e["tags"] = tagList
	return e
}

func named(names ...string) []contentful.Entry {
	out := make([]contentful.Entry, 0, len(names))
	for _, n := range names {
		out = append(out, contentful.Entry{"id": n, "name": n})
	}
	return out
}

func newTestStore(src *fakeSource, clock *fakeClock, opts ...Option) *Store {
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(src, opts...)
}

func TestFetchPostsServesFromCacheWithinTTL(t *testing.T) {
	src := &fakeSource{articles: []contentful.Entry{article("1", "First", "Go")}}
	clock := newFakeClock()
	s := newTestStore(src, clock)
	ctx := context.Background()

	first := s.FetchPosts(ctx, FetchOptions{})
	require.Len(t, first, 1)
	assert.Equal(t, int32(1), src.listCalls.Load())

	clock.Advance(4*time.Minute + 59*time.Second)
	second := s.FetchPosts(ctx, FetchOptions{})
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.listCalls.Load())
}

func TestFetchPostsRefetchesAfterTTL(t *testing.T) {
	src := &fakeSource{articles: []contentful.Entry{article("1", "First", "Go")}}
	clock := newFakeClock()
	s := newTestStore(src, clock)
	ctx := context.Background()

	s.FetchPosts(ctx, FetchOptions{})
	clock.Advance(5*time.Minute + time.Second)
	s.FetchPosts(ctx, FetchOptions{})

	assert.Equal(t, int32(2), src.listCalls.Load())
	assert.Equal(t, clock.Now(), s.LastFetch())
}

func TestFetchPostsForceRefresh(t *testing.T) {
	src := &fakeSource{articles: []contentful.Entry{article("1", "First", "Go")}}
	s := newTestStore(src, newFakeClock())
	ctx := context.Background()

	s.FetchPosts(ctx, FetchOptions{})
	s.FetchPosts(ctx, FetchOptions{ForceRefresh: true})
	assert.Equal(t, int32(2), src.listCalls.Load())
}

func TestFetchPostsUsesFetchLimit(t *testing.T) {
	src := &fakeSource{}
	s := newTestStore(src, newFakeClock(), WithFetchLimit(50))

	s.FetchPosts(context.Background(), FetchOptions{})
	assert.Equal(t, 50, src.lastQuery.Limit)
	assert.False(t, src.lastQuery.Preview)
}

func TestFetchPostsFallsBackToCacheOnFailure(t *testing.T) {
	src := &fakeSource{articles: []contentful.Entry{article("1", "First", "Go"), article("2", "Second", "CSS")}}
	clock := newFakeClock()
	s := newTestStore(src, clock)
	ctx := context.Background()

	good := s.FetchPosts(ctx, FetchOptions{})
	require.Len(t, good, 2)
	assert.Empty(t, s.Err())

	src.fail(&contentful.Error{Status: http.StatusServiceUnavailable, Message: "Contentful API error: Service Unavailable"})
	clock.Advance(6 * time.Minute)
	got := s.FetchPosts(ctx, FetchOptions{})

	assert.Equal(t, good, got)
	assert.Equal(t, good, s.Posts())
	assert.Equal(t, "Failed to load posts: Contentful API error: Service Unavailable", s.Err())
	assert.False(t, s.Loading())
}

func TestFetchPostsFailureWithoutCache(t *testing.T) {
	src := &fakeSource{listErr: errors.New("boom")}
	s := newTestStore(src, newFakeClock())

	got := s.FetchPosts(context.Background(), FetchOptions{})

	assert.Empty(t, got)
	assert.Equal(t, "Failed to load posts. Please try again later.", s.Err())
	assert.False(t, s.Loading())
}

func TestFetchPostsClearsErrorOnSuccess(t *testing.T) {
	src := &fakeSource{listErr: errors.New("boom")}
	s := newTestStore(src, newFakeClock())
	ctx := context.Background()

	s.FetchPosts(ctx, FetchOptions{})
	require.NotEmpty(t, s.Err())

	src.fail(nil)
	s.FetchPosts(ctx, FetchOptions{})
	assert.Empty(t, s.Err())
}

func TestFetchPostsDeduplicatesConcurrentCalls(t *testing.T) {
	src := &fakeSource{
		articles: []contentful.Entry{article("1", "First", "Go")},
		gate:     make(chan struct{}),
	}
	s := newTestStore(src, newFakeClock())
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([][]Post, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.FetchPosts(ctx, FetchOptions{})
		}(i)
	}

	require.Eventually(t, s.Loading, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.listCalls.Load())
	for _, r := range results {
		assert.Len(t, r, 1)
	}
	assert.False(t, s.Loading())
}

func TestFetchPostsSharedFetchOutlivesCancelledCaller(t *testing.T) {
	src := &fakeSource{
		articles: []contentful.Entry{article("1", "First", "Go")},
		gate:     make(chan struct{}),
	}
	s := newTestStore(src, newFakeClock())

	first, cancel := context.WithCancel(context.Background())
	firstDone := make(chan []Post, 1)
	go func() { firstDone <- s.FetchPosts(first, FetchOptions{}) }()
	require.Eventually(t, s.Loading, time.Second, time.Millisecond)

	secondDone := make(chan []Post, 1)
	go func() { secondDone <- s.FetchPosts(context.Background(), FetchOptions{}) }()
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(src.gate)

	assert.Len(t, <-secondDone, 1)
	<-firstDone
	assert.Empty(t, s.Err())
	assert.Equal(t, int32(1), src.listCalls.Load())
}

func TestFetchCategories(t *testing.T) {
	src := &fakeSource{categories: named("CSS", "Go")}
	clock := newFakeClock()
	s := newTestStore(src, clock)
	ctx := context.Background()

	assert.Equal(t, []string{"CSS", "Go"}, s.FetchCategories(ctx, FetchOptions{}))
	assert.Equal(t, []string{"CSS", "Go"}, s.FetchCategories(ctx, FetchOptions{}))
	assert.Equal(t, int32(1), src.catCalls.Load())
	assert.Equal(t, []string{"CSS", "Go"}, s.Categories())

	clock.Advance(DefaultTTL)
	s.FetchCategories(ctx, FetchOptions{})
	assert.Equal(t, int32(2), src.catCalls.Load())
}

func TestFetchCategoriesFallsBackToPosts(t *testing.T) {
	src := &fakeSource{articles: []contentful.Entry{
		article("1", "A", "Vue.js"),
		article("2", "B", "CSS"),
		article("3", "C", "Vue.js"),
	}}
	s := newTestStore(src, newFakeClock())
	ctx := context.Background()
	s.FetchPosts(ctx, FetchOptions{})

	src.fail(errors.New("down"))
	got := s.FetchCategories(ctx, FetchOptions{})

	assert.Equal(t, []string{"CSS", "Vue.js"}, got)
	assert.Equal(t, "Failed to load categories. Please try again later.", s.Err())
}

func TestFetchTagsFallsBackToPosts(t *testing.T) {
	src := &fakeSource{articles: []contentful.Entry{
		article("1", "A", "Go", "web", "api"),
		article("2", "B", "Go", "web"),
	}}
	s := newTestStore(src, newFakeClock())
	ctx := context.Background()
	s.FetchPosts(ctx, FetchOptions{})

	src.fail(errors.New("down"))
	assert.Equal(t, []string{"api", "web"}, s.FetchTags(ctx, FetchOptions{}))
	assert.Equal(t, []string{"api", "web"}, s.Tags())
}

func TestInitializeFetchesEverything(t *testing.T) {
	src := &fakeSource{
		articles:   []contentful.Entry{article("1", "A", "Go", "web")},
		categories: named("Go"),
		tags:       named("web"),
	}
	s := newTestStore(src, newFakeClock())

	require.NoError(t, s.Initialize(context.Background()))

	assert.Len(t, s.Posts(), 1)
	assert.Equal(t, []string{"Go"}, s.Categories())
	assert.Equal(t, []string{"web"}, s.Tags())
	assert.Equal(t, int32(1), src.listCalls.Load())
	assert.Equal(t, int32(1), src.catCalls.Load())
	assert.Equal(t, int32(1), src.tagCalls.Load())
	assert.False(t, s.Loading())
}

func TestInitializeReturnsContextError(t *testing.T) {
	s := newTestStore(&fakeSource{}, newFakeClock())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Initialize(ctx), context.Canceled)
}

func TestInvalidateKeepsDataButRefetches(t *testing.T) {
	src := &fakeSource{articles: []contentful.Entry{article("1", "A", "Go")}}
	s := newTestStore(src, newFakeClock())
	ctx := context.Background()

	s.FetchPosts(ctx, FetchOptions{})
	s.Invalidate()
	assert.Len(t, s.Posts(), 1)

	s.FetchPosts(ctx, FetchOptions{})
	assert.Equal(t, int32(2), src.listCalls.Load())
}

func TestFetchPostByID(t *testing.T) {
	src := &fakeSource{articles: []contentful.Entry{article("1", "Hello World", "Go")}}
	s := newTestStore(src, newFakeClock())
	ctx := context.Background()

	p, err := s.FetchPostByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Hello World", p.Title)

	_, err = s.FetchPostByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.getCalls.Load())
}

func TestFetchPostByIDReturnsError(t *testing.T) {
	src := &fakeSource{}
	s := newTestStore(src, newFakeClock())

	_, err := s.FetchPostByID(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, contentful.IsNotFound(err))
	assert.Equal(t, "Failed to load post: Contentful API error: Not Found", s.Err())
	assert.False(t, s.Loading())
}

func TestPostBySlug(t *testing.T) {
	src := &fakeSource{articles: []contentful.Entry{article("1", "Hello World", "Go")}}
	s := newTestStore(src, newFakeClock())
	s.FetchPosts(context.Background(), FetchOptions{})

	p, err := s.PostBySlug("hello-world")
	require.NoError(t, err)
	assert.Equal(t, "1", p.ID)

	_, err = s.PostBySlug("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetCategoryFiltersAndResetsPage(t *testing.T) {
	src := &fakeSource{articles: []contentful.Entry{
		article("1", "One", "Go"),
		article("2", "Two", "CSS"),
		article("3", "Three", "Vue.js"),
	}}
	s := newTestStore(src, newFakeClock())
	s.FetchPosts(context.Background(), FetchOptions{})

	s.SetPage(3)
	s.SetCategory("CSS")

	filtered := s.FilteredPosts()
	require.Len(t, filtered, 1)
	assert.Equal(t, "2", filtered[0].ID)
	assert.Equal(t, 1, s.CurrentPage())
	assert.Equal(t, "CSS", s.SelectedCategory())
}

func TestSetSearchQueryResetsPage(t *testing.T) {
	src := &fakeSource{articles: []contentful.Entry{
		article("1", "Learning Go", "Go"),
		article("2", "Grid layouts", "CSS", "golang-free"),
		article("3", "Pinia", "Vue.js"),
	}}
	s := newTestStore(src, newFakeClock())
	s.FetchPosts(context.Background(), FetchOptions{})

	s.SetPage(2)
	s.SetSearchQuery("GO")

	assert.Equal(t, 1, s.CurrentPage())
	assert.Equal(t, "GO", s.SearchQuery())
	assert.Len(t, s.FilteredPosts(), 2)
}

func TestPaginationBoundary(t *testing.T) {
	var articles []contentful.Entry
	for i := 1; i <= 10; i++ {
		articles = append(articles, article(strconv.Itoa(i), "Post "+strconv.Itoa(i), "Go"))
	}
	s := newTestStore(&fakeSource{articles: articles}, newFakeClock())
	s.FetchPosts(context.Background(), FetchOptions{})

	assert.Equal(t, DefaultItemsPerPage, s.ItemsPerPage())
	assert.Equal(t, 2, s.TotalPages())
	assert.Len(t, s.PaginatedPosts(), 9)

	s.SetPage(2)
	page2 := s.PaginatedPosts()
	require.Len(t, page2, 1)
	assert.Equal(t, "10", page2[0].ID)

	s.SetItemsPerPage(5)
	assert.Equal(t, 1, s.CurrentPage())
	assert.Equal(t, 2, s.TotalPages())
}

// memSnapshot is an in-memory Snapshot.
type memSnapshot struct {
	posts   []Post
	fetched time.Time
	saves   int
}

func (m *memSnapshot) LoadPosts(ctx context.Context) ([]Post, time.Time, error) {
	return m.posts, m.fetched, nil
}

func (m *memSnapshot) SavePosts(ctx context.Context, posts []Post, fetched time.Time) error {
	m.posts, m.fetched = posts, fetched
	m.saves++
	return nil
}

func TestSnapshotSeedsAndIsSaved(t *testing.T) {
	clock := newFakeClock()
	snap := &memSnapshot{
		posts:   []Post{{ID: "old", Title: "Old", Slug: "old", Category: "Go", Tags: []string{}}},
		fetched: clock.Now().Add(-time.Hour),
	}
	src := &fakeSource{}
	src.fail(errors.New("offline"))
	s := newTestStore(src, clock, WithSnapshot(snap))

	require.NoError(t, s.Initialize(context.Background()))
	require.Len(t, s.Posts(), 1)
	assert.Equal(t, "old", s.Posts()[0].ID)
	assert.NotEmpty(t, s.Err())
	assert.Equal(t, 0, snap.saves)

	src.fail(nil)
	src.mu.Lock()
	src.articles = []contentful.Entry{article("new", "New", "Go")}
	src.mu.Unlock()
	s.FetchPosts(context.Background(), FetchOptions{ForceRefresh: true})

	assert.Equal(t, 1, snap.saves)
	assert.Equal(t, "new", snap.posts[0].ID)
	assert.Equal(t, clock.Now(), snap.fetched)
}

func TestFreshSnapshotDoesNotSkipFirstFetch(t *testing.T) {
	clock := newFakeClock()
	snap := &memSnapshot{
		posts:   []Post{{ID: "old", Title: "Old", Slug: "old", Category: "Go", Tags: []string{}}},
		fetched: clock.Now().Add(-time.Minute),
	}
	src := &fakeSource{articles: []contentful.Entry{article("new", "New", "Go")}}
	s := newTestStore(src, clock, WithSnapshot(snap))

	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, int32(1), src.listCalls.Load())
	require.Len(t, s.Posts(), 1)
	assert.Equal(t, "new", s.Posts()[0].ID)
	assert.Equal(t, clock.Now(), s.LastFetch())
}

func TestSnapshotSetsLastFetchWhileOffline(t *testing.T) {
	clock := newFakeClock()
	fetched := clock.Now().Add(-time.Minute)
	snap := &memSnapshot{
		posts:   []Post{{ID: "old", Title: "Old", Slug: "old", Category: "Go", Tags: []string{}}},
		fetched: fetched,
	}
	src := &fakeSource{}
	src.fail(errors.New("offline"))
	s := newTestStore(src, clock, WithSnapshot(snap))

	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, int32(1), src.listCalls.Load())
	assert.Equal(t, "old", s.Posts()[0].ID)
	assert.Equal(t, fetched, s.LastFetch())
}
