package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/folioblog/blog"
	"github.com/eringen/folioblog/contentful"
)

type fakeSource struct {
	articles []contentful.Entry
	err      error
}

func (f fakeSource) ListArticles(context.Context, contentful.ArticleQuery) (*contentful.EntryList, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &contentful.EntryList{Items: f.articles, Total: len(f.articles)}, nil
}

func (f fakeSource) GetArticle(context.Context, string, bool) (contentful.Entry, error) {
	return nil, errors.New("not used")
}

func (f fakeSource) ListCategories(context.Context) ([]contentful.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []contentful.Entry{{"id": "c1", "name": "CSS"}, {"id": "c2", "name": "Go"}}, nil
}

func (f fakeSource) ListTags(context.Context) ([]contentful.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []contentful.Entry{{"id": "t1", "name": "backend"}}, nil
}

func entry(id, title, category, date string) contentful.Entry {
	return contentful.Entry{
		"id":            id,
		"title":         title,
		"slug":          strings.ToLower(title),
		"publishedDate": date,
		"category":      contentful.Entry{"id": "cat-" + category, "name": category},
	}
}

func testStore(err error) *blog.Store {
	return blog.New(fakeSource{
		articles: []contentful.Entry{
			entry("1", "Alpha", "Go", "2024-01-15T10:00:00Z"),
			entry("2", "Beta", "CSS", "2024-01-14"),
			entry("3", "Gamma", "Go", "2024-01-13"),
			entry("4", "Delta", "Go", "2024-01-12"),
		},
		err: err,
	})
}

func TestListPostsTable(t *testing.T) {
	var buf bytes.Buffer
	err := listPosts(context.Background(), &buf, testStore(nil), listOptions{Category: "Go", Page: 2, PerPage: 2})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "DATE")
	assert.Contains(t, out, "2024-01-12  Go")
	assert.Contains(t, out, "delta")
	assert.NotContains(t, out, "alpha")
	assert.Contains(t, out, "page 2 of 2 (3 posts)")
}

func TestListPostsJSON(t *testing.T) {
	var buf bytes.Buffer
	err := listPosts(context.Background(), &buf, testStore(nil), listOptions{Search: "alpha", Page: 1, PerPage: 9, JSON: true})
	require.NoError(t, err)

	var got struct {
		Posts      []blog.Post `json:"posts"`
		Page       int         `json:"page"`
		TotalPages int         `json:"totalPages"`
		Total      int         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Posts, 1)
	assert.Equal(t, "Alpha", got.Posts[0].Title)
	assert.Equal(t, 1, got.TotalPages)
	assert.Equal(t, 1, got.Total)
}

func TestListCategories(t *testing.T) {
	var buf bytes.Buffer
	err := listPosts(context.Background(), &buf, testStore(nil), listOptions{Categories: true})
	require.NoError(t, err)
	assert.Equal(t, "Categories: CSS, Go\nTags: backend\n", buf.String())
}

func TestListPostsSourceError(t *testing.T) {
	var buf bytes.Buffer
	err := listPosts(context.Background(), &buf, testStore(errors.New("offline")), listOptions{Page: 1, PerPage: 9})
	assert.EqualError(t, err, "Failed to load posts. Please try again later.")
	assert.Empty(t, buf.String())
}

func TestShortDate(t *testing.T) {
	assert.Equal(t, "2024-01-15", shortDate("2024-01-15T10:00:00Z"))
	assert.Equal(t, "", shortDate(""))
}
