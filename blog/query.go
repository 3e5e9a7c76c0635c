package blog

import "strings"

// Filter selects posts by exact category and by a case-insensitive substring
// of the title, excerpt or any tag. Empty fields match everything.
type Filter struct {
	Category string
	Query    string
}

// FilterPosts returns the posts matching f, preserving order.
func FilterPosts(posts []Post, f Filter) []Post {
	q := strings.ToLower(f.Query)
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if q != "" && !matches(p, q) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matches(p Post, q string) bool {
	if strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Excerpt), q) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

// PageCount returns ceil(n / perPage). A non-positive perPage yields 0.
func PageCount(n, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return (n + perPage - 1) / perPage
}

// Paginate returns the 1-indexed page of posts. Out-of-range pages are empty.
func Paginate(posts []Post, page, perPage int) []Post {
	if page < 1 || perPage <= 0 {
		return []Post{}
	}
	start := (page - 1) * perPage
	if start >= len(posts) {
		return []Post{}
	}
	end := start + perPage
	if end > len(posts) {
		end = len(posts)
	}
	return posts[start:end]
}

// RelatedPosts finds posts that share a category or at least one tag with
// current, up to limit. A non-positive limit means no limit.
func RelatedPosts(current Post, posts []Post, limit int) []Post {
	tagSet := make(map[string]struct{})
	for _, t := range current.Tags {
		tag := strings.ToLower(strings.TrimSpace(t))
		if tag != "" {
			tagSet[tag] = struct{}{}
		}
	}
	var related []Post
	for _, p := range posts {
		if p.ID == current.ID {
			continue
		}
		if shares(p, current.Category, tagSet) {
			related = append(related, p)
			if limit > 0 && len(related) == limit {
				break
			}
		}
	}
	return related
}

func shares(p Post, category string, tagSet map[string]struct{}) bool {
	if category != "" && category != Uncategorized && p.Category == category {
		return true
	}
	for _, t := range p.Tags {
		if _, ok := tagSet[strings.ToLower(strings.TrimSpace(t))]; ok {
			return true
		}
	}
	return false
}
