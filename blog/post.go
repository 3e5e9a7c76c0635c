// Package blog holds the post store: a TTL cache over the content API with
// stale fallbacks, and the filtered and paginated views the pages read.
package blog

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/eringen/folioblog/contentful"
	"github.com/eringen/folioblog/markdown"
)

// Placeholders used when an article is missing a field.
const (
	UntitledTitle   = "Untitled"
	Uncategorized   = "Uncategorized"
	AnonymousAuthor = "Anonymous"
	DefaultReadTime = "5 min read"
)

// Post is the flattened article record the pages render.
type Post struct {
	ID            string   `json:"id"`
	ContentType   string   `json:"contentType"`
	CreatedAt     string   `json:"createdAt"`
	UpdatedAt     string   `json:"updatedAt"`
	Title         string   `json:"title"`
	Excerpt       string   `json:"excerpt"`
	Content       string   `json:"content"` // HTML
	Slug          string   `json:"slug"`
	Category      string   `json:"category"`
	Tags          []string `json:"tags"`
	Thumbnail     string   `json:"thumbnail"`
	ThumbnailID   string   `json:"thumbnailId,omitempty"`
	Author        string   `json:"author"`
	PublishedDate string   `json:"publishedDate"`
	ReadTime      string   `json:"readTime"`
}

// Date returns the publish date, falling back to the creation time.
func (p Post) Date() string {
	if p.PublishedDate != "" {
		return p.PublishedDate
	}
	return p.CreatedAt
}

// PostFromEntry flattens a normalized article. Missing title, category,
// author and read time get placeholders; missing tags become empty.
func PostFromEntry(e contentful.Entry) Post {
	p := Post{
		ID:            e.ID(),
		ContentType:   e.ContentType(),
		CreatedAt:     e.String("createdAt"),
		UpdatedAt:     e.String("updatedAt"),
		Title:         e.String("title"),
		Excerpt:       e.String("excerpt"),
		Slug:          e.String("slug"),
		PublishedDate: e.String("publishedDate"),
		ReadTime:      e.String("readTime"),
		Tags:          []string{},
	}
	if p.Title == "" {
		p.Title = UntitledTitle
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	if p.ReadTime == "" {
		p.ReadTime = DefaultReadTime
	}

	switch {
	case e.Link("category") != nil:
		p.Category = e.Link("category").String("name")
	default:
		p.Category = e.String("category")
	}
	if p.Category == "" {
		p.Category = Uncategorized
	}

	switch {
	case e.Link("author") != nil:
		p.Author = e.Link("author").String("name")
	default:
		p.Author = e.String("author")
	}
	if p.Author == "" {
		p.Author = AnonymousAuthor
	}

	for _, tag := range e.Links("tags") {
		if name := strings.TrimSpace(tag.String("name")); name != "" {
			p.Tags = append(p.Tags, name)
		}
	}

	if a := e.Asset("thumbnail"); a != nil {
		p.Thumbnail = a.URL
		p.ThumbnailID = a.ID
	}

	if html, ok := e.HTML("content"); ok {
		p.Content = string(html)
	} else if src := e.String("content"); src != "" {
		out, err := markdown.Render(src)
		if err != nil {
			slog.Warn("blog: markdown render failed", "id", p.ID, "error", err)
		}
		p.Content = out
	}
	return p
}

// Slugify converts a title to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// categoriesFromPosts returns the distinct category names of posts, sorted.
func categoriesFromPosts(posts []Post) []string {
	return distinct(posts, func(p Post) []string { return []string{p.Category} })
}

// tagsFromPosts returns the distinct tag names of posts, sorted.
func tagsFromPosts(posts []Post) []string {
	return distinct(posts, func(p Post) []string { return p.Tags })
}

func distinct(posts []Post, values func(Post) []string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, p := range posts {
		for _, v := range values(p) {
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// names extracts the name field of taxonomy entries, skipping blanks.
func names(entries []contentful.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if n := strings.TrimSpace(e.String("name")); n != "" {
			out = append(out, n)
		}
	}
	return out
}
