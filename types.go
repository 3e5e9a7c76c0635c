package folioblog

import "github.com/eringen/folioblog/blog"

// PostSummary is a post without its rendered body, as listed by /api/posts.
type PostSummary struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Slug          string   `json:"slug"`
	URL           string   `json:"url"`
	Excerpt       string   `json:"excerpt"`
	Category      string   `json:"category"`
	Tags          []string `json:"tags"`
	Thumbnail     string   `json:"thumbnail,omitempty"`
	Author        string   `json:"author"`
	PublishedDate string   `json:"publishedDate"`
	ReadTime      string   `json:"readTime"`
}

func summarize(base string, posts []blog.Post) []PostSummary {
	out := make([]PostSummary, 0, len(posts))
	for _, p := range posts {
		out = append(out, PostSummary{
			ID:            p.ID,
			Title:         p.Title,
			Slug:          p.Slug,
			URL:           BuildURL(base, "blog", p.Slug),
			Excerpt:       p.Excerpt,
			Category:      p.Category,
			Tags:          p.Tags,
			Thumbnail:     p.Thumbnail,
			Author:        p.Author,
			PublishedDate: p.Date(),
			ReadTime:      p.ReadTime,
		})
	}
	return out
}

// PostsResponse is the JSON body of /api/posts.
type PostsResponse struct {
	Posts      []PostSummary `json:"posts"`
	Category   string        `json:"category,omitempty"`
	Query      string        `json:"query,omitempty"`
	Page       int           `json:"page"`
	PerPage    int           `json:"perPage"`
	TotalPages int           `json:"totalPages"`
	Total      int           `json:"total"`
	Error      string        `json:"error,omitempty"`
}

// NamesResponse is the JSON body of /api/categories and /api/tags.
type NamesResponse struct {
	Items []string `json:"items"`
	Error string   `json:"error,omitempty"`
}

// HealthResponse is the JSON body of /healthz.
type HealthResponse struct {
	Status    string `json:"status"`
	Posts     int    `json:"posts"`
	LastFetch string `json:"lastFetch,omitempty"`
	Error     string `json:"error,omitempty"`
	Space     string `json:"space"`
	Preview   bool   `json:"preview"`
}
