package blog

import (
	"strconv"
	"testing"
)

func posts(n int) []Post {
	out := make([]Post, n)
	for i := range out {
		out[i] = Post{ID: strconv.Itoa(i + 1), Title: "Post " + strconv.Itoa(i+1)}
	}
	return out
}

func ids(ps []Post) string {
	s := ""
	for i, p := range ps {
		if i > 0 {
			s += ","
		}
		s += p.ID
	}
	return s
}

func TestFilterPosts(t *testing.T) {
	all := []Post{
		{ID: "1", Title: "Composition API", Excerpt: "setup()", Category: "Vue.js", Tags: []string{"Vue3"}},
		{ID: "2", Title: "Tailwind", Excerpt: "utility first", Category: "CSS", Tags: []string{"UI"}},
		{ID: "3", Title: "Pinia", Excerpt: "state management", Category: "Vue.js", Tags: []string{"State"}},
	}
	tests := []struct {
		name     string
		filter   Filter
		expected string
	}{
		{"none", Filter{}, "1,2,3"},
		{"category", Filter{Category: "CSS"}, "2"},
		{"category is exact", Filter{Category: "css"}, ""},
		{"title", Filter{Query: "pinia"}, "3"},
		{"excerpt", Filter{Query: "UTILITY"}, "2"},
		{"tag", Filter{Query: "vue3"}, "1"},
		{"category and query", Filter{Category: "Vue.js", Query: "state"}, "3"},
		{"no match", Filter{Query: "rust"}, ""},
	}
	for _, tt := range tests {
		if got := ids(FilterPosts(all, tt.filter)); got != tt.expected {
			t.Errorf("%s: FilterPosts = %q, want %q", tt.name, got, tt.expected)
		}
	}
}

func TestFilterPostsMatchesQueryAsTyped(t *testing.T) {
	all := []Post{
		{ID: "1", Title: "Go generics"},
		{ID: "2", Title: "Rust", Excerpt: "ownership", Tags: []string{"memory"}},
	}
	tests := []struct {
		query    string
		expected string
	}{
		{" ", "1"},
		{" generics", "1"},
		{"rust ", ""},
		{"RUST", "2"},
	}
	for _, tt := range tests {
		if got := ids(FilterPosts(all, Filter{Query: tt.query})); got != tt.expected {
			t.Errorf("FilterPosts(%q) = %q, want %q", tt.query, got, tt.expected)
		}
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		n, perPage, expected int
	}{
		{0, 9, 0},
		{9, 9, 1},
		{10, 9, 2},
		{18, 9, 2},
		{19, 9, 3},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := PageCount(tt.n, tt.perPage); got != tt.expected {
			t.Errorf("PageCount(%d, %d) = %d, want %d", tt.n, tt.perPage, got, tt.expected)
		}
	}
}

func TestPaginate(t *testing.T) {
	all := posts(10)
	tests := []struct {
		page, perPage int
		expected      string
	}{
		{1, 4, "1,2,3,4"},
		{3, 4, "9,10"},
		{4, 4, ""},
		{0, 4, ""},
		{1, 0, ""},
		{2, 9, "10"},
	}
	for _, tt := range tests {
		if got := ids(Paginate(all, tt.page, tt.perPage)); got != tt.expected {
			t.Errorf("Paginate(page=%d, perPage=%d) = %q, want %q", tt.page, tt.perPage, got, tt.expected)
		}
	}
}

func TestRelatedPosts(t *testing.T) {
	current := Post{ID: "1", Category: "Vue.js", Tags: []string{"Vue3", "Frontend"}}
	all := []Post{
		current,
		{ID: "2", Category: "CSS", Tags: []string{"frontend"}},
		{ID: "3", Category: "Vue.js", Tags: []string{}},
		{ID: "4", Category: "Go", Tags: []string{"Backend"}},
		{ID: "5", Category: "Tools", Tags: []string{" VUE3 "}},
	}

	if got := ids(RelatedPosts(current, all, 0)); got != "2,3,5" {
		t.Errorf("RelatedPosts = %q, want %q", got, "2,3,5")
	}
	if got := ids(RelatedPosts(current, all, 2)); got != "2,3" {
		t.Errorf("RelatedPosts limit 2 = %q, want %q", got, "2,3")
	}
}

func TestRelatedPostsIgnoresPlaceholderCategory(t *testing.T) {
	current := Post{ID: "1", Category: Uncategorized}
	all := []Post{{ID: "2", Category: Uncategorized}}
	if got := RelatedPosts(current, all, 0); len(got) != 0 {
		t.Errorf("RelatedPosts = %v, want none", got)
	}
}
