package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eringen/folioblog/blog"
	"github.com/eringen/folioblog/contentful"
)

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "List posts from the content API",
	Long: `posts fetches the article list the same way the server does and prints
one page of it, filtered by category and search query.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.SpaceID == "" || cfg.AccessToken == "" {
			return fmt.Errorf("space id and access token are required")
		}
		log := newLogger(os.Stderr)

		opts := []contentful.Option{contentful.WithLogger(log)}
		if cfg.BaseURL != "" {
			preview := cfg.PreviewURL
			if preview == "" {
				preview = contentful.DefaultPreviewURL
			}
			opts = append(opts, contentful.WithBaseURLs(cfg.BaseURL, preview))
		}
		client := contentful.NewClient(contentful.Config{
			SpaceID:     cfg.SpaceID,
			AccessToken: cfg.AccessToken,
			Timeout:     cfg.RequestTimeout,
		}, opts...)

		flags := cmd.Flags()
		category, _ := flags.GetString("category")
		search, _ := flags.GetString("search")
		page, _ := flags.GetInt("page")
		perPage, _ := flags.GetInt("per-page")
		asJSON, _ := flags.GetBool("json")
		listCategories, _ := flags.GetBool("categories")

		store := blog.New(client, blog.WithLogger(log), blog.WithFetchLimit(cfg.FetchLimit))
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return listPosts(ctx, cmd.OutOrStdout(), store, listOptions{
			Category:   category,
			Search:     search,
			Page:       page,
			PerPage:    perPage,
			JSON:       asJSON,
			Categories: listCategories,
		})
	},
}

func init() {
	f := postsCmd.Flags()
	f.String("category", "", "only posts in this category")
	f.String("search", "", "only posts matching this query")
	f.Int("page", 1, "page to print")
	f.Int("per-page", blog.DefaultItemsPerPage, "posts per page")
	f.Bool("json", false, "print JSON")
	f.Bool("categories", false, "print the categories and tags instead of posts")
}

type listOptions struct {
	Category   string
	Search     string
	Page       int
	PerPage    int
	JSON       bool
	Categories bool
}

// listPosts drives the store through its selection state and prints the
// resulting page.
func listPosts(ctx context.Context, w io.Writer, store *blog.Store, o listOptions) error {
	if o.Categories {
		categories := store.FetchCategories(ctx, blog.FetchOptions{})
		tags := store.FetchTags(ctx, blog.FetchOptions{})
		if msg := store.Err(); msg != "" {
			return fmt.Errorf("%s", msg)
		}
		if o.JSON {
			return writeJSON(w, map[string][]string{"categories": categories, "tags": tags})
		}
		fmt.Fprintf(w, "Categories: %s\nTags: %s\n", strings.Join(categories, ", "), strings.Join(tags, ", "))
		return nil
	}

	store.FetchPosts(ctx, blog.FetchOptions{})
	if msg := store.Err(); msg != "" {
		return fmt.Errorf("%s", msg)
	}
	store.SetItemsPerPage(o.PerPage)
	store.SetCategory(o.Category)
	store.SetSearchQuery(o.Search)
	store.SetPage(o.Page)

	posts := store.PaginatedPosts()
	if o.JSON {
		return writeJSON(w, struct {
			Posts      []blog.Post `json:"posts"`
			Page       int         `json:"page"`
			TotalPages int         `json:"totalPages"`
			Total      int         `json:"total"`
		}{posts, store.CurrentPage(), store.TotalPages(), len(store.FilteredPosts())})
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tCATEGORY\tSLUG\tTITLE")
	for _, p := range posts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", shortDate(p.Date()), p.Category, p.Slug, p.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\npage %d of %d (%d posts)\n", store.CurrentPage(), store.TotalPages(), len(store.FilteredPosts()))
	return nil
}

func shortDate(s string) string {
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
