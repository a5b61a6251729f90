package goBlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/goBlog/api"
)

// Tracker keys of views that discard stale responses.
const (
	viewSearch   = "search"
	viewBlogPage = "blog_page"
)

// BlogDetail is everything the blog page shows.
type BlogDetail struct {
	Blog        api.Blog
	Preview     string
	Category    string
	SubCategory string
	Comments    []api.Comment
	Average     float64
	// ViewerRating is nil when the viewer is unknown or has not rated.
	ViewerRating *api.Rating
}

func (p *Portal) viewFailed(view string, err error) {
	p.logger.Warn("view load failed", slog.String("view", view), slog.String("error", err.Error()))
}

func (p *Portal) stale(view string) {
	p.metrics.Inc(MetricStaleResponseDiscarded)
	p.logger.Debug("discarding stale response", slog.String("view", view))
}

func (p *Portal) prepareBlog(b *api.Blog) {
	if !p.config.Content.Sanitize {
		return
	}
	b.Title = p.sanitizer.Text(b.Title)
	b.Summary = p.sanitizer.Text(b.Summary)
	b.Content = p.sanitizer.HTML(b.Content)
}

func (p *Portal) prepareBlogs(list []api.Blog) []api.Blog {
	for i := range list {
		p.prepareBlog(&list[i])
	}
	return list
}

// Preview returns the opening words of a blog's content as plain text.
func (p *Portal) Preview(b api.Blog) string {
	return p.sanitizer.Preview(b.Content, p.config.Content.PreviewWords)
}

// LatestBlogs returns the newest posts, or nil when the API fails.
func (p *Portal) LatestBlogs(ctx context.Context) []api.Blog {
	blogs, err := p.client.LatestBlogs(ctx)
	if err != nil {
		p.viewFailed("latest", err)
		return nil
	}
	return p.prepareBlogs(blogs)
}

// Search runs q and caches the result in the session. When a newer search
// starts before this one answers, the answer is discarded and Search returns
// nil without touching the session.
func (p *Portal) Search(ctx context.Context, q api.SearchQuery) []api.Blog {
	tag := p.tracker.Begin(viewSearch)
	blogs, err := p.client.Search(ctx, q)
	if !p.tracker.Finish(viewSearch, tag) {
		p.stale(viewSearch)
		return nil
	}
	if err != nil {
		p.viewFailed(viewSearch, err)
		return nil
	}

	blogs = p.prepareBlogs(blogs)
	p.store.SetFilteredBlogs(rawList(blogs))
	return blogs
}

// Categories returns the top-level categories and caches them in the session.
func (p *Portal) Categories(ctx context.Context) []api.Category {
	cats, err := p.client.Categories(ctx)
	if err != nil {
		p.viewFailed("categories", err)
		return nil
	}
	p.store.SetCategories(rawList(cats))
	return cats
}

// Subcategories returns the children of a category.
func (p *Portal) Subcategories(ctx context.Context, parentID string) []api.Category {
	if strings.TrimSpace(parentID) == "" {
		return nil
	}
	subs, err := p.client.Subcategories(ctx, parentID)
	if err != nil {
		p.viewFailed("subcategories", err)
		return nil
	}
	return subs
}

// BlogsByCategory lists the posts filed under a category and subcategory.
// Both are required; with either missing nothing is fetched.
func (p *Portal) BlogsByCategory(ctx context.Context, category, subCategory string) []api.Blog {
	if strings.TrimSpace(category) == "" || strings.TrimSpace(subCategory) == "" {
		return nil
	}
	blogs, err := p.client.BlogsByCategory(ctx, category, subCategory)
	if err != nil {
		p.viewFailed("by_category", err)
		return nil
	}
	return p.prepareBlogs(blogs)
}

// BlogPage loads one post with its category names, comments, average rating
// and the current viewer's rating. The lookups run concurrently.
//
// BlogPage returns nil when the post itself cannot be loaded or a newer
// BlogPage call started meanwhile. Failures of the other lookups are logged
// and leave their fields empty.
func (p *Portal) BlogPage(ctx context.Context, blogID string) *BlogDetail {
	blogID = strings.TrimSpace(blogID)
	if blogID == "" {
		return nil
	}

	tag := p.tracker.Begin(viewBlogPage)
	viewerID := p.store.Snapshot().ViewerID()
	detail := &BlogDetail{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		blog, err := p.client.Blog(gctx, blogID)
		if err != nil {
			return err
		}
		detail.Blog = *blog

		var names errgroup.Group
		if blog.Category != "" {
			names.Go(func() error {
				c, err := p.client.Category(gctx, blog.Category)
				if err != nil {
					p.viewFailed("blog_category", err)
					return nil
				}
				detail.Category = c.Name
				return nil
			})
		}
		if blog.SubCategory != "" {
			names.Go(func() error {
				c, err := p.client.Subcategory(gctx, blog.SubCategory)
				if err != nil {
					p.viewFailed("blog_subcategory", err)
					return nil
				}
				detail.SubCategory = c.Name
				return nil
			})
		}
		return names.Wait()
	})

	g.Go(func() error {
		comments, err := p.client.Comments(gctx, blogID)
		if err != nil {
			p.viewFailed("blog_comments", err)
			return nil
		}
		detail.Comments = comments
		return nil
	})

	g.Go(func() error {
		avg, err := p.client.AverageRating(gctx, blogID)
		if err != nil {
			p.viewFailed("blog_average", err)
			return nil
		}
		detail.Average = avg
		return nil
	})

	if viewerID != "" {
		g.Go(func() error {
			r, err := p.client.ViewerRating(gctx, blogID, viewerID)
			if err != nil {
				p.viewFailed("blog_viewer_rating", err)
				return nil
			}
			detail.ViewerRating = r
			return nil
		})
	}

	err := g.Wait()
	if !p.tracker.Finish(viewBlogPage, tag) {
		p.stale(viewBlogPage)
		return nil
	}
	if err != nil {
		p.viewFailed(viewBlogPage, err)
		return nil
	}

	p.prepareBlog(&detail.Blog)
	detail.Preview = p.Preview(detail.Blog)
	if p.config.Content.Sanitize {
		for i := range detail.Comments {
			detail.Comments[i].Content = p.sanitizer.Text(detail.Comments[i].Content)
		}
	}
	return detail
}

func rawList[T any](items []T) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			continue
		}
		out = append(out, b)
	}
	return out
}
