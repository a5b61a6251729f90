package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strconv"

	"github.com/spf13/cobra"

	goBlog "github.com/MrEthical07/goBlog"
	"github.com/MrEthical07/goBlog/api"
	"github.com/MrEthical07/goBlog/internal/output"
	"github.com/MrEthical07/goBlog/session"
)

func (a *app) latestCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show your feed of the newest posts (requires login)",
		Long: `Show the newest posts. This is the signed-in home feed: without a valid
session token the command exits with code 3 and fetches nothing.

Examples:
  blogportal latest
  blogportal latest --json`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			return p.Protect(cmd.Context(), func(ctx context.Context, _ session.Session) error {
				blogs := p.LatestBlogs(ctx)
				if jsonOutput {
					return a.writeJSON(blogs)
				}
				return a.printBlogs(p, "latest", blogs)
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var (
		q          api.SearchQuery
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "search [name]",
		Short: "Search posts by title and filters",
		Long: `Search posts. The optional argument matches titles; flags narrow the
result further.

Examples:
  blogportal search goroutines
  blogportal search --category <id> --rating 4`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				q.Name = args[0]
			}
			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			blogs := p.Search(cmd.Context(), q)
			if jsonOutput {
				return a.writeJSON(blogs)
			}
			return a.printBlogs(p, "search", blogs)
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.ReadTime, "read-time", "", "read time in minutes")
	f.StringVar(&q.Rating, "rating", "", "minimum rating")
	f.StringVar(&q.NumComments, "comments", "", "minimum number of comments")
	f.StringVar(&q.Category, "category", "", "category id")
	f.StringVar(&q.SubCategory, "subcategory", "", "subcategory id")
	f.BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func (a *app) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List top-level categories",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			return a.printCategories("categories", p.Categories(cmd.Context()))
		},
	}
}

func (a *app) subcategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "subcategories <category-id>",
		Short: "List the subcategories of a category",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			return a.printCategories("subcategories", p.Subcategories(cmd.Context(), args[0]))
		},
	}
}

func (a *app) browseCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "browse <category-id> <subcategory-id>",
		Short: "List posts filed under a subcategory",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			blogs := p.BlogsByCategory(cmd.Context(), args[0], args[1])
			if jsonOutput {
				return a.writeJSON(blogs)
			}
			return a.printBlogs(p, "browse", blogs)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func (a *app) blogCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "blog <id>",
		Short: "Read a post with its comments and ratings",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			page := p.BlogPage(cmd.Context(), args[0])
			if page == nil {
				return &output.CLIError{
					Summary:    fmt.Sprintf("blog %s could not be loaded", args[0]),
					Suggestion: "Check the id with 'blogportal latest' or 'blogportal search'",
					ExitCode:   output.ExitAPIError,
				}
			}
			if jsonOutput {
				return a.writeJSON(page)
			}
			return a.printBlogPage(page)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.printer.Out())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printBlogs(p *goBlog.Portal, command string, blogs []api.Blog) error {
	if len(blogs) == 0 {
		a.printer.Info("No posts found")
		return nil
	}
	tbl := a.printer.NewTable("ID", "Title", "Read", "Rating", "Comments", "Preview")
	for _, b := range blogs {
		tbl.AddRow(
			b.ID,
			b.Title,
			readTime(b.ReadTime),
			strconv.FormatFloat(b.Rating, 'f', 1, 64),
			strconv.Itoa(b.NumComments),
			p.Preview(b),
		)
	}
	if err := tbl.Render(); err != nil {
		return err
	}
	a.printer.PrintHints(command)
	return nil
}

func (a *app) printCategories(command string, cats []api.Category) error {
	if len(cats) == 0 {
		a.printer.Info("No categories found")
		return nil
	}
	tbl := a.printer.NewTable("ID", "Name")
	for _, c := range cats {
		tbl.AddRow(c.ID, c.Name)
	}
	if err := tbl.Render(); err != nil {
		return err
	}
	a.printer.PrintHints(command)
	return nil
}

func (a *app) printBlogPage(page *goBlog.BlogDetail) error {
	b := page.Blog
	a.printer.Header(b.Title)
	if b.Summary != "" {
		a.printer.Print("%s", a.printer.Dim(b.Summary))
	}
	category := page.Category
	if page.SubCategory != "" {
		category += " / " + page.SubCategory
	}
	a.printer.Print("%s · %s · average %.1f", category, readTime(b.ReadTime), page.Average)
	if page.ViewerRating != nil {
		a.printer.Print("Your rating: %d", page.ViewerRating.Value)
	}
	a.printer.Print("")
	a.printer.Print("%s", html.UnescapeString(a.text.Text(b.Content)))

	a.printer.Header(fmt.Sprintf("Comments (%d)", len(page.Comments)))
	if len(page.Comments) > 0 {
		tbl := a.printer.NewTable("ID", "By", "Comment")
		for _, c := range page.Comments {
			by := c.CommenterName
			if by == "" {
				by = c.Commenter
			}
			tbl.AddRow(c.ID, by, c.Content)
		}
		if err := tbl.Render(); err != nil {
			return err
		}
	}
	a.printer.PrintHints("blog")
	return nil
}

func readTime(rt api.Flexible) string {
	if n := rt.Int(); n > 0 {
		return fmt.Sprintf("%d min", n)
	}
	if rt == "" {
		return "-"
	}
	return string(rt)
}
