package cli

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goBlog/session"
)

func (a *app) commentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Add or delete comments (requires login)",
	}

	add := &cobra.Command{
		Use:   "add <blog-id> <text>...",
		Short: "Comment on a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			return p.Protect(cmd.Context(), func(ctx context.Context, s session.Session) error {
				c, err := p.AddComment(ctx, args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				if c == nil {
					a.printer.Warning("No viewer record in the session; comment not sent. Run 'blogportal login' again.")
					return nil
				}
				a.printer.Success("Comment %s added", c.ID)
				a.printer.PrintHints("comment add")
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <comment-id>",
		Short: "Delete a comment",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			return p.Protect(cmd.Context(), func(ctx context.Context, _ session.Session) error {
				if err := p.DeleteComment(ctx, args[0]); err != nil {
					return err
				}
				a.printer.Success("Comment %s deleted", args[0])
				a.printer.PrintHints("comment delete")
				return nil
			})
		},
	}

	cmd.AddCommand(add, del)
	return cmd
}

func (a *app) rateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate <blog-id> <1-5>",
		Short: "Rate a post (requires login)",
		Long: `Rate a post from 1 to 5. Rating a post again replaces your earlier
rating. The refreshed average is printed.`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.Atoi(args[1])
			if err != nil {
				return usageError(cmd, err)
			}
			p, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			return p.Protect(cmd.Context(), func(ctx context.Context, s session.Session) error {
				if s.ViewerID() == "" {
					a.printer.Warning("No viewer record in the session; rating not sent. Run 'blogportal login' again.")
					return nil
				}
				avg, err := p.Rate(ctx, args[0], value)
				if err != nil {
					return err
				}
				a.printer.Success("Rated %d; average is now %.1f", value, avg)
				a.printer.PrintHints("rate")
				return nil
			})
		},
	}
}
