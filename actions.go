package goBlog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrEthical07/goBlog/api"
)

// AddComment posts content on a blog as the current viewer. Without a viewer
// in the session it does nothing and returns nil, nil.
func (p *Portal) AddComment(ctx context.Context, blogID, content string) (*api.Comment, error) {
	viewerID := p.store.Snapshot().ViewerID()
	if viewerID == "" {
		p.logger.Debug("comment skipped: no viewer")
		return nil, nil
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyComment
	}

	c, err := p.client.AddComment(ctx, api.NewComment{
		Content:   content,
		BlogID:    strings.TrimSpace(blogID),
		Commenter: viewerID,
	})
	if err != nil {
		p.actionFailed("add_comment", err)
		return nil, fmt.Errorf("add comment: %w", err)
	}
	return c, nil
}

// DeleteComment removes a comment by id.
func (p *Portal) DeleteComment(ctx context.Context, commentID string) error {
	if err := p.client.DeleteComment(ctx, commentID); err != nil {
		p.actionFailed("delete_comment", err)
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// Rate records the viewer's rating of a blog and returns the refreshed
// average. A viewer who already rated the blog has their rating updated.
// Without a viewer in the session Rate does nothing and returns 0, nil.
func (p *Portal) Rate(ctx context.Context, blogID string, value int) (float64, error) {
	viewerID := p.store.Snapshot().ViewerID()
	if viewerID == "" {
		p.logger.Debug("rating skipped: no viewer")
		return 0, nil
	}
	if value < 1 || value > 5 {
		return 0, ErrInvalidRating
	}
	blogID = strings.TrimSpace(blogID)

	existing, err := p.client.ViewerRating(ctx, blogID, viewerID)
	if err != nil {
		p.actionFailed("rate", err)
		return 0, fmt.Errorf("rate: %w", err)
	}

	if existing != nil {
		err = p.client.UpdateRating(ctx, existing.ID, api.RatingUpdate{Value: value, RaterID: viewerID})
	} else {
		err = p.client.CreateRating(ctx, api.NewRating{Value: value, BlogID: blogID, Rater: viewerID})
	}
	if err != nil {
		p.actionFailed("rate", err)
		return 0, fmt.Errorf("rate: %w", err)
	}

	avg, err := p.client.AverageRating(ctx, blogID)
	if err != nil {
		p.actionFailed("rate", err)
		return 0, fmt.Errorf("rate: refresh average: %w", err)
	}
	return avg, nil
}

func (p *Portal) actionFailed(action string, err error) {
	p.logger.Error("action failed", slog.String("action", action), slog.String("error", err.Error()))
}
