package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/axillles/BezShuma/app/database"
)

// ErrPublishFailed is returned when the external publisher did not produce a
// message handle.
var ErrPublishFailed = errors.New("publish failed")

// Cycle is the repeating action that advances at most one ready post through
// its state machine per tick. Processing a single post per tick bounds the
// blast radius of a stuck external call and keeps cross-channel fairness.
type Cycle struct {
	channels  database.ChannelRepository
	posts     database.PostRepository
	publisher ChannelPublisher
	now       func() time.Time
}

func NewCycle(channels database.ChannelRepository, posts database.PostRepository,
	publisher ChannelPublisher) *Cycle {
	return &Cycle{
		channels:  channels,
		posts:     posts,
		publisher: publisher,
		now:       time.Now,
	}
}

// Run selects the globally earliest due pending post of an active channel
// and advances it one step. A tick with no ready post is a no-op.
func (c *Cycle) Run(ctx context.Context) error {
	post, err := c.posts.NextDue(c.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to select due post: %w", err)
	}
	if post == nil {
		return nil
	}

	ch, err := c.channels.GetChannel(post.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to load channel: %w", err)
	}
	if ch == nil {
		return fmt.Errorf("channel %s not found for post %s", post.ChannelID, post.ID)
	}

	if ch.ModerationMode {
		if err := c.posts.UpdateStatus(post.ID, database.StatusModeration, ""); err != nil {
			return fmt.Errorf("failed to move post to moderation: %w", err)
		}
		slog.Info("Post held for moderation", "post", post.ID, "channel", ch.Name)
		return nil
	}

	if _, err := c.publish(ctx, *ch, *post); err != nil {
		slog.Warn("Publish failed", "post", post.ID, "channel", ch.Name, "error", err)
	}

	return nil
}

// PublishPost calls the external publisher and records the outcome. The same
// action serves the automatic cycle, operator force-publish of pending or
// failed posts, and moderation approval. A post in moderation keeps its
// status on failure so the operator can retry the approval; any other post
// moves to failed.
func (c *Cycle) PublishPost(ctx context.Context, post database.Post) (string, error) {
	ch, err := c.channels.GetChannel(post.ChannelID)
	if err != nil {
		return "", fmt.Errorf("failed to load channel: %w", err)
	}
	if ch == nil {
		return "", fmt.Errorf("channel %s not found", post.ChannelID)
	}
	return c.publish(ctx, *ch, post)
}

func (c *Cycle) publish(ctx context.Context, ch database.Channel, post database.Post) (string, error) {
	messageID, err := c.publisher.Publish(ctx, ch.ChatID, post.Content, post.Media)
	if err != nil || messageID == "" {
		if post.Status != database.StatusModeration {
			if markErr := c.posts.UpdateStatus(post.ID, database.StatusFailed, ""); markErr != nil {
				slog.Warn("Failed to mark post failed", "post", post.ID, "error", markErr)
			}
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
		}
		return "", ErrPublishFailed
	}

	if err := c.posts.UpdateStatus(post.ID, database.StatusPublished, messageID); err != nil {
		return messageID, fmt.Errorf("published but failed to record: %w", err)
	}

	slog.Info("Post published", "post", post.ID, "channel", ch.Name, "message_id", messageID)
	return messageID, nil
}
