package pipeline

import (
	"context"

	"github.com/axillles/BezShuma/app/database"
	"github.com/axillles/BezShuma/app/feed"
)

// FeedSource fetches entries newer than sinceGUID in feed-native order.
// An empty result is not an error.
type FeedSource interface {
	Fetch(ctx context.Context, url, sinceGUID string) ([]feed.Entry, error)
}

// Composer turns a raw entry into channel-ready copy. It never fails;
// internal errors degrade to deterministic fallback text.
type Composer interface {
	Compose(ctx context.Context, entry feed.Entry, ch database.Channel) string
}

// ChannelPublisher delivers a post to its destination and returns the
// external message id, or an empty id with an error on failure.
type ChannelPublisher interface {
	Publish(ctx context.Context, chatID, text string, media []string) (string, error)
}
