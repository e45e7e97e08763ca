package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/axillles/BezShuma/app/database"
)

// Ingestor polls configured sources and moves accepted entries through the
// transform adapter into the channel queues.
type Ingestor struct {
	channels database.ChannelRepository
	sources  database.SourceRepository
	fetcher  FeedSource
	composer Composer
	dedup    *Dedup
	queue    *Queue
}

func NewIngestor(channels database.ChannelRepository, sources database.SourceRepository,
	fetcher FeedSource, composer Composer, dedup *Dedup, queue *Queue) *Ingestor {
	return &Ingestor{
		channels: channels,
		sources:  sources,
		fetcher:  fetcher,
		composer: composer,
		dedup:    dedup,
		queue:    queue,
	}
}

// Run polls every active source once. Failures are isolated per source: one
// failing feed never blocks the others in the same cycle.
func (i *Ingestor) Run(ctx context.Context) error {
	sources, err := i.sources.ListActiveSources()
	if err != nil {
		return fmt.Errorf("failed to list active sources: %w", err)
	}

	for _, source := range sources {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		accepted, err := i.RunSource(ctx, source)
		if err != nil {
			slog.Warn("Source ingestion failed", "source", source.URL, "error", err)
			continue
		}
		if accepted > 0 {
			slog.Info("Source ingested", "source", source.URL, "accepted", accepted)
		}
	}

	return nil
}

// RunSource fetches one source and enqueues its accepted entries oldest
// first, so queue placement preserves chronological story order. The last
// seen marker advances to the newest entry whenever the feed returned
// anything, regardless of how many entries were accepted. Returns the number
// of entries enqueued.
func (i *Ingestor) RunSource(ctx context.Context, source database.Source) (int, error) {
	ch, err := i.channels.GetChannel(source.ChannelID)
	if err != nil {
		return 0, fmt.Errorf("failed to load channel: %w", err)
	}
	if ch == nil {
		return 0, fmt.Errorf("channel %s not found", source.ChannelID)
	}

	entries, err := i.fetcher.Fetch(ctx, source.URL, source.LastGUID)
	if err != nil {
		if markErr := i.sources.SetSourceError(source.ID, true); markErr != nil {
			slog.Warn("Failed to flag source error", "source", source.URL, "error", markErr)
		}
		return 0, fmt.Errorf("failed to fetch feed: %w", err)
	}

	if len(entries) == 0 {
		return 0, nil
	}

	accepted := 0
	for idx := len(entries) - 1; idx >= 0; idx-- {
		entry := entries[idx]

		if !entry.HasMedia() {
			continue
		}

		duplicate, err := i.dedup.IsDuplicate(ch.ID, entry.Title, entry.Body, entry.GUID)
		if err != nil {
			slog.Warn("Duplicate check failed, skipping entry", "guid", entry.GUID, "error", err)
			continue
		}
		if duplicate {
			continue
		}

		content := i.composer.Compose(ctx, entry, *ch)

		scheduledAt, err := i.queue.Enqueue(*ch, QueueItem{
			SourceURL:     source.URL,
			OriginalTitle: entry.Title,
			OriginalBody:  entry.Body,
			Content:       content,
			Media:         entry.Media,
			OriginGUID:    entry.GUID,
		})
		if err != nil {
			slog.Warn("Failed to enqueue entry", "guid", entry.GUID, "error", err)
			continue
		}

		accepted++
		slog.Debug("Entry enqueued", "guid", entry.GUID, "scheduled_at", scheduledAt)
	}

	if err := i.sources.AdvanceSourceMark(source.ID, entries[0].GUID); err != nil {
		return accepted, fmt.Errorf("failed to advance source mark: %w", err)
	}

	return accepted, nil
}
