package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/axillles/BezShuma/app/database"
)

func cycleFixture(moderation bool) (*Cycle, *mockPostRepo, *mockPublisher) {
	ch := testChannel(7200)
	ch.ModerationMode = moderation
	channels := newMockChannelRepo(ch)

	posts := &mockPostRepo{channels: channels}
	publisher := &mockPublisher{messageID: "msg-1"}
	cycle := NewCycle(channels, posts, publisher)
	return cycle, posts, publisher
}

func TestCyclePublishesOnePostPerTick(t *testing.T) {
	cycle, posts, publisher := cycleFixture(false)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cycle.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		posts.CreatePost(database.Post{
			ChannelID:   "ch-1",
			Content:     "due post",
			ScheduledAt: now.Add(-time.Minute),
			Status:      database.StatusPending,
		})
	}

	if err := cycle.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if publisher.calls != 1 {
		t.Errorf("Expected 1 publish per tick, got %d", publisher.calls)
	}

	counts, _ := posts.GetStatusCounts()
	if counts[database.StatusPublished] != 1 || counts[database.StatusPending] != 1 {
		t.Errorf("Expected 1 published and 1 pending, got %v", counts)
	}
}

func TestCycleNoopWhenNothingDue(t *testing.T) {
	cycle, posts, publisher := cycleFixture(false)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cycle.now = func() time.Time { return now }

	posts.CreatePost(database.Post{
		ChannelID:   "ch-1",
		Content:     "future post",
		ScheduledAt: now.Add(time.Hour),
		Status:      database.StatusPending,
	})

	if err := cycle.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if publisher.calls != 0 {
		t.Errorf("Expected no publish calls, got %d", publisher.calls)
	}
}

func TestCyclePicksEarliestAcrossChannels(t *testing.T) {
	chA := testChannel(7200)
	chB := testChannel(3600)
	chB.ID = "ch-2"
	chB.ChatID = "-1002"
	channels := newMockChannelRepo(chA, chB)

	posts := &mockPostRepo{channels: channels}
	publisher := &mockPublisher{messageID: "msg-1"}
	cycle := NewCycle(channels, posts, publisher)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cycle.now = func() time.Time { return now }

	posts.CreatePost(database.Post{
		ChannelID:   "ch-1",
		Content:     "later",
		ScheduledAt: now.Add(-time.Minute),
		Status:      database.StatusPending,
	})
	posts.CreatePost(database.Post{
		ChannelID:   "ch-2",
		Content:     "earlier",
		ScheduledAt: now.Add(-time.Hour),
		Status:      database.StatusPending,
	})

	if err := cycle.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if publisher.lastChat != "-1002" {
		t.Errorf("Expected earliest post published to -1002, got %s", publisher.lastChat)
	}
}

func TestCycleSkipsInactiveChannel(t *testing.T) {
	ch := testChannel(7200)
	ch.IsActive = false
	channels := newMockChannelRepo(ch)

	posts := &mockPostRepo{channels: channels}
	publisher := &mockPublisher{messageID: "msg-1"}
	cycle := NewCycle(channels, posts, publisher)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cycle.now = func() time.Time { return now }

	posts.CreatePost(database.Post{
		ChannelID:   "ch-1",
		Content:     "due",
		ScheduledAt: now.Add(-time.Minute),
		Status:      database.StatusPending,
	})

	if err := cycle.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if publisher.calls != 0 {
		t.Errorf("Expected inactive channel to be skipped, got %d publish calls", publisher.calls)
	}
}

func TestCycleModerationHoldsPost(t *testing.T) {
	cycle, posts, publisher := cycleFixture(true)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cycle.now = func() time.Time { return now }

	id, _ := posts.CreatePost(database.Post{
		ChannelID:   "ch-1",
		Content:     "needs review",
		ScheduledAt: now.Add(-time.Minute),
		Status:      database.StatusPending,
	})

	if err := cycle.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if publisher.calls != 0 {
		t.Errorf("Expected no publish in moderation mode, got %d calls", publisher.calls)
	}

	post, _ := posts.GetPost(id)
	if post.Status != database.StatusModeration {
		t.Errorf("Expected status moderation, got %s", post.Status)
	}
}

func TestCyclePublishFailureMarksFailed(t *testing.T) {
	cycle, posts, publisher := cycleFixture(false)
	publisher.err = errors.New("network down")
	publisher.messageID = ""

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cycle.now = func() time.Time { return now }

	id, _ := posts.CreatePost(database.Post{
		ChannelID:   "ch-1",
		Content:     "doomed",
		ScheduledAt: now.Add(-time.Minute),
		Status:      database.StatusPending,
	})

	if err := cycle.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	post, _ := posts.GetPost(id)
	if post.Status != database.StatusFailed {
		t.Errorf("Expected status failed, got %s", post.Status)
	}

	// Next tick must not pick the failed post up again.
	publisher.calls = 0
	if err := cycle.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if publisher.calls != 0 {
		t.Errorf("Expected failed post to stay parked, got %d publish calls", publisher.calls)
	}
}

func TestPublishPostRecordsMessageID(t *testing.T) {
	cycle, posts, _ := cycleFixture(false)

	id, _ := posts.CreatePost(database.Post{
		ChannelID: "ch-1",
		Content:   "approved",
		Status:    database.StatusPending,
	})
	post, _ := posts.GetPost(id)

	messageID, err := cycle.PublishPost(context.Background(), *post)
	if err != nil {
		t.Fatal(err)
	}
	if messageID != "msg-1" {
		t.Errorf("Expected message id msg-1, got %s", messageID)
	}

	stored, _ := posts.GetPost(id)
	if stored.Status != database.StatusPublished {
		t.Errorf("Expected status published, got %s", stored.Status)
	}
	if stored.MessageID != "msg-1" {
		t.Errorf("Expected stored message id msg-1, got %s", stored.MessageID)
	}
}

func TestPublishPostKeepsModerationOnFailure(t *testing.T) {
	cycle, posts, publisher := cycleFixture(true)
	publisher.err = errors.New("rate limited")
	publisher.messageID = ""

	id, _ := posts.CreatePost(database.Post{
		ChannelID: "ch-1",
		Content:   "under review",
		Status:    database.StatusModeration,
	})
	post, _ := posts.GetPost(id)

	if _, err := cycle.PublishPost(context.Background(), *post); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Expected ErrPublishFailed, got %v", err)
	}

	stored, _ := posts.GetPost(id)
	if stored.Status != database.StatusModeration {
		t.Errorf("Expected post to stay in moderation, got %s", stored.Status)
	}
}

func TestPublishPostEmptyHandleIsFailure(t *testing.T) {
	cycle, posts, publisher := cycleFixture(false)
	publisher.messageID = ""

	id, _ := posts.CreatePost(database.Post{
		ChannelID: "ch-1",
		Content:   "no handle",
		Status:    database.StatusPending,
	})
	post, _ := posts.GetPost(id)

	if _, err := cycle.PublishPost(context.Background(), *post); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Expected ErrPublishFailed, got %v", err)
	}

	stored, _ := posts.GetPost(id)
	if stored.Status != database.StatusFailed {
		t.Errorf("Expected status failed, got %s", stored.Status)
	}
}

func TestCycleLoadsChannelOncePerTick(t *testing.T) {
	ch := testChannel(7200)
	channels := newMockChannelRepo(ch)
	posts := &mockPostRepo{}
	publisher := &mockPublisher{messageID: "msg-1"}
	cycle := NewCycle(channels, posts, publisher)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cycle.now = func() time.Time { return now }

	posts.CreatePost(database.Post{
		ChannelID:   "ch-1",
		Content:     "due post",
		ScheduledAt: now.Add(-time.Minute),
		Status:      database.StatusPending,
	})

	if err := cycle.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if publisher.calls != 1 {
		t.Fatalf("Expected 1 publish call, got %d", publisher.calls)
	}
	if channels.getCalls != 1 {
		t.Errorf("Expected 1 channel load per tick, got %d", channels.getCalls)
	}
}
