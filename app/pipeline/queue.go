package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/axillles/BezShuma/app/database"
)

// GracePeriod anchors the publish chain when no future-dated post exists.
const GracePeriod = 5 * time.Minute

// QueueItem is an accepted entry ready for placement in a channel queue.
type QueueItem struct {
	SourceURL     string
	OriginalTitle string
	OriginalBody  string
	Content       string
	Media         []string
	OriginGUID    string
}

// Queue assigns each accepted item a strictly increasing target publish time
// per channel. The queue is a time-ordered append log: placement only reads
// the current tail, which makes re-enqueuing after a crash recompute the
// same anchor.
//
// Placement is a read-then-write pair, so concurrent producers (the ingest
// loop and HTTP fetch handlers) must not interleave between the tail read
// and the insert. The lock coordinator already guarantees a single process,
// so a process-level mutex is enough to serialize them.
type Queue struct {
	mu    sync.Mutex
	posts database.PostRepository
	now   func() time.Time
}

func NewQueue(posts database.PostRepository) *Queue {
	return &Queue{posts: posts, now: time.Now}
}

// Enqueue appends the item to the channel queue and returns its scheduled
// time. If the tail is still in the future the item chains behind it at the
// channel interval; otherwise the chain re-anchors a grace period from now.
func (q *Queue) Enqueue(ch database.Channel, item QueueItem) (time.Time, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	tail, err := q.posts.LatestScheduled(ch.ID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read queue tail: %w", err)
	}

	now := q.now().UTC()

	var scheduledAt time.Time
	if tail != nil && tail.After(now) {
		scheduledAt = tail.Add(time.Duration(ch.PostInterval) * time.Second)
	} else {
		scheduledAt = now.Add(GracePeriod)
	}

	_, err = q.posts.CreatePost(database.Post{
		ChannelID:     ch.ID,
		SourceURL:     item.SourceURL,
		OriginalTitle: item.OriginalTitle,
		OriginalBody:  item.OriginalBody,
		Content:       item.Content,
		Media:         item.Media,
		ScheduledAt:   scheduledAt,
		Status:        database.StatusPending,
		OriginGUID:    item.OriginGUID,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to enqueue post: %w", err)
	}

	return scheduledAt, nil
}
