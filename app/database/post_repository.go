package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

var _ PostRepository = (*postRepository)(nil)

type postRepository struct {
	db *DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, channel_id, source_url, original_title, original_body,
	content, media, scheduled_at, message_id, status, origin_guid, created_at, updated_at`

func scanPost(row interface{ Scan(...interface{}) error }) (*Post, error) {
	var p Post
	var originGUID sql.NullString
	err := row.Scan(&p.ID, &p.ChannelID, &p.SourceURL, &p.OriginalTitle,
		&p.OriginalBody, &p.Content, pq.Array(&p.Media), &p.ScheduledAt,
		&p.MessageID, &p.Status, &originGUID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.OriginGUID = originGUID.String
	return &p, nil
}

func (r *postRepository) GetPost(id string) (*Post, error) {
	p, err := scanPost(r.db.QueryRow(
		`SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return p, nil
}

func (r *postRepository) CreatePost(p Post) (string, error) {
	var originGUID sql.NullString
	if p.OriginGUID != "" {
		originGUID = sql.NullString{String: p.OriginGUID, Valid: true}
	}

	status := p.Status
	if status == "" {
		status = StatusPending
	}

	var id string
	err := r.db.QueryRow(`
		INSERT INTO posts (channel_id, source_url, original_title, original_body,
			content, media, scheduled_at, status, origin_guid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, p.ChannelID, p.SourceURL, p.OriginalTitle, p.OriginalBody, p.Content,
		pq.Array(p.Media), p.ScheduledAt, status, originGUID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create post: %w", err)
	}

	return id, nil
}

func (r *postRepository) ListQueue(channelID string, limit int) ([]Post, error) {
	rows, err := r.db.Query(`
		SELECT `+postColumns+`
		FROM posts
		WHERE channel_id = $1
		ORDER BY scheduled_at
		LIMIT $2
	`, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}

	return posts, nil
}

// LatestScheduled returns the channel queue tail, nil when the queue is empty.
func (r *postRepository) LatestScheduled(channelID string) (*time.Time, error) {
	var t sql.NullTime
	err := r.db.QueryRow(`
		SELECT MAX(scheduled_at) FROM posts WHERE channel_id = $1
	`, channelID).Scan(&t)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest scheduled time: %w", err)
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}

// NextDue returns the globally earliest pending post of an active channel
// that is due at the given instant, or nil when nothing is ready.
func (r *postRepository) NextDue(now time.Time) (*Post, error) {
	p, err := scanPost(r.db.QueryRow(`
		SELECT p.id, p.channel_id, p.source_url, p.original_title, p.original_body,
		       p.content, p.media, p.scheduled_at, p.message_id, p.status,
		       p.origin_guid, p.created_at, p.updated_at
		FROM posts p
		JOIN channels c ON c.id = p.channel_id
		WHERE p.status = 'pending'
		  AND c.is_active = TRUE
		  AND p.scheduled_at <= $1
		ORDER BY p.scheduled_at
		LIMIT 1
	`, now))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next due post: %w", err)
	}
	return p, nil
}

// UpdateStatus moves the post through the state machine. The current status is
// re-read inside a transaction so concurrent transitions cannot skip validation.
func (r *postRepository) UpdateStatus(id string, to Status, messageID string) error {
	if !ValidStatus(to) {
		return fmt.Errorf("unknown status: %s", to)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var from Status
	err = tx.QueryRow(`SELECT status FROM posts WHERE id = $1 FOR UPDATE`, id).Scan(&from)
	if err == sql.ErrNoRows {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("failed to read post status: %w", err)
	}

	if !CanTransition(from, to) {
		return &ErrInvalidTransition{From: from, To: to}
	}

	_, err = tx.Exec(`
		UPDATE posts
		SET status = $2,
		    message_id = CASE WHEN $3 <> '' THEN $3 ELSE message_id END,
		    updated_at = NOW()
		WHERE id = $1
	`, id, to, messageID)
	if err != nil {
		return fmt.Errorf("failed to update post status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit status update: %w", err)
	}

	return nil
}

func (r *postRepository) UpdateContent(id, content string) error {
	result, err := r.db.Exec(`
		UPDATE posts SET content = $2, updated_at = NOW() WHERE id = $1
	`, id, content)
	if err != nil {
		return fmt.Errorf("failed to update post content: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (r *postRepository) DeletePost(id string) error {
	result, err := r.db.Exec(`DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (r *postRepository) ClearPending(channelID string) (int, error) {
	result, err := r.db.Exec(`
		DELETE FROM posts WHERE channel_id = $1 AND status = 'pending'
	`, channelID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear pending posts: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check clear result: %w", err)
	}

	return int(affected), nil
}

// HasOrigin checks the exact-match dedup fast path among non-rejected posts.
func (r *postRepository) HasOrigin(channelID, originGUID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM posts
			WHERE channel_id = $1 AND origin_guid = $2 AND status <> 'rejected'
		)
	`, channelID, originGUID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check origin: %w", err)
	}
	return exists, nil
}

// RecentOriginals returns the newest non-rejected posts for similarity checks.
func (r *postRepository) RecentOriginals(channelID string, limit int) ([]Post, error) {
	rows, err := r.db.Query(`
		SELECT `+postColumns+`
		FROM posts
		WHERE channel_id = $1 AND status <> 'rejected'
		ORDER BY created_at DESC
		LIMIT $2
	`, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}

	return posts, nil
}

func (r *postRepository) GetStatusCounts() (map[Status]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM posts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating count rows: %w", err)
	}

	return counts, nil
}
