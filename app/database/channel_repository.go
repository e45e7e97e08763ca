package database

import (
	"database/sql"
	"fmt"
)

var _ ChannelRepository = (*channelRepository)(nil)

type channelRepository struct {
	db *DB
}

// NewChannelRepository creates a new channel repository
func NewChannelRepository(db *DB) ChannelRepository {
	return &channelRepository{db: db}
}

const channelColumns = `id, chat_id, name, topic, is_active, moderation_mode,
	post_interval, model, prompt, created_at, updated_at`

func scanChannel(row interface{ Scan(...interface{}) error }) (*Channel, error) {
	var ch Channel
	err := row.Scan(&ch.ID, &ch.ChatID, &ch.Name, &ch.Topic, &ch.IsActive,
		&ch.ModerationMode, &ch.PostInterval, &ch.Model, &ch.Prompt,
		&ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *channelRepository) GetChannel(id string) (*Channel, error) {
	ch, err := scanChannel(r.db.QueryRow(
		`SELECT `+channelColumns+` FROM channels WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return ch, nil
}

func (r *channelRepository) GetChannelByChatID(chatID string) (*Channel, error) {
	ch, err := scanChannel(r.db.QueryRow(
		`SELECT `+channelColumns+` FROM channels WHERE chat_id = $1`, chatID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel by chat id: %w", err)
	}
	return ch, nil
}

func (r *channelRepository) ListChannels() ([]Channel, error) {
	rows, err := r.db.Query(
		`SELECT ` + channelColumns + ` FROM channels ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel row: %w", err)
		}
		channels = append(channels, *ch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channel rows: %w", err)
	}

	return channels, nil
}

func (r *channelRepository) CreateChannel(ch Channel) (string, error) {
	if ch.PostInterval <= 0 {
		return "", fmt.Errorf("post interval must be positive, got %d", ch.PostInterval)
	}

	var id string
	err := r.db.QueryRow(`
		INSERT INTO channels (chat_id, name, topic, is_active, moderation_mode, post_interval, model, prompt)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, ch.ChatID, ch.Name, ch.Topic, ch.IsActive, ch.ModerationMode,
		ch.PostInterval, ch.Model, ch.Prompt).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create channel: %w", err)
	}

	return id, nil
}

// UpsertChannel inserts the channel or updates its settings, keyed by chat_id.
// The second return value reports whether the channel already existed.
func (r *channelRepository) UpsertChannel(ch Channel) (string, bool, error) {
	existing, err := r.GetChannelByChatID(ch.ChatID)
	if err != nil {
		return "", false, fmt.Errorf("failed to check existing channel: %w", err)
	}

	if existing == nil {
		id, err := r.CreateChannel(ch)
		return id, false, err
	}

	var id string
	err = r.db.QueryRow(`
		UPDATE channels
		SET name = $2, topic = $3, moderation_mode = $4, post_interval = $5,
		    model = $6, prompt = $7, updated_at = NOW()
		WHERE chat_id = $1
		RETURNING id
	`, ch.ChatID, ch.Name, ch.Topic, ch.ModerationMode, ch.PostInterval,
		ch.Model, ch.Prompt).Scan(&id)
	if err != nil {
		return "", false, fmt.Errorf("failed to update channel: %w", err)
	}

	return id, true, nil
}

func (r *channelRepository) UpdateChannelSettings(id string, upd ChannelUpdate) error {
	if upd.PostInterval != nil && *upd.PostInterval <= 0 {
		return fmt.Errorf("post interval must be positive, got %d", *upd.PostInterval)
	}

	result, err := r.db.Exec(`
		UPDATE channels
		SET name = COALESCE($2, name),
		    topic = COALESCE($3, topic),
		    is_active = COALESCE($4, is_active),
		    moderation_mode = COALESCE($5, moderation_mode),
		    post_interval = COALESCE($6, post_interval),
		    model = COALESCE($7, model),
		    prompt = COALESCE($8, prompt),
		    updated_at = NOW()
		WHERE id = $1
	`, id, upd.Name, upd.Topic, upd.IsActive, upd.ModerationMode,
		upd.PostInterval, upd.Model, upd.Prompt)
	if err != nil {
		return fmt.Errorf("failed to update channel settings: %w", err)
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

// DeleteChannel removes the channel; sources and posts cascade in the schema.
func (r *channelRepository) DeleteChannel(id string) error {
	result, err := r.db.Exec(`DELETE FROM channels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
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

func (r *channelRepository) GetChannelCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM channels`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get channel count: %w", err)
	}
	return count, nil
}
