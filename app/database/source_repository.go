package database

import (
	"database/sql"
	"fmt"
)

var _ SourceRepository = (*sourceRepository)(nil)

type sourceRepository struct {
	db *DB
}

// NewSourceRepository creates a new source repository
func NewSourceRepository(db *DB) SourceRepository {
	return &sourceRepository{db: db}
}

const sourceColumns = `id, channel_id, url, name, is_active, last_guid,
	fetch_error, created_at, updated_at`

func scanSource(row interface{ Scan(...interface{}) error }) (*Source, error) {
	var s Source
	err := row.Scan(&s.ID, &s.ChannelID, &s.URL, &s.Name, &s.IsActive,
		&s.LastGUID, &s.FetchError, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sourceRepository) GetSource(id string) (*Source, error) {
	s, err := scanSource(r.db.QueryRow(
		`SELECT `+sourceColumns+` FROM rss_sources WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return s, nil
}

func (r *sourceRepository) ListSources(channelID string) ([]Source, error) {
	rows, err := r.db.Query(
		`SELECT `+sourceColumns+` FROM rss_sources WHERE channel_id = $1 ORDER BY created_at`,
		channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	return collectSources(rows)
}

// ListActiveSources returns active sources whose owning channel is active.
func (r *sourceRepository) ListActiveSources() ([]Source, error) {
	rows, err := r.db.Query(`
		SELECT s.id, s.channel_id, s.url, s.name, s.is_active, s.last_guid,
		       s.fetch_error, s.created_at, s.updated_at
		FROM rss_sources s
		JOIN channels c ON c.id = s.channel_id
		WHERE s.is_active = TRUE AND c.is_active = TRUE
		ORDER BY s.created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sources: %w", err)
	}
	defer rows.Close()

	return collectSources(rows)
}

func collectSources(rows *sql.Rows) ([]Source, error) {
	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

func (r *sourceRepository) CreateSource(s Source) (string, error) {
	var id string
	err := r.db.QueryRow(`
		INSERT INTO rss_sources (channel_id, url, name, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, s.ChannelID, s.URL, s.Name, s.IsActive).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create source: %w", err)
	}
	return id, nil
}

// UpsertSource registers the source if missing. The last seen marker of an
// existing source is deliberately left untouched: it only moves forward.
func (r *sourceRepository) UpsertSource(channelID, url, name string) (string, error) {
	var id string
	err := r.db.QueryRow(`
		INSERT INTO rss_sources (channel_id, url, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel_id, url) DO UPDATE SET
			name = EXCLUDED.name,
			updated_at = NOW()
		RETURNING id
	`, channelID, url, name).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert source: %w", err)
	}
	return id, nil
}

// AdvanceSourceMark records the newest processed entry id and clears the error flag.
func (r *sourceRepository) AdvanceSourceMark(id, lastGUID string) error {
	_, err := r.db.Exec(`
		UPDATE rss_sources
		SET last_guid = $2, fetch_error = FALSE, updated_at = NOW()
		WHERE id = $1
	`, id, lastGUID)
	if err != nil {
		return fmt.Errorf("failed to advance source mark: %w", err)
	}
	return nil
}

func (r *sourceRepository) SetSourceError(id string, failed bool) error {
	_, err := r.db.Exec(`
		UPDATE rss_sources
		SET fetch_error = $2, updated_at = NOW()
		WHERE id = $1
	`, id, failed)
	if err != nil {
		return fmt.Errorf("failed to set source error flag: %w", err)
	}
	return nil
}

func (r *sourceRepository) DeleteSource(id string) error {
	result, err := r.db.Exec(`DELETE FROM rss_sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
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
