package database

import (
	"time"
)

// Channel represents a publishing destination
type Channel struct {
	ID             string // Database UUID
	ChatID         string // External destination handle (e.g. Telegram chat id or @username)
	Name           string
	Topic          string
	IsActive       bool
	ModerationMode bool
	PostInterval   int // Minimum spacing between publishes, seconds
	Model          string
	Prompt         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Source represents an RSS feed bound to a channel
type Source struct {
	ID         string
	ChannelID  string
	URL        string
	Name       string
	IsActive   bool
	LastGUID   string // Identifier of the newest entry already processed
	FetchError bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Post represents one queued or published item
type Post struct {
	ID            string
	ChannelID     string
	SourceURL     string
	OriginalTitle string
	OriginalBody  string
	Content       string // Transformed channel-ready copy
	Media         []string
	ScheduledAt   time.Time
	MessageID     string // External message id once published
	Status        Status
	OriginGUID    string // Origin entry identifier, empty when created manually
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
