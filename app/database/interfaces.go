package database

import (
	"time"
)

// ChannelUpdate carries a partial settings update; nil fields are left unchanged.
type ChannelUpdate struct {
	Name           *string
	Topic          *string
	IsActive       *bool
	ModerationMode *bool
	PostInterval   *int
	Model          *string
	Prompt         *string
}

type ChannelRepository interface {
	GetChannel(id string) (*Channel, error)
	GetChannelByChatID(chatID string) (*Channel, error)
	ListChannels() ([]Channel, error)
	CreateChannel(ch Channel) (string, error)
	UpsertChannel(ch Channel) (string, bool, error)
	UpdateChannelSettings(id string, upd ChannelUpdate) error
	DeleteChannel(id string) error
	GetChannelCount() (int, error)
}

type SourceRepository interface {
	GetSource(id string) (*Source, error)
	ListSources(channelID string) ([]Source, error)
	ListActiveSources() ([]Source, error)
	CreateSource(s Source) (string, error)
	UpsertSource(channelID, url, name string) (string, error)
	AdvanceSourceMark(id, lastGUID string) error
	SetSourceError(id string, failed bool) error
	DeleteSource(id string) error
}

type PostRepository interface {
	GetPost(id string) (*Post, error)
	CreatePost(p Post) (string, error)
	ListQueue(channelID string, limit int) ([]Post, error)
	LatestScheduled(channelID string) (*time.Time, error)
	NextDue(now time.Time) (*Post, error)
	UpdateStatus(id string, to Status, messageID string) error
	UpdateContent(id, content string) error
	DeletePost(id string) error
	ClearPending(channelID string) (int, error)
	HasOrigin(channelID, originGUID string) (bool, error)
	RecentOriginals(channelID string, limit int) ([]Post, error)
	GetStatusCounts() (map[Status]int, error)
}
