package api

import (
	"github.com/axillles/BezShuma/app/database"
	"github.com/axillles/BezShuma/app/pipeline"
)

// Handler serves the operator endpoints over the core's data model.
type Handler struct {
	channelRepo database.ChannelRepository
	sourceRepo  database.SourceRepository
	postRepo    database.PostRepository
	ingestor    *pipeline.Ingestor
	cycle       *pipeline.Cycle
}

type createChannelRequest struct {
	ChatID         string `json:"chat_id" binding:"required"`
	Name           string `json:"name"`
	Topic          string `json:"topic"`
	PostInterval   int    `json:"post_interval"`
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	ModerationMode bool   `json:"moderation_mode"`
}

type updateChannelRequest struct {
	Name           *string `json:"name"`
	Topic          *string `json:"topic"`
	IsActive       *bool   `json:"is_active"`
	ModerationMode *bool   `json:"moderation_mode"`
	PostInterval   *int    `json:"post_interval"`
	Model          *string `json:"model"`
	Prompt         *string `json:"prompt"`
}

type createSourceRequest struct {
	URL  string `json:"url" binding:"required"`
	Name string `json:"name"`
}

type updatePostRequest struct {
	Content string `json:"content" binding:"required"`
}
