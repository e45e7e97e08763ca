package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/axillles/BezShuma/app/database"
	"github.com/axillles/BezShuma/app/pipeline"
)

const queueListLimit = 50

func NewHandler(channelRepo database.ChannelRepository, sourceRepo database.SourceRepository,
	postRepo database.PostRepository, ingestor *pipeline.Ingestor, cycle *pipeline.Cycle) *Handler {
	return &Handler{
		channelRepo: channelRepo,
		sourceRepo:  sourceRepo,
		postRepo:    postRepo,
		ingestor:    ingestor,
		cycle:       cycle,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.channelRepo.GetChannelCount(); err == nil {
		health["channels"] = count
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := gin.H{}

	if count, err := h.channelRepo.GetChannelCount(); err == nil {
		stats["channels"] = count
	}

	if counts, err := h.postRepo.GetStatusCounts(); err == nil {
		posts := gin.H{}
		for status, count := range counts {
			posts[string(status)] = count
		}
		stats["posts"] = posts
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListChannels(c *gin.Context) {
	channels, err := h.channelRepo.ListChannels()
	if err != nil {
		slog.Error("Database error", "operation", "list_channels", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	out := make([]gin.H, 0, len(channels))
	for _, ch := range channels {
		out = append(out, channelJSON(ch))
	}

	c.JSON(http.StatusOK, gin.H{"channels": out})
}

func (h *Handler) CreateChannel(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ch := database.Channel{
		ChatID:         req.ChatID,
		Name:           req.Name,
		Topic:          req.Topic,
		IsActive:       true,
		ModerationMode: req.ModerationMode,
		PostInterval:   req.PostInterval,
		Model:          req.Model,
		Prompt:         req.Prompt,
	}
	if ch.PostInterval == 0 {
		ch.PostInterval = 7200
	}
	if ch.Model == "" {
		ch.Model = "gpt-4o-mini"
	}
	if ch.Name == "" {
		ch.Name = ch.ChatID
	}

	existing, err := h.channelRepo.GetChannelByChatID(ch.ChatID)
	if err != nil {
		slog.Error("Database error", "operation", "check_channel", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "channel already registered"})
		return
	}

	id, err := h.channelRepo.CreateChannel(ch)
	if err != nil {
		slog.Error("Database error", "operation", "create_channel", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to create channel"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) GetChannel(c *gin.Context) {
	ch, ok := h.loadChannel(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, channelJSON(*ch))
}

func (h *Handler) UpdateChannel(c *gin.Context) {
	var req updateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.channelRepo.UpdateChannelSettings(c.Param("id"), database.ChannelUpdate{
		Name:           req.Name,
		Topic:          req.Topic,
		IsActive:       req.IsActive,
		ModerationMode: req.ModerationMode,
		PostInterval:   req.PostInterval,
		Model:          req.Model,
		Prompt:         req.Prompt,
	})
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) DeleteChannel(c *gin.Context) {
	err := h.channelRepo.DeleteChannel(c.Param("id"))
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "delete_channel", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ListSources(c *gin.Context) {
	ch, ok := h.loadChannel(c)
	if !ok {
		return
	}

	sources, err := h.sourceRepo.ListSources(ch.ID)
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	out := make([]gin.H, 0, len(sources))
	for _, s := range sources {
		out = append(out, gin.H{
			"id":          s.ID,
			"url":         s.URL,
			"name":        s.Name,
			"is_active":   s.IsActive,
			"last_guid":   s.LastGUID,
			"fetch_error": s.FetchError,
		})
	}

	c.JSON(http.StatusOK, gin.H{"sources": out})
}

func (h *Handler) CreateSource(c *gin.Context) {
	ch, ok := h.loadChannel(c)
	if !ok {
		return
	}

	var req createSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := req.Name
	if name == "" {
		name = req.URL
	}

	id, err := h.sourceRepo.CreateSource(database.Source{
		ChannelID: ch.ID,
		URL:       req.URL,
		Name:      name,
		IsActive:  true,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to create source"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) DeleteSource(c *gin.Context) {
	err := h.sourceRepo.DeleteSource(c.Param("id"))
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "delete_source", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusNoContent)
}

// FetchChannel runs a one-off ingestion for every active source of the
// channel, through the same dedup and queue contracts as the automatic
// cycle.
func (h *Handler) FetchChannel(c *gin.Context) {
	ch, ok := h.loadChannel(c)
	if !ok {
		return
	}

	sources, err := h.sourceRepo.ListSources(ch.ID)
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	accepted := 0
	for _, source := range sources {
		if !source.IsActive {
			continue
		}
		n, err := h.ingestor.RunSource(c.Request.Context(), source)
		if err != nil {
			slog.Warn("Manual fetch failed", "source", source.URL, "error", err)
			continue
		}
		accepted += n
	}

	c.JSON(http.StatusOK, gin.H{"accepted": accepted})
}

func (h *Handler) GetQueue(c *gin.Context) {
	ch, ok := h.loadChannel(c)
	if !ok {
		return
	}

	posts, err := h.postRepo.ListQueue(ch.ID, queueListLimit)
	if err != nil {
		slog.Error("Database error", "operation", "list_queue", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	out := make([]gin.H, 0, len(posts))
	for _, p := range posts {
		out = append(out, postJSON(p))
	}

	c.JSON(http.StatusOK, gin.H{"queue": out})
}

func (h *Handler) ClearQueue(c *gin.Context) {
	ch, ok := h.loadChannel(c)
	if !ok {
		return
	}

	deleted, err := h.postRepo.ClearPending(ch.ID)
	if err != nil {
		slog.Error("Database error", "operation", "clear_queue", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *Handler) GetPost(c *gin.Context) {
	post, ok := h.loadPost(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, postJSON(*post))
}

func (h *Handler) UpdatePost(c *gin.Context) {
	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.postRepo.UpdateContent(c.Param("id"), req.Content)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "update_post", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) DeletePost(c *gin.Context) {
	err := h.postRepo.DeletePost(c.Param("id"))
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "delete_post", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusNoContent)
}

// PublishPost force-publishes a pending or failed post, bypassing its
// scheduled time.
func (h *Handler) PublishPost(c *gin.Context) {
	post, ok := h.loadPost(c)
	if !ok {
		return
	}

	if post.Status != database.StatusPending && post.Status != database.StatusFailed {
		c.JSON(http.StatusConflict, gin.H{"error": "post is not publishable", "status": string(post.Status)})
		return
	}

	messageID, err := h.cycle.PublishPost(c.Request.Context(), *post)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": truncateError(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message_id": messageID})
}

// ApprovePost publishes a post held for moderation.
func (h *Handler) ApprovePost(c *gin.Context) {
	post, ok := h.loadPost(c)
	if !ok {
		return
	}

	if post.Status != database.StatusModeration {
		c.JSON(http.StatusConflict, gin.H{"error": "post is not awaiting moderation", "status": string(post.Status)})
		return
	}

	messageID, err := h.cycle.PublishPost(c.Request.Context(), *post)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": truncateError(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message_id": messageID})
}

// RejectPost declines a post held for moderation.
func (h *Handler) RejectPost(c *gin.Context) {
	post, ok := h.loadPost(c)
	if !ok {
		return
	}

	err := h.postRepo.UpdateStatus(post.ID, database.StatusRejected, "")
	var invalid *database.ErrInvalidTransition
	if errors.As(err, &invalid) {
		c.JSON(http.StatusConflict, gin.H{"error": invalid.Error()})
		return
	}
	if err != nil {
		slog.Error("Database error", "operation", "reject_post", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) loadChannel(c *gin.Context) (*database.Channel, bool) {
	ch, err := h.channelRepo.GetChannel(c.Param("id"))
	if err != nil {
		slog.Error("Database error", "operation", "get_channel", "error", err)
		c.Status(http.StatusInternalServerError)
		return nil, false
	}
	if ch == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return nil, false
	}
	return ch, true
}

func (h *Handler) loadPost(c *gin.Context) (*database.Post, bool) {
	post, err := h.postRepo.GetPost(c.Param("id"))
	if err != nil {
		slog.Error("Database error", "operation", "get_post", "error", err)
		c.Status(http.StatusInternalServerError)
		return nil, false
	}
	if post == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return nil, false
	}
	return post, true
}

func channelJSON(ch database.Channel) gin.H {
	return gin.H{
		"id":              ch.ID,
		"chat_id":         ch.ChatID,
		"name":            ch.Name,
		"topic":           ch.Topic,
		"is_active":       ch.IsActive,
		"moderation_mode": ch.ModerationMode,
		"post_interval":   ch.PostInterval,
		"model":           ch.Model,
	}
}

func postJSON(p database.Post) gin.H {
	return gin.H{
		"id":             p.ID,
		"channel_id":     p.ChannelID,
		"source_url":     p.SourceURL,
		"original_title": p.OriginalTitle,
		"content":        p.Content,
		"media":          p.Media,
		"scheduled_at":   p.ScheduledAt.Format(time.RFC3339),
		"message_id":     p.MessageID,
		"status":         string(p.Status),
	}
}

// truncateError keeps operator-facing failure messages short; internals stay
// in the logs.
func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > 100 {
		msg = msg[:100]
	}
	return msg
}
