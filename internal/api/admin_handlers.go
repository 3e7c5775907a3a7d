package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/storypress/storypress/internal/events"
	"github.com/storypress/storypress/internal/models"
	"github.com/storypress/storypress/internal/queue"
	"github.com/storypress/storypress/internal/stories"
	"github.com/storypress/storypress/internal/worker"
	"gorm.io/gorm"
)

// enqueueRequest is the operator's explicit enqueue call.
type enqueueRequest struct {
	TopicArticleID uint   `json:"topic_article_id" binding:"required"`
	Tone           string `json:"tone"`
	Style          string `json:"style"`
	SlideType      string `json:"slide_type"`
	AIProvider     string `json:"ai_provider"`
}

// EnqueueHandler creates a queue item for a topic article and schedules the
// generation task.
func EnqueueHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req enqueueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		item, err := queue.Enqueue(db, req.TopicArticleID, queue.Params{
			Tone:       req.Tone,
			Style:      req.Style,
			SlideType:  req.SlideType,
			AIProvider: req.AIProvider,
		})
		if err != nil {
			switch {
			case errors.Is(err, queue.ErrArticleNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "topic article not found"})
			case errors.Is(err, queue.ErrActiveItemExists):
				c.JSON(http.StatusConflict, gin.H{"error": "an active queue item already exists for this article"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue"})
			}
			return
		}

		if err := worker.EnqueueGenerateStory(item.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "queue item created but task scheduling failed"})
			return
		}

		c.JSON(http.StatusCreated, queueItemResponse(*item))
	}
}

// RetryHandler resets a terminally failed queue item and reschedules it.
func RetryHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		itemID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid queue item id"})
			return
		}

		if err := queue.Retry(db, uint(itemID)); err != nil {
			if errors.Is(err, queue.ErrNotFailed) {
				c.JSON(http.StatusConflict, gin.H{"error": "queue item is not failed"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retry"})
			return
		}

		if err := worker.EnqueueGenerateStory(uint(itemID)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "queue item reset but task scheduling failed"})
			return
		}

		c.Status(http.StatusNoContent)
	}
}

// CancelTopicHandler cancels all pending queue items of a topic, e.g. on
// tenant deactivation.
func CancelTopicHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		topicID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid topic id"})
			return
		}

		cancelled, err := queue.CancelPending(db, uint(topicID))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
	}
}

// ListQueueHandler returns queue items, optionally filtered by status, so
// operators can inspect failed and cancelled work with error messages.
func ListQueueHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.Query("status")
		switch status {
		case "", models.QueueStatusPending, models.QueueStatusProcessing,
			models.QueueStatusCompleted, models.QueueStatusFailed, models.QueueStatusCancelled:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}

		items, err := queue.ListByStatus(db, status, 100)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list queue items"})
			return
		}

		out := make([]QueueItemResponse, 0, len(items))
		for _, item := range items {
			out = append(out, queueItemResponse(item))
		}
		c.JSON(http.StatusOK, gin.H{"items": out})
	}
}

// DedupSweepHandler triggers a dedup backlog sweep for a topic.
func DedupSweepHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		topicID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid topic id"})
			return
		}

		limit := 500
		if raw := c.Query("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}

		if err := worker.EnqueueDedupSweep(uint(topicID), limit); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to schedule sweep"})
			return
		}
		c.Status(http.StatusAccepted)
	}
}

// storyTransitionHandler parameterizes the review actions over stories.
func storyTransitionHandler(db *gorm.DB, dispatcher *events.Dispatcher, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		storyID, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid story id"})
			return
		}

		switch action {
		case "ready":
			story, err := stories.MarkReady(db, uint(storyID))
			if err != nil {
				respondTransitionError(c, err)
				return
			}
			dispatcher.Publish(c.Request.Context(), events.StoryReady, events.StoryPayload{
				StoryID: story.ID, Title: story.Title,
			})
			c.Status(http.StatusNoContent)
		case "publish":
			story, err := stories.Publish(db, uint(storyID))
			if err != nil {
				respondTransitionError(c, err)
				return
			}
			dispatcher.Publish(c.Request.Context(), events.StoryPublished, events.StoryPayload{
				StoryID: story.ID, Title: story.Title,
			})
			c.Status(http.StatusNoContent)
		case "archive":
			if err := stories.Archive(db, uint(storyID)); err != nil {
				respondTransitionError(c, err)
				return
			}
			c.Status(http.StatusNoContent)
		default:
			c.Status(http.StatusNotFound)
		}
	}
}

// MarkStoryReadyHandler promotes a draft story to ready after validation.
func MarkStoryReadyHandler(db *gorm.DB, dispatcher *events.Dispatcher) gin.HandlerFunc {
	return storyTransitionHandler(db, dispatcher, "ready")
}

// PublishStoryHandler publishes a ready story.
func PublishStoryHandler(db *gorm.DB, dispatcher *events.Dispatcher) gin.HandlerFunc {
	return storyTransitionHandler(db, dispatcher, "publish")
}

// ArchiveStoryHandler archives a story.
func ArchiveStoryHandler(db *gorm.DB, dispatcher *events.Dispatcher) gin.HandlerFunc {
	return storyTransitionHandler(db, dispatcher, "archive")
}

func respondTransitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, stories.ErrNotReady):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "story needs a title and at least one slide"})
	case errors.Is(err, stories.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "story is not in the required state"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transition failed"})
	}
}
