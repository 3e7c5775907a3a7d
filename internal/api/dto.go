package api

import (
	"encoding/json"
	"time"

	"github.com/storypress/storypress/internal/models"
)

// FeedResponse is the publication gateway's feed payload.
type FeedResponse struct {
	Topic   TopicSummary   `json:"topic"`
	Stories []StorySummary `json:"stories"`
}

// TopicSummary exposes only the public-facing topic fields, plus the
// per-topic sub-feature flags consumers need to render extras.
type TopicSummary struct {
	Slug              string `json:"slug"`
	Name              string `json:"name"`
	Region            string `json:"region"`
	ParliamentEnabled bool   `json:"parliament_enabled,omitempty"`
	SentimentEnabled  bool   `json:"sentiment_enabled,omitempty"`
}

// StorySummary is one published story in a feed.
type StorySummary struct {
	StoryID     string          `json:"story_id"`
	Title       string          `json:"title"`
	Slug        string          `json:"slug"`
	SlideCount  int             `json:"slide_count"`
	Slides      json.RawMessage `json:"slides,omitempty"`
	PublishedAt *time.Time      `json:"published_at"`
}

// QueueItemResponse is the administrative view of a queue item, including
// failure details hidden from the publication gateway.
type QueueItemResponse struct {
	ID             uint       `json:"id"`
	TopicArticleID uint       `json:"topic_article_id"`
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	MaxAttempts    int        `json:"max_attempts"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func storySummary(s models.Story) StorySummary {
	return StorySummary{
		StoryID:     s.StoryID,
		Title:       s.Title,
		Slug:        s.Slug,
		SlideCount:  s.SlideCount,
		Slides:      json.RawMessage(s.Slides),
		PublishedAt: s.PublishedAt,
	}
}

func queueItemResponse(i models.GenerationQueueItem) QueueItemResponse {
	return QueueItemResponse{
		ID:             i.ID,
		TopicArticleID: i.TopicArticleID,
		Status:         i.Status,
		Attempts:       i.Attempts,
		MaxAttempts:    i.MaxAttempts,
		ErrorMessage:   i.ErrorMessage,
		StartedAt:      i.StartedAt,
		CompletedAt:    i.CompletedAt,
		CreatedAt:      i.CreatedAt,
	}
}
