// Package generator is the boundary to the external AI rewriting service.
// The provider itself is opaque: the pipeline hands over article content and
// generation parameters and receives either a story payload or a structured
// failure.
package generator

import "github.com/storypress/storypress/internal/models"

// Request carries a claimed queue item's content and parameters to the
// rewriting service.
type Request struct {
	TopicArticleID uint   `json:"topic_article_id"`
	Title          string `json:"title"`
	Body           string `json:"body"`
	Region         string `json:"region"`
	Tone           string `json:"tone"`
	Style          string `json:"style"`
	SlideType      string `json:"slide_type"`
	Provider       string `json:"provider"`
}

// StoryPayload is the rewritten artifact returned by the service.
type StoryPayload struct {
	Title    string                 `json:"title"`
	Slides   []models.Slide         `json:"slides"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
