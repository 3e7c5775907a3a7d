package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GenerationQueueItem status constants
const (
	QueueStatusPending    = "pending"
	QueueStatusProcessing = "processing"
	QueueStatusCompleted  = "completed"
	QueueStatusFailed     = "failed"
	QueueStatusCancelled  = "cancelled"
)

// DefaultMaxAttempts bounds automatic retries per queue item.
const DefaultMaxAttempts = 3

// GenerationQueueItem schedules one expensive rewrite/illustration job for a
// topic article. A partial unique index on topic_article_id (statuses pending
// and processing) guarantees at most one in-flight generation per article;
// callers also check before insert so the constraint is the last line of
// defense, not the primary control flow.
type GenerationQueueItem struct {
	gorm.Model
	TopicArticleID uint         `gorm:"not null;index"`
	TopicArticle   TopicArticle `gorm:"constraint:OnDelete:CASCADE;"`

	Status       string `gorm:"not null;default:'pending';index"`
	Attempts     int    `gorm:"not null;default:0"`
	MaxAttempts  int    `gorm:"not null;default:3"`
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorMessage string         `gorm:"column:error_message;type:text"`
	ResultData   datatypes.JSON `gorm:"type:jsonb"`

	// Generation parameters handed to the worker boundary.
	Tone       string `gorm:"not null;default:''"`
	Style      string `gorm:"not null;default:''"`
	SlideType  string `gorm:"not null;default:''"`
	AIProvider string `gorm:"column:ai_provider;not null;default:''"`
}

// IsActive reports whether the item still holds the per-article slot.
func (i *GenerationQueueItem) IsActive() bool {
	return i.Status == QueueStatusPending || i.Status == QueueStatusProcessing
}

// IsTerminal reports whether the item can no longer transition without an
// explicit operator reset.
func (i *GenerationQueueItem) IsTerminal() bool {
	switch i.Status {
	case QueueStatusCompleted, QueueStatusFailed, QueueStatusCancelled:
		return true
	}
	return false
}
