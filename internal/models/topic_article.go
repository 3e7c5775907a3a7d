package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TopicArticle processing status constants
const (
	ArticleStatusNew              = "new"
	ArticleStatusProcessing       = "processing"
	ArticleStatusProcessed        = "processed"
	ArticleStatusDiscarded        = "discarded"
	ArticleStatusDuplicatePending = "duplicate_pending"
	ArticleStatusArchived         = "archived"
)

// TopicArticle binds one Topic to one SharedContent row and carries the
// topic-specific processing state. Two topics ingesting the same URL each get
// their own TopicArticle over the same SharedContent.
type TopicArticle struct {
	gorm.Model
	TopicID         uint          `gorm:"not null;uniqueIndex:idx_topic_articles_pair,where:deleted_at IS NULL"`
	SharedContentID uint          `gorm:"not null;uniqueIndex:idx_topic_articles_pair,where:deleted_at IS NULL"`
	Topic           Topic         `gorm:"constraint:OnDelete:CASCADE;"`
	SharedContent   SharedContent `gorm:"constraint:OnDelete:RESTRICT;"`

	ProcessingStatus       string `gorm:"not null;default:'new';index"`
	RegionalRelevanceScore int    `gorm:"not null;default:0"`
	ContentQualityScore    int    `gorm:"not null;default:0"`

	KeywordMatches datatypes.JSON `gorm:"type:jsonb"` // []string
	IsSnippet      bool           `gorm:"not null;default:false"`
	SnippetReason  string

	// Machine-readable decision trail: rejection_reason, rule_fired,
	// duplicates_found, checked_at.
	Metadata datatypes.JSON `gorm:"type:jsonb"`
}

// IsTerminal reports whether the article has left the active pipeline.
func (a *TopicArticle) IsTerminal() bool {
	switch a.ProcessingStatus {
	case ArticleStatusDiscarded, ArticleStatusArchived:
		return true
	}
	return false
}
