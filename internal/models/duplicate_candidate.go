package models

import (
	"time"

	"gorm.io/gorm"
)

// DuplicateCandidate status constants
const (
	DuplicateStatusPendingReview = "pending_review"
	DuplicateStatusConfirmed     = "confirmed"
	DuplicateStatusDismissed     = "dismissed"
)

// Detection method constants
const (
	DetectionMethodChecksum   = "exact_checksum"
	DetectionMethodURL        = "exact_url"
	DetectionMethodSimilarity = "title_body_similarity"
)

// DuplicateCandidate records a suspected duplicate pair found by the
// deduplication engine. Duplicates are an outcome, not an error: every match
// leaves a row for review instead of silently dropping the article.
type DuplicateCandidate struct {
	gorm.Model
	OriginalID      uint         `gorm:"not null;uniqueIndex:idx_duplicate_pair,where:deleted_at IS NULL"`
	DuplicateID     uint         `gorm:"not null;uniqueIndex:idx_duplicate_pair,where:deleted_at IS NULL"`
	Original        TopicArticle `gorm:"foreignKey:OriginalID;constraint:OnDelete:CASCADE;"`
	Duplicate       TopicArticle `gorm:"foreignKey:DuplicateID;constraint:OnDelete:CASCADE;"`
	SimilarityScore float64      `gorm:"not null;default:0"`
	DetectionMethod string       `gorm:"not null"`
	Status          string       `gorm:"not null;default:'pending_review';index"`
	ReviewedAt      *time.Time
}
