package models

import (
	"time"

	"gorm.io/gorm"
)

// SharedContent is the canonical, content-addressed copy of a scraped article
// body. Topics ingesting the same URL reference the same row; the record is
// immutable after first sight except for the LastSeenAt refresh.
type SharedContent struct {
	gorm.Model
	Checksum      string `gorm:"not null;index"`
	NormalizedURL string `gorm:"uniqueIndex:idx_shared_content_url_not_deleted,where:deleted_at IS NULL;not null"`
	URL           string `gorm:"not null"`
	Title         string `gorm:"not null"`
	Body          string `gorm:"type:text"`
	Author        string
	PublishedAt   *time.Time
	WordCount     int    `gorm:"not null;default:0"`
	SourceDomain  string `gorm:"index"`
	LastSeenAt    time.Time
}
