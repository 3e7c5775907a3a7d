package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Story status constants
const (
	StoryStatusDraft     = "draft"
	StoryStatusReady     = "ready"
	StoryStatusPublished = "published"
	StoryStatusArchived  = "archived"
)

// Story is the rewritten artifact produced by a completed generation job.
// It references either a TopicArticle or a LegacyArticle, never both and
// never neither (CHECK constraint in the migration).
type Story struct {
	gorm.Model
	StoryID string `gorm:"uniqueIndex;not null"` // external uuid

	TopicArticleID  *uint         `gorm:"index"`
	TopicArticle    *TopicArticle `gorm:"constraint:OnDelete:SET NULL;"`
	LegacyArticleID *uint         `gorm:"index"`

	Title       string
	Slug        string         `gorm:"index"`
	Status      string         `gorm:"not null;default:'draft';index"`
	IsPublished bool           `gorm:"not null;default:false;index"`
	Slides      datatypes.JSON `gorm:"type:jsonb"` // ordered []Slide
	SlideCount  int            `gorm:"not null;default:0"`

	// Automated lifecycle stamps and flags.
	SimplifiedAt            *time.Time
	IllustrationGeneratedAt *time.Time
	AnimationGeneratedAt    *time.Time
	IsAutoSimplified        bool `gorm:"not null;default:false"`
	IsAutoIllustrated       bool `gorm:"not null;default:false"`
	IsAutoAnimated          bool `gorm:"not null;default:false"`

	PublishedAt *time.Time
}

// LegacyArticle is the pre-pipeline article table kept for stories created
// before topic articles existed. New stories always reference a TopicArticle.
type LegacyArticle struct {
	gorm.Model
	Title string `gorm:"not null"`
	Body  string `gorm:"type:text"`
	URL   string
}

// Slide is one screen of a generated story.
type Slide struct {
	Position int    `json:"position"`
	Kind     string `json:"kind"` // text/image/animation
	Text     string `json:"text"`
	ImageURL string `json:"image_url,omitempty"`
}
