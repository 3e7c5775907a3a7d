package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Topic is the tenant boundary: a per-region content feed with its own
// gating configuration, automation toggles and visibility rules.
type Topic struct {
	gorm.Model
	Slug     string `gorm:"uniqueIndex:idx_topics_slug_not_deleted,where:deleted_at IS NULL;not null"`
	Name     string `gorm:"not null"`
	Region   string `gorm:"not null;default:''"`
	IsActive bool   `gorm:"not null;default:true;index"`
	IsPublic bool   `gorm:"not null;default:false;index"`

	// Gate configuration. Thresholds are tunable per topic; zero values fall
	// back to the configured defaults at evaluation time.
	NegativeKeywords  datatypes.JSON `gorm:"type:jsonb"` // []string
	CompetingRegions  datatypes.JSON `gorm:"type:jsonb"` // []string
	RelevanceFloor    int            `gorm:"not null;default:0"`
	MinQualityScore   int            `gorm:"not null;default:0"`
	MinRelevanceScore int            `gorm:"not null;default:0"`

	// Automation toggles applied when a generation job completes.
	AutoSimplify    bool `gorm:"not null;default:true"`
	AutoIllustrate  bool `gorm:"not null;default:false"`
	AutoAnimate     bool `gorm:"not null;default:false"`
	DripFeedEnabled bool `gorm:"not null;default:false"`

	// Sub-feature enablement checked by the publication gateway.
	ParliamentEnabled bool `gorm:"not null;default:false"`
	SentimentEnabled  bool `gorm:"not null;default:false"`
}
