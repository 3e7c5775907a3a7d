package streams

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/storypress/storypress/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// HandleIllustrationResult returns a handler that applies sidecar results to
// stories: image URLs are attached to the slides in order and the
// illustration lifecycle stamp is set.
func HandleIllustrationResult(db *gorm.DB) func(IllustrationResult) error {
	return func(result IllustrationResult) error {
		var story models.Story

		// Find story by external StoryID field (not GORM ID)
		if err := db.Where("story_id = ?", result.StoryID).First(&story).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("story not found: %s", result.StoryID)
			}
			return fmt.Errorf("failed to find story: %w", err)
		}

		if result.Status == "failed" {
			slog.Error("Illustration generation failed",
				"story_id", result.StoryID,
				"error", result.Error,
			)
			// Failure leaves the story unillustrated; nothing to persist.
			return nil
		}
		if result.Status != "completed" {
			return fmt.Errorf("unknown status: %s", result.Status)
		}

		var slides []models.Slide
		if len(story.Slides) > 0 {
			if err := json.Unmarshal(story.Slides, &slides); err != nil {
				return fmt.Errorf("failed to unmarshal slides: %w", err)
			}
		}
		for i := range slides {
			if i < len(result.ImageURLs) {
				slides[i].ImageURL = result.ImageURLs[i]
			}
		}
		updated, err := json.Marshal(slides)
		if err != nil {
			return fmt.Errorf("failed to marshal slides: %w", err)
		}

		now := time.Now()
		if err := db.Model(&story).Updates(map[string]interface{}{
			"slides":                    datatypes.JSON(updated),
			"illustration_generated_at": now,
			"is_auto_illustrated":       true,
		}).Error; err != nil {
			return fmt.Errorf("failed to update story: %w", err)
		}

		slog.Info("Story illustrated",
			"story_id", result.StoryID,
			"images", len(result.ImageURLs),
		)
		return nil
	}
}
