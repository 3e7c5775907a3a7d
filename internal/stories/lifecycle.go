// Package stories manages the story lifecycle state machine:
// draft → ready → published → archived, with ready → draft permitted only
// through the stall reset.
package stories

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/storypress/storypress/internal/generator"
	"github.com/storypress/storypress/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Sentinel errors for lifecycle transitions.
var (
	// ErrNoSlides is returned when a generation result carries zero slides;
	// failed generation produces no artifact.
	ErrNoSlides = errors.New("story payload has no slides")
	// ErrInvalidTransition is returned when a transition loses a race or
	// targets a story in the wrong state.
	ErrInvalidTransition = errors.New("invalid story state transition")
	// ErrNotReady is returned when a story fails ready validation.
	ErrNotReady = errors.New("story does not meet ready requirements")
)

// CreateFromGeneration persists the artifact of a completed generation job
// as a draft story. A payload without slides is rejected up front so no
// zero-slide story ever dangles.
func CreateFromGeneration(db *gorm.DB, item *models.GenerationQueueItem, payload *generator.StoryPayload, topic *models.Topic) (*models.Story, error) {
	if len(payload.Slides) == 0 {
		return nil, ErrNoSlides
	}

	slides, err := json.Marshal(payload.Slides)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal slides: %w", err)
	}

	now := time.Now()
	story := models.Story{
		StoryID:        uuid.New().String(),
		TopicArticleID: &item.TopicArticleID,
		Title:          payload.Title,
		Status:         models.StoryStatusDraft,
		Slides:         datatypes.JSON(slides),
		SlideCount:     len(payload.Slides),
	}
	if topic.AutoSimplify {
		story.SimplifiedAt = &now
		story.IsAutoSimplified = true
	}

	if err := db.Create(&story).Error; err != nil {
		return nil, fmt.Errorf("failed to create story: %w", err)
	}
	return &story, nil
}

// ValidateReady checks the requirements for the draft → ready transition:
// a non-empty title and at least one slide.
func ValidateReady(story *models.Story) error {
	if story.Title == "" || story.SlideCount < 1 {
		return ErrNotReady
	}
	return nil
}

// MarkReady transitions a draft story to ready after validation.
func MarkReady(db *gorm.DB, storyID uint) (*models.Story, error) {
	var story models.Story
	if err := db.First(&story, storyID).Error; err != nil {
		return nil, fmt.Errorf("failed to load story: %w", err)
	}
	if err := ValidateReady(&story); err != nil {
		return nil, err
	}

	result := db.Model(&models.Story{}).
		Where("id = ? AND status = ?", storyID, models.StoryStatusDraft).
		Update("status", models.StoryStatusReady)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to mark story ready: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrInvalidTransition
	}
	story.Status = models.StoryStatusReady
	return &story, nil
}

// Publish transitions a ready story to published and exposes it to the
// publication gateway, subject to topic visibility flags at read time.
func Publish(db *gorm.DB, storyID uint) (*models.Story, error) {
	now := time.Now()
	result := db.Model(&models.Story{}).
		Where("id = ? AND status = ?", storyID, models.StoryStatusReady).
		Updates(map[string]interface{}{
			"status":       models.StoryStatusPublished,
			"is_published": true,
			"published_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to publish story: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrInvalidTransition
	}

	var story models.Story
	if err := db.First(&story, storyID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload story: %w", err)
	}
	return &story, nil
}

// Archive soft-deletes a story from circulation: terminal tagged state, the
// row is kept for auditability.
func Archive(db *gorm.DB, storyID uint) error {
	result := db.Model(&models.Story{}).
		Where("id = ? AND status <> ?", storyID, models.StoryStatusArchived).
		Updates(map[string]interface{}{
			"status":       models.StoryStatusArchived,
			"is_published": false,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to archive story: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// ResetStuck mirrors the queue's stall recovery: unpublished stories sitting
// in ready longer than the window go back to draft for re-review. This is
// the only permitted ready → draft transition.
func ResetStuck(db *gorm.DB, window time.Duration) (int64, error) {
	cutoff := time.Now().Add(-window)
	result := db.Model(&models.Story{}).
		Where("status = ? AND is_published = ? AND updated_at < ?",
			models.StoryStatusReady, false, cutoff).
		Update("status", models.StoryStatusDraft)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reset stuck stories: %w", result.Error)
	}
	return result.RowsAffected, nil
}
