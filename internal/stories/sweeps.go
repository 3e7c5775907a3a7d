package stories

import (
	"fmt"
	"log/slog"

	"github.com/storypress/storypress/internal/models"
	"gorm.io/gorm"
)

// publishedStory is the projection used by the duplicate-title sweep.
type publishedStory struct {
	ID      uint
	TopicID uint
	Title   string
}

// SuppressDuplicateTitles archives published stories that share an exact
// title within a topic, keeping only the oldest published. Best-effort
// corrective sweep layered over the state machine, not a write-time
// constraint; safe to re-run.
func SuppressDuplicateTitles(db *gorm.DB) (int64, error) {
	var rows []publishedStory
	err := db.Table("stories").
		Select("stories.id, topic_articles.topic_id, stories.title").
		Joins("JOIN topic_articles ON topic_articles.id = stories.topic_article_id").
		Where("stories.is_published = ? AND stories.deleted_at IS NULL", true).
		Where("stories.title <> ''").
		Order("stories.created_at ASC, stories.id ASC").
		Scan(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load published stories: %w", err)
	}

	seen := make(map[string]bool)
	var archived int64
	for _, row := range rows {
		key := fmt.Sprintf("%d|%s", row.TopicID, row.Title)
		if !seen[key] {
			seen[key] = true // oldest survives
			continue
		}
		result := db.Model(&models.Story{}).
			Where("id = ? AND is_published = ?", row.ID, true).
			Updates(map[string]interface{}{
				"status":       models.StoryStatusArchived,
				"is_published": false,
			})
		if result.Error != nil {
			return archived, fmt.Errorf("failed to archive duplicate story %d: %w", row.ID, result.Error)
		}
		archived += result.RowsAffected
	}

	if archived > 0 {
		slog.Info("Duplicate-title sweep archived stories", "count", archived)
	}
	return archived, nil
}

// DeleteZeroSlideStories removes stories with no slides. This is the one
// deliberate exception to archive-instead-of-delete: an empty artifact has
// no audit value and must not reach review.
func DeleteZeroSlideStories(db *gorm.DB) (int64, error) {
	result := db.Unscoped().
		Where("slide_count = 0 AND status = ?", models.StoryStatusDraft).
		Delete(&models.Story{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete zero-slide stories: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		slog.Info("Deleted zero-slide stories", "count", result.RowsAffected)
	}
	return result.RowsAffected, nil
}
