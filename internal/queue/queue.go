// Package queue implements the durable generation work queue: at most one
// in-flight rewrite job per topic article, with bounded retries, stall
// recovery and cooperative cancellation.
package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/storypress/storypress/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Sentinel errors for queue transitions.
var (
	// ErrActiveItemExists is returned when an article already holds a
	// pending or processing queue slot.
	ErrActiveItemExists = errors.New("an active queue item already exists for this article")
	// ErrArticleNotFound is returned when enqueueing against a missing or
	// deleted topic article.
	ErrArticleNotFound = errors.New("topic article not found")
	// ErrNotPending is returned when a claim loses the race or targets a
	// cancelled item.
	ErrNotPending = errors.New("queue item is not pending")
	// ErrNotProcessing is returned when completing or failing an item that
	// is no longer processing (stall reset or cancellation won the race).
	ErrNotProcessing = errors.New("queue item is not processing")
	// ErrNotFailed is returned when retrying an item that is not terminally
	// failed.
	ErrNotFailed = errors.New("queue item is not failed")
)

// Params are the generation parameters carried by a queue item to the
// worker boundary.
type Params struct {
	Tone       string
	Style      string
	SlideType  string
	AIProvider string
}

// Enqueue creates a pending queue item for a topic article. Refuses when an
// active item already exists; the partial unique index on the table is the
// last line of defense against racing enqueuers.
func Enqueue(db *gorm.DB, topicArticleID uint, params Params) (*models.GenerationQueueItem, error) {
	var article models.TopicArticle
	if err := db.First(&article, topicArticleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrArticleNotFound
		}
		return nil, fmt.Errorf("failed to look up topic article: %w", err)
	}

	var count int64
	err := db.Model(&models.GenerationQueueItem{}).
		Where("topic_article_id = ? AND status IN ?", topicArticleID,
			[]string{models.QueueStatusPending, models.QueueStatusProcessing}).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check for active queue item: %w", err)
	}
	if count > 0 {
		return nil, ErrActiveItemExists
	}

	item := models.GenerationQueueItem{
		TopicArticleID: topicArticleID,
		Status:         models.QueueStatusPending,
		MaxAttempts:    models.DefaultMaxAttempts,
		Tone:           params.Tone,
		Style:          params.Style,
		SlideType:      params.SlideType,
		AIProvider:     params.AIProvider,
	}
	if err := db.Create(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrActiveItemExists
		}
		return nil, fmt.Errorf("failed to create queue item: %w", err)
	}
	return &item, nil
}

// Claim atomically transitions one pending item to processing, stamping
// started_at and incrementing attempts. Compare-and-swap on status: exactly
// one of any number of racing workers wins. The attempt budget is enforced
// here too, so attempts never exceeds max_attempts even for items recycled
// by the stall sweep.
func Claim(db *gorm.DB, itemID uint) (*models.GenerationQueueItem, error) {
	now := time.Now()
	result := db.Model(&models.GenerationQueueItem{}).
		Where("id = ? AND status = ? AND attempts < max_attempts", itemID, models.QueueStatusPending).
		Updates(map[string]interface{}{
			"status":     models.QueueStatusProcessing,
			"started_at": now,
			"attempts":   gorm.Expr("attempts + 1"),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to claim queue item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotPending
	}

	var item models.GenerationQueueItem
	if err := db.First(&item, itemID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload claimed item: %w", err)
	}
	return &item, nil
}

// Complete transitions a processing item to completed with its result data.
// Returns ErrNotProcessing when the item was reset or cancelled in the
// meantime; the caller must discard the generation result in that case.
func Complete(db *gorm.DB, itemID uint, resultData []byte) error {
	now := time.Now()
	result := db.Model(&models.GenerationQueueItem{}).
		Where("id = ? AND status = ?", itemID, models.QueueStatusProcessing).
		Updates(map[string]interface{}{
			"status":        models.QueueStatusCompleted,
			"completed_at":  now,
			"result_data":   datatypes.JSON(resultData),
			"error_message": "",
		})
	if result.Error != nil {
		return fmt.Errorf("failed to complete queue item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotProcessing
	}
	return nil
}

// Fail records a failure on a processing item. While the attempt budget
// lasts the item goes back to pending for retry; once attempts reach
// max_attempts it becomes terminally failed and only an operator Retry can
// revive it. Returns whether the item will be retried.
func Fail(db *gorm.DB, itemID uint, errMsg string) (retried bool, err error) {
	now := time.Now()

	// Terminal path first: the status check in the WHERE clause keeps both
	// updates race-safe against concurrent sweeps.
	result := db.Model(&models.GenerationQueueItem{}).
		Where("id = ? AND status = ? AND attempts >= max_attempts", itemID, models.QueueStatusProcessing).
		Updates(map[string]interface{}{
			"status":        models.QueueStatusFailed,
			"completed_at":  now,
			"error_message": errMsg,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark queue item failed: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return false, nil
	}

	result = db.Model(&models.GenerationQueueItem{}).
		Where("id = ? AND status = ? AND attempts < max_attempts", itemID, models.QueueStatusProcessing).
		Updates(map[string]interface{}{
			"status":        models.QueueStatusPending,
			"started_at":    nil,
			"error_message": errMsg,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to reset queue item for retry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, ErrNotProcessing
	}
	return true, nil
}

// Retry is the operator-driven reset of a terminally failed item: back to
// pending with a fresh attempt budget.
func Retry(db *gorm.DB, itemID uint) error {
	result := db.Model(&models.GenerationQueueItem{}).
		Where("id = ? AND status = ?", itemID, models.QueueStatusFailed).
		Updates(map[string]interface{}{
			"status":        models.QueueStatusPending,
			"attempts":      0,
			"started_at":    nil,
			"completed_at":  nil,
			"error_message": "",
		})
	if result.Error != nil {
		return fmt.Errorf("failed to retry queue item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFailed
	}
	return nil
}

// CancelPending cancels all pending items for a topic (e.g. tenant
// deactivation). Cancelled items are terminal and excluded from retry.
func CancelPending(db *gorm.DB, topicID uint) (int64, error) {
	result := db.Model(&models.GenerationQueueItem{}).
		Where("status = ?", models.QueueStatusPending).
		Where("topic_article_id IN (?)",
			db.Model(&models.TopicArticle{}).Select("id").Where("topic_id = ?", topicID)).
		Update("status", models.QueueStatusCancelled)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cancel pending queue items: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ReclaimStalled resets items abandoned by crashed workers: anything left
// processing with no progress for longer than the window goes back to
// pending with attempts preserved and started_at cleared. A stalled item
// whose attempt budget is already spent is terminally failed instead, so
// repeated stalls exhaust retries rather than looping forever. Idempotent
// and safe alongside live workers: only rows whose updated_at predates the
// window are touched, and a second run finds nothing left to reset.
func ReclaimStalled(db *gorm.DB, window time.Duration) (reclaimed, exhausted int64, err error) {
	cutoff := time.Now().Add(-window)
	now := time.Now()

	failed := db.Model(&models.GenerationQueueItem{}).
		Where("status = ? AND updated_at < ? AND attempts >= max_attempts", models.QueueStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":        models.QueueStatusFailed,
			"completed_at":  now,
			"error_message": "stalled with no attempts remaining",
		})
	if failed.Error != nil {
		return 0, 0, fmt.Errorf("failed to fail exhausted stalled items: %w", failed.Error)
	}

	result := db.Model(&models.GenerationQueueItem{}).
		Where("status = ? AND updated_at < ? AND attempts < max_attempts", models.QueueStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":     models.QueueStatusPending,
			"started_at": nil,
		})
	if result.Error != nil {
		return 0, failed.RowsAffected, fmt.Errorf("failed to reclaim stalled queue items: %w", result.Error)
	}
	return result.RowsAffected, failed.RowsAffected, nil
}

// ListByStatus returns queue items in FIFO order (creation time) for the
// administrative surface.
func ListByStatus(db *gorm.DB, status string, limit int) ([]models.GenerationQueueItem, error) {
	var items []models.GenerationQueueItem
	q := db.Order("created_at ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}
	return items, nil
}

// NextPending returns the oldest pending items up to limit, for the batch
// processor invoked by the external scheduler.
func NextPending(db *gorm.DB, limit int) ([]models.GenerationQueueItem, error) {
	var items []models.GenerationQueueItem
	err := db.Where("status = ?", models.QueueStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load pending queue items: %w", err)
	}
	return items, nil
}

// IsCancelled reports whether an item has been cancelled. Workers check this
// around long-running external calls so results for cancelled work are
// discarded instead of written.
func IsCancelled(db *gorm.DB, itemID uint) (bool, error) {
	var item models.GenerationQueueItem
	if err := db.Select("status").First(&item, itemID).Error; err != nil {
		return false, fmt.Errorf("failed to check queue item status: %w", err)
	}
	return item.Status == models.QueueStatusCancelled, nil
}
