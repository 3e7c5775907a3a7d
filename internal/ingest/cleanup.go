package ingest

import (
	"fmt"
	"log/slog"

	"github.com/storypress/storypress/internal/gate"
	"github.com/storypress/storypress/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DiscardLowRelevance applies the stricter cleanup floor to articles that
// already passed ingestion: anything still non-terminal with a relevance
// score under the floor is discarded with the usual machine-readable reason.
// Safe to re-run; discarded articles are terminal and no longer match.
func DiscardLowRelevance(db *gorm.DB, floor int) (int64, error) {
	result := db.Model(&models.TopicArticle{}).
		Where("processing_status IN ?", []string{models.ArticleStatusNew, models.ArticleStatusProcessed}).
		Where("regional_relevance_score < ?", floor).
		Updates(map[string]interface{}{
			"processing_status": models.ArticleStatusDiscarded,
			"metadata":          datatypes.JSON(fmt.Sprintf(`{"rejection_reason":%q,"rule_fired":"cleanup_floor"}`, gate.ReasonInsufficientRelevance)),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to discard low-relevance articles: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		slog.Info("Cleanup sweep discarded low-relevance articles",
			"count", result.RowsAffected, "floor", floor)
	}
	return result.RowsAffected, nil
}
