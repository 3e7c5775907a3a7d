package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/storypress/storypress/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// recentChecksumTTL bounds how long the Redis exact-match fast path remembers
// a checksum. The database remains the source of truth; the cache only saves
// a query on the hot ingest path.
const recentChecksumTTL = 48 * time.Hour

// Candidate is the content under test, already normalized by the caller.
type Candidate struct {
	TopicArticleID uint
	Checksum       string
	NormalizedURL  string
	Title          string
	Body           string
}

// Match describes a detected duplicate of a candidate.
type Match struct {
	OriginalID uint
	Score      float64
	Method     string
}

// Detector compares incoming content against the recent per-topic history.
// Exact checksum/URL matches short-circuit; otherwise a bounded similarity
// scan runs over the most recent non-terminal articles of the topic.
type Detector struct {
	db         *gorm.DB
	rdb        *redis.Client // optional fast path, may be nil
	windowSize int
	threshold  float64
}

// NewDetector creates a Detector. rdb may be nil to disable the Redis fast
// path (tests, single-process deployments).
func NewDetector(db *gorm.DB, rdb *redis.Client, windowSize int, threshold float64) *Detector {
	return &Detector{db: db, rdb: rdb, windowSize: windowSize, threshold: threshold}
}

// Check looks for a duplicate of the candidate within its topic. Returns nil
// when no existing article matches.
func (d *Detector) Check(ctx context.Context, topicID uint, cand Candidate) (*Match, error) {
	// Exact match on checksum or normalized URL is an immediate duplicate.
	var exact struct {
		ID       uint
		Checksum string
	}
	err := d.db.WithContext(ctx).
		Table("topic_articles").
		Select("topic_articles.id, shared_contents.checksum").
		Joins("JOIN shared_contents ON shared_contents.id = topic_articles.shared_content_id").
		Where("topic_articles.topic_id = ?", topicID).
		Where("topic_articles.id <> ?", cand.TopicArticleID).
		Where("topic_articles.deleted_at IS NULL").
		Where("topic_articles.processing_status NOT IN ?", []string{models.ArticleStatusDiscarded, models.ArticleStatusArchived}).
		Where("shared_contents.checksum = ? OR shared_contents.normalized_url = ?", cand.Checksum, cand.NormalizedURL).
		Order("topic_articles.created_at ASC").
		Limit(1).
		Scan(&exact).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query exact duplicates: %w", err)
	}
	if exact.ID != 0 {
		method := models.DetectionMethodURL
		if exact.Checksum == cand.Checksum {
			method = models.DetectionMethodChecksum
		}
		return &Match{OriginalID: exact.ID, Score: 1, Method: method}, nil
	}

	// Near-duplicate scan over the bounded recent window.
	type row struct {
		ID    uint
		Title string
		Body  string
	}
	var recent []row
	err = d.db.WithContext(ctx).
		Table("topic_articles").
		Select("topic_articles.id, shared_contents.title, shared_contents.body").
		Joins("JOIN shared_contents ON shared_contents.id = topic_articles.shared_content_id").
		Where("topic_articles.topic_id = ?", topicID).
		Where("topic_articles.id <> ?", cand.TopicArticleID).
		Where("topic_articles.deleted_at IS NULL").
		Where("topic_articles.processing_status NOT IN ?", []string{models.ArticleStatusDiscarded, models.ArticleStatusArchived}).
		Order("topic_articles.created_at DESC").
		Limit(d.windowSize).
		Scan(&recent).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent window: %w", err)
	}

	candText := cand.Title + " " + cand.Body
	var best *Match
	for _, r := range recent {
		score := Similarity(candText, r.Title+" "+r.Body)
		if score >= d.threshold && (best == nil || score > best.Score) {
			best = &Match{OriginalID: r.ID, Score: score, Method: models.DetectionMethodSimilarity}
		}
	}
	return best, nil
}

// SeenRecently consults the Redis fast path for an exact checksum hit. A miss
// is authoritative only for the cache, never for the database.
func (d *Detector) SeenRecently(ctx context.Context, topicID uint, checksum string) bool {
	if d.rdb == nil {
		return false
	}
	ok, err := d.rdb.SIsMember(ctx, recentChecksumKey(topicID), checksum).Result()
	if err != nil {
		slog.Warn("Dedup cache lookup failed", "topic_id", topicID, "error", err)
		return false
	}
	return ok
}

// RememberChecksum records a checksum in the Redis fast path with a sliding
// TTL on the per-topic set.
func (d *Detector) RememberChecksum(ctx context.Context, topicID uint, checksum string) {
	if d.rdb == nil {
		return
	}
	key := recentChecksumKey(topicID)
	if err := d.rdb.SAdd(ctx, key, checksum).Err(); err != nil {
		slog.Warn("Dedup cache add failed", "topic_id", topicID, "error", err)
		return
	}
	if err := d.rdb.Expire(ctx, key, recentChecksumTTL).Err(); err != nil {
		slog.Warn("Dedup cache expire failed", "topic_id", topicID, "error", err)
	}
}

// Flag records a duplicate match: inserts the DuplicateCandidate pair
// (idempotently, the pair carries a unique index) and moves the duplicate
// article to duplicate_pending with detection metadata. Never drops silently.
func (d *Detector) Flag(ctx context.Context, duplicateID uint, match *Match) error {
	candidate := models.DuplicateCandidate{
		OriginalID:  match.OriginalID,
		DuplicateID: duplicateID,
	}
	err := d.db.WithContext(ctx).
		Where("original_id = ? AND duplicate_id = ?", match.OriginalID, duplicateID).
		Attrs(models.DuplicateCandidate{
			SimilarityScore: match.Score,
			DetectionMethod: match.Method,
			Status:          models.DuplicateStatusPendingReview,
		}).
		FirstOrCreate(&candidate).Error
	if err != nil {
		return fmt.Errorf("failed to record duplicate candidate: %w", err)
	}

	meta, err := json.Marshal(map[string]interface{}{
		"duplicates_found": 1,
		"checked_at":       time.Now().UTC().Format(time.RFC3339),
		"detection_method": match.Method,
		"original_id":      match.OriginalID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal detection metadata: %w", err)
	}

	if err := d.db.WithContext(ctx).
		Model(&models.TopicArticle{}).
		Where("id = ?", duplicateID).
		Updates(map[string]interface{}{
			"processing_status": models.ArticleStatusDuplicatePending,
			"metadata":          datatypes.JSON(meta),
		}).Error; err != nil {
		return fmt.Errorf("failed to flag duplicate article: %w", err)
	}
	return nil
}

// SweepBacklog re-runs detection over the most recent non-terminal articles
// of a topic, retrofitting duplicate flags after a method change. Idempotent:
// candidate inserts are FirstOrCreate on the pair and already-flagged
// articles are skipped. Returns the number of articles newly flagged.
func (d *Detector) SweepBacklog(ctx context.Context, topicID uint, limit int) (int, error) {
	type row struct {
		ID            uint
		Checksum      string
		NormalizedURL string
		Title         string
		Body          string
	}
	var backlog []row
	err := d.db.WithContext(ctx).
		Table("topic_articles").
		Select("topic_articles.id, shared_contents.checksum, shared_contents.normalized_url, shared_contents.title, shared_contents.body").
		Joins("JOIN shared_contents ON shared_contents.id = topic_articles.shared_content_id").
		Where("topic_articles.topic_id = ?", topicID).
		Where("topic_articles.deleted_at IS NULL").
		Where("topic_articles.processing_status IN ?", []string{models.ArticleStatusNew, models.ArticleStatusProcessing, models.ArticleStatusProcessed}).
		Order("topic_articles.created_at DESC").
		Limit(limit).
		Scan(&backlog).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load backlog: %w", err)
	}

	flagged := 0
	for _, r := range backlog {
		match, err := d.Check(ctx, topicID, Candidate{
			TopicArticleID: r.ID,
			Checksum:       r.Checksum,
			NormalizedURL:  r.NormalizedURL,
			Title:          r.Title,
			Body:           r.Body,
		})
		if err != nil {
			return flagged, err
		}
		if match == nil {
			continue
		}
		// Keep the older article as the original: only flag when the match
		// predates the candidate, otherwise the pair is found again from the
		// other side.
		if match.OriginalID > r.ID {
			continue
		}
		if err := d.Flag(ctx, r.ID, match); err != nil {
			return flagged, err
		}
		flagged++
	}

	slog.Info("Dedup backlog sweep finished", "topic_id", topicID, "scanned", len(backlog), "flagged", flagged)
	return flagged, nil
}

func recentChecksumKey(topicID uint) string {
	return fmt.Sprintf("dedup:topic:%d:checksums", topicID)
}
