// Package ingest is the boundary where the external scraper delivers
// articles into the pipeline: shared-content upsert, duplicate detection and
// gating happen here, before an article becomes visible downstream.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/storypress/storypress/internal/config"
	"github.com/storypress/storypress/internal/dedup"
	"github.com/storypress/storypress/internal/events"
	"github.com/storypress/storypress/internal/gate"
	"github.com/storypress/storypress/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Outcome results
const (
	OutcomeAccepted  = "accepted"
	OutcomeDuplicate = "duplicate"
	OutcomeDiscarded = "discarded"
)

var (
	// ErrTopicNotFound is returned for deliveries into an unknown topic.
	ErrTopicNotFound = errors.New("topic not found")
	// ErrTopicInactive is returned for deliveries into a deactivated topic.
	ErrTopicInactive = errors.New("topic is not active")
)

// ScrapedArticle is the scraper's delivery payload.
type ScrapedArticle struct {
	URL            string     `json:"url" binding:"required"`
	Title          string     `json:"title" binding:"required"`
	Body           string     `json:"body"`
	Author         string     `json:"author"`
	PublishedAt    *time.Time `json:"published_at"`
	RelevanceScore int        `json:"relevance_score"` // from import metadata, 0 if absent
	SourceName     string     `json:"source_name"`
}

// Outcome reports what the pipeline did with a delivery.
type Outcome struct {
	Result         string `json:"result"`
	TopicArticleID uint   `json:"topic_article_id,omitempty"`
	Reason         string `json:"reason,omitempty"`
	DuplicateOfID  uint   `json:"duplicate_of_id,omitempty"`
}

// Service runs the ingest path for one delivery at a time. Dedup and gating
// are synchronous pre-exposure checks; only the qualification event fans out
// to asynchronous work.
type Service struct {
	db         *gorm.DB
	detector   *dedup.Detector
	defaults   config.GateDefaults
	dispatcher *events.Dispatcher
}

// NewService creates an ingest Service.
func NewService(db *gorm.DB, detector *dedup.Detector, defaults config.GateDefaults, dispatcher *events.Dispatcher) *Service {
	return &Service{db: db, detector: detector, defaults: defaults, dispatcher: dispatcher}
}

// Ingest processes one scraped article for a topic and returns the
// accept/duplicate/discard outcome.
func (s *Service) Ingest(ctx context.Context, topicID uint, art ScrapedArticle) (*Outcome, error) {
	var topic models.Topic
	if err := s.db.WithContext(ctx).First(&topic, topicID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTopicNotFound
		}
		return nil, fmt.Errorf("failed to load topic: %w", err)
	}
	if !topic.IsActive {
		return nil, ErrTopicInactive
	}

	normalizedURL := dedup.NormalizeURL(art.URL)
	checksum := dedup.Checksum(art.Title, art.Body)

	content, err := s.upsertSharedContent(ctx, normalizedURL, checksum, art)
	if err != nil {
		return nil, err
	}

	// Re-delivery of the same content into the same topic is itself an
	// exact duplicate: the existing article keeps its scores.
	var existing models.TopicArticle
	err = s.db.WithContext(ctx).
		Where("topic_id = ? AND shared_content_id = ?", topic.ID, content.ID).
		First(&existing).Error
	if err == nil {
		return &Outcome{
			Result:         OutcomeDuplicate,
			TopicArticleID: existing.ID,
			Reason:         models.DetectionMethodURL,
			DuplicateOfID:  existing.ID,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check for existing topic article: %w", err)
	}

	article := models.TopicArticle{
		TopicID:                topic.ID,
		SharedContentID:        content.ID,
		ProcessingStatus:       models.ArticleStatusNew,
		RegionalRelevanceScore: art.RelevanceScore,
	}
	if err := s.db.WithContext(ctx).Create(&article).Error; err != nil {
		return nil, fmt.Errorf("failed to create topic article: %w", err)
	}

	if s.detector.SeenRecently(ctx, topic.ID, checksum) {
		slog.Debug("Dedup fast path hit", "topic_id", topic.ID, "checksum", checksum)
	}
	match, err := s.detector.Check(ctx, topic.ID, dedup.Candidate{
		TopicArticleID: article.ID,
		Checksum:       checksum,
		NormalizedURL:  normalizedURL,
		Title:          art.Title,
		Body:           art.Body,
	})
	if err != nil {
		return nil, err
	}
	if match != nil {
		if err := s.detector.Flag(ctx, article.ID, match); err != nil {
			return nil, err
		}
		return &Outcome{
			Result:         OutcomeDuplicate,
			TopicArticleID: article.ID,
			Reason:         match.Method,
			DuplicateOfID:  match.OriginalID,
		}, nil
	}
	s.detector.RememberChecksum(ctx, topic.ID, checksum)

	cfg := gate.ConfigForTopic(&topic, s.defaults)
	decision := gate.Evaluate(gate.Content{
		Title:          art.Title,
		Body:           art.Body,
		RelevanceScore: art.RelevanceScore,
	}, cfg)

	if !decision.Accept {
		if err := s.discardArticle(ctx, &article, decision); err != nil {
			return nil, err
		}
		return &Outcome{
			Result:         OutcomeDiscarded,
			TopicArticleID: article.ID,
			Reason:         decision.Reason,
		}, nil
	}

	if err := s.acceptArticle(ctx, &article, decision); err != nil {
		return nil, err
	}

	if gate.EligibleForGeneration(&article, cfg) {
		s.dispatcher.Publish(ctx, events.ArticleQualified, events.ArticleQualifiedPayload{
			TopicArticleID: article.ID,
			TopicID:        topic.ID,
		})
	}

	return &Outcome{Result: OutcomeAccepted, TopicArticleID: article.ID}, nil
}

// upsertSharedContent returns the canonical content row for a normalized
// URL, creating it on first sight and refreshing last_seen_at otherwise.
// SharedContent is immutable after creation apart from that stamp.
func (s *Service) upsertSharedContent(ctx context.Context, normalizedURL, checksum string, art ScrapedArticle) (*models.SharedContent, error) {
	now := time.Now()

	var content models.SharedContent
	err := s.db.WithContext(ctx).Where("normalized_url = ?", normalizedURL).First(&content).Error
	if err == nil {
		if err := s.db.WithContext(ctx).Model(&content).Update("last_seen_at", now).Error; err != nil {
			return nil, fmt.Errorf("failed to refresh last_seen_at: %w", err)
		}
		return &content, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up shared content: %w", err)
	}

	content = models.SharedContent{
		Checksum:      checksum,
		NormalizedURL: normalizedURL,
		URL:           art.URL,
		Title:         art.Title,
		Body:          art.Body,
		Author:        art.Author,
		PublishedAt:   art.PublishedAt,
		WordCount:     dedup.WordCount(art.Body),
		SourceDomain:  dedup.SourceDomain(art.URL),
		LastSeenAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&content).Error; err != nil {
		// A concurrent scrape of the same URL may have won the insert race;
		// the unique index makes the loser re-read instead of duplicating.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if err := s.db.WithContext(ctx).Where("normalized_url = ?", normalizedURL).First(&content).Error; err != nil {
				return nil, fmt.Errorf("failed to re-read shared content: %w", err)
			}
			return &content, nil
		}
		return nil, fmt.Errorf("failed to create shared content: %w", err)
	}
	return &content, nil
}

func (s *Service) discardArticle(ctx context.Context, article *models.TopicArticle, decision gate.Decision) error {
	meta, err := json.Marshal(map[string]interface{}{
		"rejection_reason": decision.Reason,
		"rule_fired":       decision.RuleFired,
		"gated_at":         time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal rejection metadata: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(article).Updates(map[string]interface{}{
		"processing_status": models.ArticleStatusDiscarded,
		"metadata":          datatypes.JSON(meta),
	}).Error; err != nil {
		return fmt.Errorf("failed to discard article: %w", err)
	}
	article.ProcessingStatus = models.ArticleStatusDiscarded
	return nil
}

func (s *Service) acceptArticle(ctx context.Context, article *models.TopicArticle, decision gate.Decision) error {
	matches, err := json.Marshal(decision.KeywordMatches)
	if err != nil {
		return fmt.Errorf("failed to marshal keyword matches: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(article).Updates(map[string]interface{}{
		"processing_status":     models.ArticleStatusProcessed,
		"content_quality_score": decision.QualityScore,
		"keyword_matches":       datatypes.JSON(matches),
		"is_snippet":            decision.IsSnippet,
		"snippet_reason":        decision.SnippetReason,
	}).Error; err != nil {
		return fmt.Errorf("failed to accept article: %w", err)
	}
	article.ProcessingStatus = models.ArticleStatusProcessed
	article.ContentQualityScore = decision.QualityScore
	return nil
}
