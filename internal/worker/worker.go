package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/storypress/storypress/internal/config"
	"github.com/storypress/storypress/internal/dedup"
	"github.com/storypress/storypress/internal/events"
	"github.com/storypress/storypress/internal/generator"
	"github.com/storypress/storypress/internal/ingest"
	"github.com/storypress/storypress/internal/models"
	"github.com/storypress/storypress/internal/queue"
	"github.com/storypress/storypress/internal/stories"
	"github.com/storypress/storypress/internal/streams"
	"gorm.io/gorm"
)

// asynqLoggerAdapter wraps slog.Logger to implement asynq.Logger interface
type asynqLoggerAdapter struct {
	logger *slog.Logger
}

func (a *asynqLoggerAdapter) Debug(args ...interface{}) {
	a.logger.Debug(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Info(args ...interface{}) {
	a.logger.Info(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Warn(args ...interface{}) {
	a.logger.Warn(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Error(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
}

func (a *asynqLoggerAdapter) Fatal(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
	panic(fmt.Sprint(args...))
}

// Deps bundles the collaborators the task handlers need.
type Deps struct {
	DB         *gorm.DB
	Generator  generator.Client
	Publisher  *streams.Publisher // may be nil, illustration disabled
	Detector   *dedup.Detector
	Dispatcher *events.Dispatcher
}

// Run starts the Asynq worker server and blocks until shutdown signal.
// Use this for standalone worker mode.
func Run(cfg *config.Config, deps Deps) error {
	srv, mux, err := newServer(cfg, deps)
	if err != nil {
		return err
	}

	// Note: Scheduler is started separately in main.go worker mode
	// and deferred there for shutdown coordination.
	return srv.Run(mux)
}

// Start starts the Asynq worker in non-blocking mode and returns a stop
// function. Use this for embedded mode so the caller can coordinate
// shutdown.
func Start(cfg *config.Config, deps Deps) (stop func(), err error) {
	srv, mux, err := newServer(cfg, deps)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return func() { srv.Shutdown() }, nil
}

func newServer(cfg *config.Config, deps Deps) (*asynq.Server, *asynq.ServeMux, error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger := NewLogger(cfg.LogLevel, cfg.LogFormat)

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     5,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          &asynqLoggerAdapter{logger: logger},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskGenerateStory, handleGenerateStory(logger, deps))
	mux.HandleFunc(TaskReclaimStalled, handleReclaimStalled(logger, cfg, deps.DB))
	mux.HandleFunc(TaskIntegritySweep, handleIntegritySweep(logger, cfg, deps.DB))
	mux.HandleFunc(TaskDedupSweep, handleDedupSweep(logger, deps.Detector))

	logger.Info("Worker starting", "concurrency", 5, "redis", cfg.RedisURL)
	return srv, mux, nil
}

// handleGenerateStory runs one generation attempt: claim the queue item,
// call the rewriting service and persist the resulting story. Concurrency
// is bounded per article by the claim, not globally.
func handleGenerateStory(logger *slog.Logger, deps Deps) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload struct {
			QueueItemID uint `json:"queue_item_id"`
		}
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			// Invalid payload - don't retry
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		db := deps.DB

		item, err := queue.Claim(db, payload.QueueItemID)
		if err != nil {
			if errors.Is(err, queue.ErrNotPending) {
				// Lost the race, or the item was cancelled or completed.
				// Another execution owns the work; nothing to do here.
				logger.Info("Queue item not claimable, skipping",
					"queue_item_id", payload.QueueItemID)
				return nil
			}
			return fmt.Errorf("failed to claim queue item: %w", err)
		}

		var article models.TopicArticle
		if err := db.WithContext(ctx).
			Preload("SharedContent").
			Preload("Topic").
			First(&article, item.TopicArticleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				logger.Error("Topic article not found", "topic_article_id", item.TopicArticleID)
				if _, failErr := queue.Fail(db, item.ID, "topic article not found"); failErr != nil {
					logger.Error("Failed to record failure", "error", failErr)
				}
				return fmt.Errorf("topic article not found: %w", asynq.SkipRetry)
			}
			return fmt.Errorf("failed to fetch topic article: %w", err)
		}

		logger.Info(
			"Processing story:generate task",
			"queue_item_id", item.ID,
			"topic_article_id", article.ID,
			"attempt", item.Attempts,
		)

		payloadOut, err := deps.Generator.GenerateStory(ctx, generator.Request{
			TopicArticleID: article.ID,
			Title:          article.SharedContent.Title,
			Body:           article.SharedContent.Body,
			Region:         article.Topic.Region,
			Tone:           item.Tone,
			Style:          item.Style,
			SlideType:      item.SlideType,
			Provider:       item.AIProvider,
		})
		if err != nil {
			return recordFailure(logger, db, item, fmt.Sprintf("generation failed: %v", err))
		}
		if len(payloadOut.Slides) == 0 {
			// Failed generation produces no artifact.
			return recordFailure(logger, db, item, "generator returned zero slides")
		}

		// The external call may have outlived a cancellation; check before
		// writing so cancelled work is discarded, not persisted.
		cancelled, err := queue.IsCancelled(db, item.ID)
		if err != nil {
			return fmt.Errorf("failed to re-check queue item: %w", err)
		}
		if cancelled {
			logger.Info("Queue item cancelled during generation, discarding result",
				"queue_item_id", item.ID)
			return nil
		}

		story, err := stories.CreateFromGeneration(db, item, payloadOut, &article.Topic)
		if err != nil {
			if errors.Is(err, stories.ErrNoSlides) {
				return recordFailure(logger, db, item, "generator returned zero slides")
			}
			return fmt.Errorf("failed to create story: %w", err)
		}

		resultData, err := json.Marshal(map[string]interface{}{
			"story_id":    story.StoryID,
			"slide_count": story.SlideCount,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal result data: %w", asynq.SkipRetry)
		}

		if err := queue.Complete(db, item.ID, resultData); err != nil {
			if errors.Is(err, queue.ErrNotProcessing) {
				// A stall reset or cancellation won while we were generating:
				// discard the artifact rather than write to a reclaimed row.
				logger.Warn("Queue item no longer processing, discarding story",
					"queue_item_id", item.ID, "story_id", story.StoryID)
				db.Unscoped().Delete(story)
				return nil
			}
			return fmt.Errorf("failed to complete queue item: %w", err)
		}

		deps.Dispatcher.Publish(ctx, events.StoryCreated, events.StoryPayload{
			StoryID: story.ID,
			TopicID: article.TopicID,
			Title:   story.Title,
		})

		// Promote to ready when the artifact already passes review
		// requirements; otherwise it waits in draft for an editor.
		if ready, err := stories.MarkReady(db, story.ID); err == nil {
			deps.Dispatcher.Publish(ctx, events.StoryReady, events.StoryPayload{
				StoryID: ready.ID,
				TopicID: article.TopicID,
				Title:   ready.Title,
			})
		} else if !errors.Is(err, stories.ErrNotReady) {
			logger.Error("Failed to mark story ready", "story_id", story.ID, "error", err)
		}

		if article.Topic.AutoIllustrate && deps.Publisher != nil {
			if err := publishIllustrationRequest(ctx, deps.Publisher, story, &article.Topic); err != nil {
				logger.Error("Failed to publish illustration request",
					"story_id", story.StoryID, "error", err)
			}
		}

		logger.Info(
			"Story generation completed",
			"queue_item_id", item.ID,
			"story_id", story.StoryID,
			"slides", story.SlideCount,
		)

		return nil
	}
}

// recordFailure applies the queue's failure policy and maps it onto asynq
// retry semantics: retryable failures return an error so asynq re-runs the
// task, exhausted items stop retrying.
func recordFailure(logger *slog.Logger, db *gorm.DB, item *models.GenerationQueueItem, msg string) error {
	retried, err := queue.Fail(db, item.ID, msg)
	if err != nil {
		if errors.Is(err, queue.ErrNotProcessing) {
			// Stall sweep or cancel got there first; nothing left to record.
			return nil
		}
		return fmt.Errorf("failed to record failure: %w", err)
	}
	if retried {
		logger.Warn("Generation attempt failed, will retry",
			"queue_item_id", item.ID, "attempt", item.Attempts, "error", msg)
		return fmt.Errorf("%s", msg)
	}
	logger.Error("Generation failed terminally",
		"queue_item_id", item.ID, "attempts", item.Attempts, "error", msg)
	return fmt.Errorf("%s: %w", msg, asynq.SkipRetry)
}

func publishIllustrationRequest(ctx context.Context, publisher *streams.Publisher, story *models.Story, topic *models.Topic) error {
	var slides []models.Slide
	if err := json.Unmarshal(story.Slides, &slides); err != nil {
		return fmt.Errorf("failed to unmarshal slides: %w", err)
	}
	texts := make([]string, 0, len(slides))
	for _, s := range slides {
		texts = append(texts, s.Text)
	}

	_, err := publisher.PublishIllustrationRequest(ctx, streams.IllustrationRequest{
		StoryID:   story.StoryID,
		TopicSlug: topic.Slug,
		Slides:    texts,
	})
	return err
}

// handleReclaimStalled is the crash-recovery sweep: stalled queue items and
// stuck ready stories go back for another attempt, and generation tasks are
// re-enqueued for whatever is pending. Redundant enqueues are absorbed by
// the claim.
func handleReclaimStalled(logger *slog.Logger, cfg *config.Config, db *gorm.DB) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		reclaimed, exhausted, err := queue.ReclaimStalled(db, cfg.StallTimeout)
		if err != nil {
			return err
		}
		if reclaimed > 0 {
			logger.Warn("Reclaimed stalled queue items", "count", reclaimed)
		}
		if exhausted > 0 {
			logger.Error("Stalled queue items exhausted their attempts", "count", exhausted)
		}

		reset, err := stories.ResetStuck(db, cfg.StallTimeout)
		if err != nil {
			return err
		}
		if reset > 0 {
			logger.Warn("Reset stuck stories to draft", "count", reset)
		}

		pending, err := queue.NextPending(db, 50)
		if err != nil {
			return err
		}
		for _, item := range pending {
			if err := EnqueueGenerateStory(item.ID); err != nil {
				logger.Error("Failed to re-enqueue generation task",
					"queue_item_id", item.ID, "error", err)
			}
		}

		return nil
	}
}

// handleIntegritySweep runs the best-effort corrective sweeps over stories.
func handleIntegritySweep(logger *slog.Logger, cfg *config.Config, db *gorm.DB) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		if _, err := stories.SuppressDuplicateTitles(db); err != nil {
			return err
		}
		if _, err := stories.DeleteZeroSlideStories(db); err != nil {
			return err
		}
		if _, err := ingest.DiscardLowRelevance(db, cfg.Gate.CleanupRelevanceFloor); err != nil {
			return err
		}
		return nil
	}
}

// handleDedupSweep re-runs duplicate detection over a topic's backlog.
func handleDedupSweep(logger *slog.Logger, detector *dedup.Detector) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload struct {
			TopicID uint `json:"topic_id"`
			Limit   int  `json:"limit"`
		}
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}
		if payload.Limit <= 0 {
			payload.Limit = 500
		}

		flagged, err := detector.SweepBacklog(ctx, payload.TopicID, payload.Limit)
		if err != nil {
			return err
		}
		logger.Info("Dedup backlog sweep completed",
			"topic_id", payload.TopicID, "flagged", flagged)
		return nil
	}
}

// makeErrorHandler creates an error handler function with logger closure.
func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error(
			"Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)

		if retried >= maxRetry {
			logger.Error(
				"Task moved to dead letter queue (all retries exhausted)",
				"task_type", task.Type(),
				"payload", string(task.Payload()),
			)
		}
	}
}
