package worker

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/storypress/storypress/internal/models"
)

// Task type constants
const (
	TaskGenerateStory  = "story:generate"
	TaskReclaimStalled = "queue:reclaim_stalled"
	TaskIntegritySweep = "stories:integrity_sweep"
	TaskDedupSweep     = "dedup:backlog_sweep"
)

// generationTimeout bounds one generation attempt; anything longer is
// treated as a stall and reclaimed by the periodic sweep.
const generationTimeout = 10 * time.Minute

// Package-level Asynq client (singleton)
var client *asynq.Client

// InitClient initializes the global Asynq client for task enqueueing.
// Must be called before any EnqueueX functions.
func InitClient(redisURL string) error {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return err
	}

	client = asynq.NewClient(opt)
	return nil
}

// CloseClient closes the Asynq client connection gracefully.
func CloseClient() error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// EnqueueGenerateStory schedules generation for a queue item. Redundant
// enqueues are harmless: the claim on the database row is compare-and-swap,
// so at most one task execution wins the work.
func EnqueueGenerateStory(queueItemID uint) error {
	payload, err := json.Marshal(map[string]uint{
		"queue_item_id": queueItemID,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(
		TaskGenerateStory,
		payload,
		asynq.MaxRetry(models.DefaultMaxAttempts),
		asynq.Timeout(generationTimeout),
		asynq.Retention(24*time.Hour),
	)

	_, err = client.Enqueue(task)
	return err
}

// EnqueueDedupSweep schedules an operator-triggered dedup backlog sweep for
// a topic.
func EnqueueDedupSweep(topicID uint, limit int) error {
	payload, err := json.Marshal(map[string]interface{}{
		"topic_id": topicID,
		"limit":    limit,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(
		TaskDedupSweep,
		payload,
		asynq.MaxRetry(1),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(24*time.Hour),
	)

	_, err = client.Enqueue(task)
	return err
}
