package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/storypress/storypress/internal/events"
	"github.com/storypress/storypress/internal/models"
	"github.com/storypress/storypress/internal/queue"
	"github.com/storypress/storypress/internal/stories"
	"gorm.io/gorm"
)

// RegisterEventHandlers wires the post-commit reactions to pipeline events:
// qualification triggers enqueueing, story creation assigns slugs, ready and
// published stories notify the external collaborator.
func RegisterEventHandlers(db *gorm.DB, dispatcher *events.Dispatcher, notifier *events.Notifier) {
	dispatcher.Subscribe(events.ArticleQualified, func(ctx context.Context, payload interface{}) error {
		p, ok := payload.(events.ArticleQualifiedPayload)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", payload)
		}

		item, err := queue.Enqueue(db, p.TopicArticleID, queue.Params{})
		if err != nil {
			// Another enqueuer already holds the slot; qualification is
			// idempotent from the queue's point of view.
			if errors.Is(err, queue.ErrActiveItemExists) {
				return nil
			}
			return err
		}
		return EnqueueGenerateStory(item.ID)
	})

	dispatcher.Subscribe(events.StoryCreated, func(ctx context.Context, payload interface{}) error {
		p, ok := payload.(events.StoryPayload)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", payload)
		}
		return stories.AssignSlug(db, p.StoryID)
	})

	dispatcher.Subscribe(events.StoryReady, func(ctx context.Context, payload interface{}) error {
		p, ok := payload.(events.StoryPayload)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", payload)
		}
		if err := notifier.Notify(ctx, events.StoryReady, p); err != nil {
			return err
		}

		// Drip-feed scheduling is an external collaborator; topics with it
		// enabled get an extra scheduling notification.
		if p.TopicID != 0 {
			var topic models.Topic
			if err := db.First(&topic, p.TopicID).Error; err != nil {
				return err
			}
			if topic.DripFeedEnabled {
				return notifier.Notify(ctx, "story.drip_schedule", p)
			}
		}
		return nil
	})

	dispatcher.Subscribe(events.StoryPublished, func(ctx context.Context, payload interface{}) error {
		return notifier.Notify(ctx, events.StoryPublished, payload)
	})
}
