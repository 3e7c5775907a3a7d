package events

import (
	"context"
	"errors"
	"testing"
)

func TestDispatcherPublishesToAllHandlers(t *testing.T) {
	d := NewDispatcher()

	var got []uint
	d.Subscribe(ArticleQualified, func(ctx context.Context, payload interface{}) error {
		got = append(got, payload.(ArticleQualifiedPayload).TopicArticleID)
		return nil
	})
	d.Subscribe(ArticleQualified, func(ctx context.Context, payload interface{}) error {
		got = append(got, payload.(ArticleQualifiedPayload).TopicArticleID)
		return nil
	})

	d.Publish(context.Background(), ArticleQualified, ArticleQualifiedPayload{TopicArticleID: 42})

	if len(got) != 2 || got[0] != 42 || got[1] != 42 {
		t.Errorf("expected both handlers to run with id 42, got %v", got)
	}
}

func TestDispatcherHandlerErrorDoesNotStopOthers(t *testing.T) {
	d := NewDispatcher()

	ran := false
	d.Subscribe(StoryReady, func(ctx context.Context, payload interface{}) error {
		return errors.New("handler failed")
	})
	d.Subscribe(StoryReady, func(ctx context.Context, payload interface{}) error {
		ran = true
		return nil
	})

	d.Publish(context.Background(), StoryReady, StoryPayload{StoryID: 1})

	if !ran {
		t.Error("second handler should run despite the first failing")
	}
}

func TestDispatcherIgnoresUnknownEvents(t *testing.T) {
	d := NewDispatcher()
	// Publishing with no subscribers must not panic.
	d.Publish(context.Background(), StoryPublished, StoryPayload{StoryID: 9})
}
