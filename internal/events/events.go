// Package events carries the pipeline's post-commit domain events. State
// transitions publish an event after the primary write commits; subscribed
// handlers (enqueue, notify, slug assignment) react to it. This replaces the
// hidden trigger-on-write side effects of the original schema.
package events

import (
	"context"
	"log/slog"
	"sync"
)

// Event names
const (
	ArticleQualified = "article.qualified"
	StoryCreated     = "story.created"
	StoryReady       = "story.ready"
	StoryPublished   = "story.published"
)

// ArticleQualifiedPayload announces that a topic article cleared the gate
// and is eligible for generation.
type ArticleQualifiedPayload struct {
	TopicArticleID uint
	TopicID        uint
}

// StoryPayload identifies a story for lifecycle events.
type StoryPayload struct {
	StoryID uint // database id
	TopicID uint
	Title   string
}

// Handler reacts to one published event. Handlers run synchronously after
// the primary transition commits; a handler error is logged, never bubbled
// back into the write path.
type Handler func(ctx context.Context, payload interface{}) error

// Dispatcher is a minimal in-process pub/sub registry.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for an event name.
func (d *Dispatcher) Subscribe(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = append(d.handlers[name], h)
}

// Publish invokes all handlers registered for the event. Handler failures
// are logged and do not stop the remaining handlers.
func (d *Dispatcher) Publish(ctx context.Context, name string, payload interface{}) {
	d.mu.RLock()
	handlers := d.handlers[name]
	d.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, payload); err != nil {
			slog.Error("Event handler failed", "event", name, "error", err)
		}
	}
}
