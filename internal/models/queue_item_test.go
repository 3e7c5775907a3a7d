package models

import "testing"

func TestQueueItemIsActive(t *testing.T) {
	active := []string{QueueStatusPending, QueueStatusProcessing}
	for _, status := range active {
		item := GenerationQueueItem{Status: status}
		if !item.IsActive() {
			t.Errorf("status %q should be active", status)
		}
		if item.IsTerminal() {
			t.Errorf("status %q should not be terminal", status)
		}
	}

	terminal := []string{QueueStatusCompleted, QueueStatusFailed, QueueStatusCancelled}
	for _, status := range terminal {
		item := GenerationQueueItem{Status: status}
		if item.IsActive() {
			t.Errorf("status %q should not be active", status)
		}
		if !item.IsTerminal() {
			t.Errorf("status %q should be terminal", status)
		}
	}
}

func TestTopicArticleIsTerminal(t *testing.T) {
	for _, status := range []string{ArticleStatusDiscarded, ArticleStatusArchived} {
		a := TopicArticle{ProcessingStatus: status}
		if !a.IsTerminal() {
			t.Errorf("status %q should be terminal", status)
		}
	}
	for _, status := range []string{ArticleStatusNew, ArticleStatusProcessing, ArticleStatusProcessed, ArticleStatusDuplicatePending} {
		a := TopicArticle{ProcessingStatus: status}
		if a.IsTerminal() {
			t.Errorf("status %q should not be terminal", status)
		}
	}
}
