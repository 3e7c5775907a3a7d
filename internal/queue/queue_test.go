package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/storypress/storypress/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	err = db.AutoMigrate(
		&models.Topic{},
		&models.SharedContent{},
		&models.TopicArticle{},
		&models.GenerationQueueItem{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedArticle(t *testing.T, db *gorm.DB, slug string) *models.TopicArticle {
	t.Helper()
	topic := models.Topic{Slug: slug, Name: slug, IsActive: true}
	if err := db.Create(&topic).Error; err != nil {
		t.Fatalf("create topic: %v", err)
	}
	content := models.SharedContent{
		Checksum:      slug + "-checksum",
		NormalizedURL: "https://news.example.com/" + slug,
		URL:           "https://news.example.com/" + slug,
		Title:         "Article for " + slug,
		LastSeenAt:    time.Now(),
	}
	if err := db.Create(&content).Error; err != nil {
		t.Fatalf("create shared content: %v", err)
	}
	article := models.TopicArticle{
		TopicID:          topic.ID,
		SharedContentID:  content.ID,
		ProcessingStatus: models.ArticleStatusProcessed,
	}
	if err := db.Create(&article).Error; err != nil {
		t.Fatalf("create topic article: %v", err)
	}
	return &article
}

// backdate pushes an item's updated_at behind the stall cutoff without
// triggering the auto-timestamp.
func backdate(t *testing.T, db *gorm.DB, itemID uint, age time.Duration) {
	t.Helper()
	past := time.Now().Add(-age)
	err := db.Model(&models.GenerationQueueItem{}).
		Where("id = ?", itemID).
		UpdateColumn("updated_at", past).Error
	if err != nil {
		t.Fatalf("backdate item: %v", err)
	}
}

func reload(t *testing.T, db *gorm.DB, itemID uint) *models.GenerationQueueItem {
	t.Helper()
	var item models.GenerationQueueItem
	if err := db.First(&item, itemID).Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}
	return &item
}

func TestEnqueueRefusesSecondActiveItem(t *testing.T) {
	db := testDB(t)
	article := seedArticle(t, db, "metro")

	first, err := Enqueue(db, article.ID, Params{Tone: "neutral"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if first.Status != models.QueueStatusPending {
		t.Errorf("status = %q, want pending", first.Status)
	}
	if first.MaxAttempts != models.DefaultMaxAttempts {
		t.Errorf("max attempts = %d, want %d", first.MaxAttempts, models.DefaultMaxAttempts)
	}

	if _, err := Enqueue(db, article.ID, Params{}); !errors.Is(err, ErrActiveItemExists) {
		t.Errorf("second enqueue: got %v, want ErrActiveItemExists", err)
	}

	if _, err := Enqueue(db, 9999, Params{}); !errors.Is(err, ErrArticleNotFound) {
		t.Errorf("missing article: got %v, want ErrArticleNotFound", err)
	}
}

func TestClaimTransitionsAndIncrementsAttempts(t *testing.T) {
	db := testDB(t)
	article := seedArticle(t, db, "metro")
	item, err := Enqueue(db, article.ID, Params{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	claimed, err := Claim(db, item.ID)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed.Status != models.QueueStatusProcessing {
		t.Errorf("status = %q, want processing", claimed.Status)
	}
	if claimed.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", claimed.Attempts)
	}
	if claimed.StartedAt == nil {
		t.Error("started_at should be stamped")
	}

	// The item is no longer pending; a second claim loses.
	if _, err := Claim(db, item.ID); !errors.Is(err, ErrNotPending) {
		t.Errorf("second claim: got %v, want ErrNotPending", err)
	}
}

func TestClaimRefusesExhaustedBudget(t *testing.T) {
	db := testDB(t)
	article := seedArticle(t, db, "metro")
	item := models.GenerationQueueItem{
		TopicArticleID: article.ID,
		Status:         models.QueueStatusPending,
		Attempts:       models.DefaultMaxAttempts,
		MaxAttempts:    models.DefaultMaxAttempts,
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}

	if _, err := Claim(db, item.ID); !errors.Is(err, ErrNotPending) {
		t.Fatalf("claim with spent budget: got %v, want ErrNotPending", err)
	}

	after := reload(t, db, item.ID)
	if after.Attempts > after.MaxAttempts {
		t.Errorf("attempts = %d exceeds max_attempts = %d", after.Attempts, after.MaxAttempts)
	}
	if after.Status != models.QueueStatusPending {
		t.Errorf("status = %q, want pending", after.Status)
	}
}

func TestFailRetriesUntilBudgetExhausted(t *testing.T) {
	db := testDB(t)
	article := seedArticle(t, db, "metro")
	item, err := Enqueue(db, article.ID, Params{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Attempts 1 and 2 fail back to pending.
	for attempt := 1; attempt < models.DefaultMaxAttempts; attempt++ {
		if _, err := Claim(db, item.ID); err != nil {
			t.Fatalf("claim attempt %d: %v", attempt, err)
		}
		retried, err := Fail(db, item.ID, "provider timeout")
		if err != nil {
			t.Fatalf("fail attempt %d: %v", attempt, err)
		}
		if !retried {
			t.Fatalf("attempt %d should be retried", attempt)
		}
		after := reload(t, db, item.ID)
		if after.Status != models.QueueStatusPending {
			t.Fatalf("attempt %d: status = %q, want pending", attempt, after.Status)
		}
		if after.StartedAt != nil {
			t.Errorf("attempt %d: started_at should be cleared on retry", attempt)
		}
		if after.ErrorMessage != "provider timeout" {
			t.Errorf("attempt %d: error message = %q", attempt, after.ErrorMessage)
		}
	}

	// The final attempt is terminal.
	if _, err := Claim(db, item.ID); err != nil {
		t.Fatalf("final claim: %v", err)
	}
	retried, err := Fail(db, item.ID, "provider timeout")
	if err != nil {
		t.Fatalf("final fail: %v", err)
	}
	if retried {
		t.Fatal("final attempt must not be retried")
	}

	after := reload(t, db, item.ID)
	if after.Status != models.QueueStatusFailed {
		t.Errorf("status = %q, want failed", after.Status)
	}
	if after.Attempts != models.DefaultMaxAttempts {
		t.Errorf("attempts = %d, want %d", after.Attempts, models.DefaultMaxAttempts)
	}
	if after.CompletedAt == nil {
		t.Error("completed_at should be stamped on terminal failure")
	}

	// Terminal failed never re-enters processing without an operator reset.
	if _, err := Claim(db, item.ID); !errors.Is(err, ErrNotPending) {
		t.Errorf("claim of failed item: got %v, want ErrNotPending", err)
	}
}

func TestRetryResetsFailedItem(t *testing.T) {
	db := testDB(t)
	article := seedArticle(t, db, "metro")
	item := models.GenerationQueueItem{
		TopicArticleID: article.ID,
		Status:         models.QueueStatusFailed,
		Attempts:       models.DefaultMaxAttempts,
		MaxAttempts:    models.DefaultMaxAttempts,
		ErrorMessage:   "provider timeout",
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}

	if err := Retry(db, item.ID); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	after := reload(t, db, item.ID)
	if after.Status != models.QueueStatusPending {
		t.Errorf("status = %q, want pending", after.Status)
	}
	if after.Attempts != 0 {
		t.Errorf("attempts = %d, want 0 (fresh operator budget)", after.Attempts)
	}
	if after.ErrorMessage != "" {
		t.Errorf("error message = %q, want empty", after.ErrorMessage)
	}

	// Retry only applies to terminally failed items.
	if err := Retry(db, item.ID); !errors.Is(err, ErrNotFailed) {
		t.Errorf("retry of pending item: got %v, want ErrNotFailed", err)
	}
}

func TestReclaimStalledResetsAndIsIdempotent(t *testing.T) {
	db := testDB(t)
	article := seedArticle(t, db, "metro")
	item, err := Enqueue(db, article.ID, Params{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := Claim(db, item.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	backdate(t, db, item.ID, 15*time.Minute)

	reclaimed, exhausted, err := ReclaimStalled(db, 10*time.Minute)
	if err != nil {
		t.Fatalf("ReclaimStalled: %v", err)
	}
	if reclaimed != 1 || exhausted != 0 {
		t.Fatalf("reclaimed = %d, exhausted = %d, want 1, 0", reclaimed, exhausted)
	}

	after := reload(t, db, item.ID)
	if after.Status != models.QueueStatusPending {
		t.Errorf("status = %q, want pending", after.Status)
	}
	if after.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 (preserved)", after.Attempts)
	}
	if after.StartedAt != nil {
		t.Error("started_at should be cleared")
	}

	// A second sweep finds nothing left to reset.
	reclaimed, exhausted, err = ReclaimStalled(db, 10*time.Minute)
	if err != nil {
		t.Fatalf("second ReclaimStalled: %v", err)
	}
	if reclaimed != 0 || exhausted != 0 {
		t.Errorf("second sweep: reclaimed = %d, exhausted = %d, want 0, 0", reclaimed, exhausted)
	}
}

func TestReclaimStalledFailsExhaustedItems(t *testing.T) {
	db := testDB(t)
	article := seedArticle(t, db, "metro")
	item := models.GenerationQueueItem{
		TopicArticleID: article.ID,
		Status:         models.QueueStatusProcessing,
		Attempts:       models.DefaultMaxAttempts,
		MaxAttempts:    models.DefaultMaxAttempts,
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}
	backdate(t, db, item.ID, 15*time.Minute)

	reclaimed, exhausted, err := ReclaimStalled(db, 10*time.Minute)
	if err != nil {
		t.Fatalf("ReclaimStalled: %v", err)
	}
	if reclaimed != 0 || exhausted != 1 {
		t.Fatalf("reclaimed = %d, exhausted = %d, want 0, 1", reclaimed, exhausted)
	}

	after := reload(t, db, item.ID)
	if after.Status != models.QueueStatusFailed {
		t.Errorf("status = %q, want failed (no budget left for another stall)", after.Status)
	}
	if after.Attempts > after.MaxAttempts {
		t.Errorf("attempts = %d exceeds max_attempts = %d", after.Attempts, after.MaxAttempts)
	}

	// The failed item is terminal: unclaimable until an operator Retry.
	if _, err := Claim(db, item.ID); !errors.Is(err, ErrNotPending) {
		t.Errorf("claim of exhausted item: got %v, want ErrNotPending", err)
	}
}

func TestCompleteAfterReclaimIsRefused(t *testing.T) {
	db := testDB(t)
	article := seedArticle(t, db, "metro")
	item, err := Enqueue(db, article.ID, Params{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := Claim(db, item.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	backdate(t, db, item.ID, 15*time.Minute)
	if _, _, err := ReclaimStalled(db, 10*time.Minute); err != nil {
		t.Fatalf("ReclaimStalled: %v", err)
	}

	// The original worker wakes up late; its completion must be refused.
	err = Complete(db, item.ID, []byte(`{"story_id":"s-1"}`))
	if !errors.Is(err, ErrNotProcessing) {
		t.Errorf("late complete: got %v, want ErrNotProcessing", err)
	}
}

func TestCancelPendingIsTerminal(t *testing.T) {
	db := testDB(t)
	first := seedArticle(t, db, "metro")
	second := models.TopicArticle{
		TopicID:          first.TopicID,
		SharedContentID:  first.SharedContentID,
		ProcessingStatus: models.ArticleStatusProcessed,
	}
	// Distinct shared content keeps the pair index satisfied.
	content := models.SharedContent{
		Checksum:      "other-checksum",
		NormalizedURL: "https://news.example.com/other",
		URL:           "https://news.example.com/other",
		Title:         "Other article",
		LastSeenAt:    time.Now(),
	}
	if err := db.Create(&content).Error; err != nil {
		t.Fatalf("create shared content: %v", err)
	}
	second.SharedContentID = content.ID
	if err := db.Create(&second).Error; err != nil {
		t.Fatalf("create second article: %v", err)
	}

	itemA, err := Enqueue(db, first.ID, Params{})
	if err != nil {
		t.Fatalf("Enqueue A: %v", err)
	}
	itemB, err := Enqueue(db, second.ID, Params{})
	if err != nil {
		t.Fatalf("Enqueue B: %v", err)
	}

	cancelled, err := CancelPending(db, first.TopicID)
	if err != nil {
		t.Fatalf("CancelPending: %v", err)
	}
	if cancelled != 2 {
		t.Fatalf("cancelled = %d, want 2", cancelled)
	}

	for _, id := range []uint{itemA.ID, itemB.ID} {
		after := reload(t, db, id)
		if after.Status != models.QueueStatusCancelled {
			t.Errorf("item %d: status = %q, want cancelled", id, after.Status)
		}
		if _, err := Claim(db, id); !errors.Is(err, ErrNotPending) {
			t.Errorf("item %d: claim got %v, want ErrNotPending", id, err)
		}

		ok, err := IsCancelled(db, id)
		if err != nil {
			t.Fatalf("IsCancelled: %v", err)
		}
		if !ok {
			t.Errorf("item %d should report cancelled", id)
		}
	}
}
