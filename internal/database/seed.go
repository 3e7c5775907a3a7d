package database

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/storypress/storypress/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SeedDevData populates the database with development test data.
// Idempotent: skips if data already exists.
func SeedDevData(db *gorm.DB) error {
	var existing models.Topic
	result := db.Where("slug = ?", "dev-metro").First(&existing)
	if result.Error == nil {
		slog.Info("Seed data already exists, skipping")
		return nil
	}

	topic := models.Topic{
		Slug:              "dev-metro",
		Name:              "Dev Metro News",
		Region:            "metroville",
		IsActive:          true,
		IsPublic:          true,
		NegativeKeywords:  datatypes.JSON([]byte(`["horoscope","advertorial"]`)),
		CompetingRegions:  datatypes.JSON([]byte(`["rivertown"]`)),
		RelevanceFloor:    20,
		MinQualityScore:   50,
		MinRelevanceScore: 5,
		AutoSimplify:      true,
	}
	if err := db.Create(&topic).Error; err != nil {
		return err
	}

	now := time.Now()
	content := models.SharedContent{
		Checksum:      "6f1ed002ab5595859014ebf0951522d9b9e0a3a7a6f1ed002ab5595859014ebf",
		NormalizedURL: "https://news.example.com/metroville-bridge-reopens",
		URL:           "https://news.example.com/metroville-bridge-reopens?utm_source=feed",
		Title:         "Metroville bridge reopens after repairs",
		Body:          "The Metroville river bridge reopened to traffic on Monday after three months of structural repairs. City engineers said the deck replacement finished two weeks ahead of schedule.",
		Author:        "Staff Reporter",
		PublishedAt:   &now,
		WordCount:     29,
		SourceDomain:  "news.example.com",
		LastSeenAt:    now,
	}
	if err := db.Create(&content).Error; err != nil {
		return err
	}

	article := models.TopicArticle{
		TopicID:                topic.ID,
		SharedContentID:        content.ID,
		ProcessingStatus:       models.ArticleStatusProcessed,
		RegionalRelevanceScore: 72,
		ContentQualityScore:    64,
		KeywordMatches:         datatypes.JSON([]byte(`["metroville","bridge"]`)),
	}
	if err := db.Create(&article).Error; err != nil {
		return err
	}

	item := models.GenerationQueueItem{
		TopicArticleID: article.ID,
		Status:         models.QueueStatusCompleted,
		Attempts:       1,
		MaxAttempts:    models.DefaultMaxAttempts,
		StartedAt:      &now,
		CompletedAt:    &now,
		ResultData:     datatypes.JSON([]byte(`{"slide_count":3}`)),
	}
	if err := db.Create(&item).Error; err != nil {
		return err
	}

	story := models.Story{
		StoryID:        uuid.New().String(),
		TopicArticleID: &article.ID,
		Title:          "Metroville bridge reopens after repairs",
		Slug:           "metroville-bridge-reopens-after-repairs",
		Status:         models.StoryStatusPublished,
		IsPublished:    true,
		Slides: datatypes.JSON([]byte(`[
			{"position":1,"kind":"text","text":"The Metroville river bridge is open again."},
			{"position":2,"kind":"text","text":"Repairs wrapped up two weeks early."},
			{"position":3,"kind":"text","text":"Engineers replaced the full deck."}
		]`)),
		SlideCount:       3,
		SimplifiedAt:     &now,
		IsAutoSimplified: true,
		PublishedAt:      &now,
	}
	if err := db.Create(&story).Error; err != nil {
		return err
	}

	slog.Info("Seeded dev data: 1 topic, 1 shared content, 1 article, 1 queue item, 1 story")
	return nil
}
