package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/storypress/storypress/internal/models"
	"gorm.io/gorm"
)

// ErrFeedNotFound hides private, inactive and unknown topics behind one
// answer: consumers cannot distinguish them.
var ErrFeedNotFound = errors.New("feed not found")

// FeedStore is the read-side the publication gateway needs. Only published
// stories of public, active topics are ever returned.
type FeedStore interface {
	GetPublicTopic(slug string) (*models.Topic, error)
	ListPublishedStories(topicID uint, limit, offset int) ([]models.Story, error)
	GetPublishedStory(topicID uint, storyID string) (*models.Story, error)
}

// GormFeedStore implements FeedStore against the primary database.
type GormFeedStore struct {
	db *gorm.DB
}

// NewFeedStore creates a GormFeedStore.
func NewFeedStore(db *gorm.DB) *GormFeedStore {
	return &GormFeedStore{db: db}
}

func (s *GormFeedStore) GetPublicTopic(slug string) (*models.Topic, error) {
	var topic models.Topic
	err := s.db.Where("slug = ? AND is_public = ? AND is_active = ?", slug, true, true).
		First(&topic).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeedNotFound
		}
		return nil, err
	}
	return &topic, nil
}

func (s *GormFeedStore) ListPublishedStories(topicID uint, limit, offset int) ([]models.Story, error) {
	var out []models.Story
	err := s.db.
		Joins("JOIN topic_articles ON topic_articles.id = stories.topic_article_id").
		Where("topic_articles.topic_id = ?", topicID).
		Where("stories.status = ? AND stories.is_published = ?", models.StoryStatusPublished, true).
		Order("stories.published_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}

func (s *GormFeedStore) GetPublishedStory(topicID uint, storyID string) (*models.Story, error) {
	var story models.Story
	err := s.db.
		Joins("JOIN topic_articles ON topic_articles.id = stories.topic_article_id").
		Where("topic_articles.topic_id = ?", topicID).
		Where("stories.story_id = ?", storyID).
		Where("stories.status = ? AND stories.is_published = ?", models.StoryStatusPublished, true).
		First(&story).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeedNotFound
		}
		return nil, err
	}
	return &story, nil
}

// GetFeedHandler returns the published stories of a public, active topic.
func GetFeedHandler(store FeedStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		topic, err := store.GetPublicTopic(c.Param("slug"))
		if err != nil {
			if errors.Is(err, ErrFeedNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "feed not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load feed"})
			return
		}

		limit := intQuery(c, "limit", 20, 100)
		offset := intQuery(c, "offset", 0, 10000)

		published, err := store.ListPublishedStories(topic.ID, limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stories"})
			return
		}

		resp := FeedResponse{
			Topic: TopicSummary{
				Slug:              topic.Slug,
				Name:              topic.Name,
				Region:            topic.Region,
				ParliamentEnabled: topic.ParliamentEnabled,
				SentimentEnabled:  topic.SentimentEnabled,
			},
			Stories: make([]StorySummary, 0, len(published)),
		}
		for _, s := range published {
			summary := storySummary(s)
			summary.Slides = nil // feed listing omits slide bodies
			resp.Stories = append(resp.Stories, summary)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// GetStoryHandler returns one published story with its slides.
func GetStoryHandler(store FeedStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		topic, err := store.GetPublicTopic(c.Param("slug"))
		if err != nil {
			if errors.Is(err, ErrFeedNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "feed not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load feed"})
			return
		}

		story, err := store.GetPublishedStory(topic.ID, c.Param("storyID"))
		if err != nil {
			if errors.Is(err, ErrFeedNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "story not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load story"})
			return
		}

		c.JSON(http.StatusOK, storySummary(*story))
	}
}

func intQuery(c *gin.Context, name string, def, max int) int {
	v := def
	if raw := c.Query(name); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			v = parsed
		}
	}
	if v < 0 {
		v = 0
	}
	if v > max {
		v = max
	}
	return v
}
