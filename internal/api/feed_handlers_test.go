package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"
	"github.com/storypress/storypress/internal/models"
	"gorm.io/datatypes"
)

type fakeFeedStore struct {
	topic   *models.Topic
	stories []models.Story
}

func (f *fakeFeedStore) GetPublicTopic(slug string) (*models.Topic, error) {
	if f.topic == nil || f.topic.Slug != slug {
		return nil, ErrFeedNotFound
	}
	return f.topic, nil
}

func (f *fakeFeedStore) ListPublishedStories(topicID uint, limit, offset int) ([]models.Story, error) {
	if offset >= len(f.stories) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.stories) {
		end = len(f.stories)
	}
	return f.stories[offset:end], nil
}

func (f *fakeFeedStore) GetPublishedStory(topicID uint, storyID string) (*models.Story, error) {
	for i := range f.stories {
		if f.stories[i].StoryID == storyID {
			return &f.stories[i], nil
		}
	}
	return nil, ErrFeedNotFound
}

func feedRouter(store FeedStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/feeds/:slug", GetFeedHandler(store))
	r.GET("/api/feeds/:slug/stories/:storyID", GetStoryHandler(store))
	return r
}

func publishedStory(storyID, title string) models.Story {
	now := time.Now()
	return models.Story{
		StoryID:     storyID,
		Title:       title,
		Slug:        title + "-slug",
		Status:      models.StoryStatusPublished,
		IsPublished: true,
		Slides:      datatypes.JSON([]byte(`[{"position":1,"kind":"text","text":"Slide one."}]`)),
		SlideCount:  1,
		PublishedAt: &now,
	}
}

func TestGetFeedHandler(t *testing.T) {
	store := &fakeFeedStore{
		topic: &models.Topic{Slug: "bristol", Name: "Bristol", Region: "Bristol"},
		stories: []models.Story{
			publishedStory("s-1", "first"),
			publishedStory("s-2", "second"),
		},
	}
	router := feedRouter(store)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/feeds/bristol", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp FeedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	assert.Equal(t, "bristol", resp.Topic.Slug)
	assert.Equal(t, 2, len(resp.Stories))
	assert.Equal(t, "s-1", resp.Stories[0].StoryID)
	// Feed listings carry counts, not slide bodies.
	if len(resp.Stories[0].Slides) != 0 {
		t.Errorf("feed listing should omit slides, got %s", resp.Stories[0].Slides)
	}
}

func TestGetFeedHandlerPagination(t *testing.T) {
	store := &fakeFeedStore{
		topic: &models.Topic{Slug: "bristol", Name: "Bristol"},
		stories: []models.Story{
			publishedStory("s-1", "first"),
			publishedStory("s-2", "second"),
			publishedStory("s-3", "third"),
		},
	}
	router := feedRouter(store)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/feeds/bristol?limit=1&offset=1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp FeedResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	assert.Equal(t, 1, len(resp.Stories))
	assert.Equal(t, "s-2", resp.Stories[0].StoryID)
}

func TestGetFeedHandlerUnknownTopic(t *testing.T) {
	router := feedRouter(&fakeFeedStore{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/feeds/nowhere", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStoryHandler(t *testing.T) {
	store := &fakeFeedStore{
		topic:   &models.Topic{Slug: "bristol", Name: "Bristol"},
		stories: []models.Story{publishedStory("s-1", "first")},
	}
	router := feedRouter(store)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/feeds/bristol/stories/s-1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var story StorySummary
	if err := json.Unmarshal(w.Body.Bytes(), &story); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	assert.Equal(t, "s-1", story.StoryID)
	if len(story.Slides) == 0 {
		t.Error("story detail should include slides")
	}
}

func TestGetStoryHandlerNotFound(t *testing.T) {
	store := &fakeFeedStore{
		topic: &models.Topic{Slug: "bristol", Name: "Bristol"},
	}
	router := feedRouter(store)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/feeds/bristol/stories/missing", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
