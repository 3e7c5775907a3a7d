package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/storypress/storypress/internal/ingest"
	"github.com/storypress/storypress/internal/models"
	"gorm.io/gorm"
)

// IngestHandler accepts one scraped article from the external scraper and
// returns the pipeline's accept/duplicate/discard outcome.
func IngestHandler(db *gorm.DB, svc *ingest.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var topic models.Topic
		if err := db.Where("slug = ?", c.Param("slug")).First(&topic).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "topic not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load topic"})
			return
		}

		var art ingest.ScrapedArticle
		if err := c.ShouldBindJSON(&art); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		outcome, err := svc.Ingest(c.Request.Context(), topic.ID, art)
		if err != nil {
			switch {
			case errors.Is(err, ingest.ErrTopicNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "topic not found"})
			case errors.Is(err, ingest.ErrTopicInactive):
				c.JSON(http.StatusConflict, gin.H{"error": "topic is not active"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed"})
			}
			return
		}

		c.JSON(http.StatusOK, outcome)
	}
}
