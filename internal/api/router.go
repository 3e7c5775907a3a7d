// Package api wires the HTTP boundaries of the pipeline: ingestion for the
// scraper, the publication gateway for consumers and the administrative
// surface for operators.
package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/storypress/storypress/internal/auth"
	"github.com/storypress/storypress/internal/config"
	"github.com/storypress/storypress/internal/events"
	"github.com/storypress/storypress/internal/health"
	"github.com/storypress/storypress/internal/ingest"
	"gorm.io/gorm"
)

// SetupRouter builds the gin engine with all routes attached.
func SetupRouter(cfg *config.Config, db *gorm.DB, ingestSvc *ingest.Service, dispatcher *events.Dispatcher) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.Default())

	r.GET("/health", gin.WrapF(health.Handler))

	feedStore := NewFeedStore(db)

	// Publication gateway: read-only, no auth, only published stories of
	// public active topics are reachable.
	feeds := r.Group("/api/feeds")
	{
		feeds.GET("/:slug", GetFeedHandler(feedStore))
		feeds.GET("/:slug/stories/:storyID", GetStoryHandler(feedStore))
	}

	// Ingestion boundary for the external scraper.
	scraper := r.Group("/api/topics", auth.RequireToken(cfg.ScraperToken, auth.RoleScraper))
	{
		scraper.POST("/:slug/ingest", IngestHandler(db, ingestSvc))
	}

	// Administrative boundary: topic owners and administrators only.
	admin := r.Group("/api/admin", auth.RequireToken(cfg.AdminToken, auth.RoleAdmin))
	{
		admin.GET("/queue", ListQueueHandler(db))
		admin.POST("/queue", EnqueueHandler(db))
		admin.POST("/queue/:id/retry", RetryHandler(db))
		admin.POST("/topics/:id/cancel", CancelTopicHandler(db))
		admin.POST("/topics/:id/dedup-sweep", DedupSweepHandler())
		admin.POST("/stories/:id/ready", MarkStoryReadyHandler(db, dispatcher))
		admin.POST("/stories/:id/publish", PublishStoryHandler(db, dispatcher))
		admin.POST("/stories/:id/archive", ArchiveStoryHandler(db, dispatcher))
	}

	return r
}
