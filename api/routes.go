package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ludo-technologies/astsim/internal/config"
)

// RegisterRoutes mounts the similarity API on rg.
//
// Endpoints:
//
//	PUT  /v1/submissions/:submissionId
//	POST /v1/similarity/analyze
//	POST /v1/similarity/assignments/:assignmentId/start
//	POST /v1/similarity/assignments/:assignmentId/status
//	GET  /v1/similarity/assignments/:assignmentId/results
//	GET  /v1/similarity/results/:resultId/lines
//	POST /v1/similarity/batch
//	POST /v1/similarity/compare
//	GET  /v1/similarity/events/:groupId
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rg.PUT("/submissions/:submissionId", handlers.HandlePutSubmission)

	similarity := rg.Group("/similarity")
	{
		similarity.POST("/analyze", handlers.HandleAnalyze)
		similarity.POST("/batch", handlers.HandleBatch)
		similarity.POST("/compare", handlers.HandleCompare)
		similarity.GET("/events/:groupId", handlers.HandleEvents)
		similarity.GET("/results/:resultId/lines", handlers.HandleResultLines)

		assignments := similarity.Group("/assignments/:assignmentId")
		{
			assignments.POST("/start", handlers.HandleStart)
			assignments.POST("/status", handlers.HandleStatus)
			assignments.GET("/results", handlers.HandleListResults)
		}
	}
}

// NewRouter builds the engine with middleware, health and metrics endpoints
func NewRouter(handlers *Handlers, cfg config.ServerConfig, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(logger))

	router.GET("/health", handlers.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(RateLimit(cfg.RateLimit, cfg.RateBurst))
	RegisterRoutes(v1, handlers)
	return router
}
