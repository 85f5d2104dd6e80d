package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"homeworth/server/internal/metrics"
)

// NewRouter builds the gin engine with middleware and all routes
func NewRouter(handler *Handler, allowedOrigins []string, m *metrics.LookupMetrics, logger *logrus.Logger) *gin.Engine {
	if logger == nil {
		logger = logrus.New()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(logger))
	router.Use(cors.New(corsConfig(allowedOrigins)))

	SetupRoutes(router, handler)
	router.GET("/metrics", gin.WrapH(m.Handler()))
	return router
}

func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			return cfg
		}
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
		return cfg
	}
	cfg.AllowOrigins = allowedOrigins
	return cfg
}

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.GET("/estimate", handler.GetEstimate)
		api.GET("/estimates", handler.ListEstimates)
		api.DELETE("/estimates", handler.EvictEstimate)
		api.POST("/clear", handler.ClearAll)
		api.GET("/stats", handler.GetStats)

		api.GET("/properties", handler.ListProperties)
		api.GET("/properties/geojson", handler.GetPropertiesGeoJSON)
		api.GET("/properties/:id", handler.GetProperty)
		api.GET("/properties/:id/history", handler.GetPropertyHistory)
		api.GET("/properties/:id/facts", handler.GetPropertyFacts)
		api.POST("/properties/:id/facts", handler.AddPropertyFacts)

		api.POST("/ingest", handler.QueueIngest)

		api.GET("/states", handler.ListStates)
		api.GET("/states/:code", handler.GetState)
	}
}
