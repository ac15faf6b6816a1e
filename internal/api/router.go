package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Conceptual-Machines/magda-omr/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/magda-omr/internal/api/middleware"
	"github.com/Conceptual-Machines/magda-omr/internal/config"
	"github.com/Conceptual-Machines/magda-omr/internal/database"
	"github.com/Conceptual-Machines/magda-omr/internal/metrics"
	"github.com/Conceptual-Machines/magda-omr/internal/services"
)

func SetupRouter(
	cfg *config.Config,
	svc *services.TranscriptionService,
	store database.ConversionStore,
	reporter *metrics.Reporter,
	version string,
) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	var apiRecorder apimiddleware.APIRecorder
	var counters *metrics.Counters
	if reporter != nil {
		apiRecorder = reporter
		counters = reporter.Counters()
	}
	router.Use(apimiddleware.RequestTracking(apiRecorder))

	// CORS middleware
	router.Use(apimiddleware.CORS())

	// Health check
	healthHandler := handlers.NewHealthHandler(svc.Vocabulary().Size(), cfg.HistoryEnabled())
	router.GET("/health", healthHandler.HealthCheck)

	// Metrics endpoint
	metricsHandler := handlers.NewMetricsHandler(version, counters)
	router.GET("/api/metrics", metricsHandler.GetMetrics)

	// Conversion API
	v1 := router.Group("/api/v1")
	v1.Use(apimiddleware.Auth(cfg.AuthMode))
	{
		transcriptionHandler := handlers.NewTranscriptionHandler(svc, store, cfg.MaxBodyBytes)
		v1.POST("/transcriptions", transcriptionHandler.Create)
		v1.GET("/transcriptions/recent", transcriptionHandler.Recent)
		v1.POST("/semantic", transcriptionHandler.Semantic)
	}

	return router
}
