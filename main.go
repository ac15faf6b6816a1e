package main

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/Conceptual-Machines/magda-omr/internal/api"
	"github.com/Conceptual-Machines/magda-omr/internal/config"
	"github.com/Conceptual-Machines/magda-omr/internal/database"
	"github.com/Conceptual-Machines/magda-omr/internal/metrics"
	"github.com/Conceptual-Machines/magda-omr/internal/music"
	"github.com/Conceptual-Machines/magda-omr/internal/services"
	"github.com/Conceptual-Machines/magda-omr/internal/vocab"
)

const (
	sentryFlushTimeout = 2 * time.Second
)

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

// GetVersion returns the current release version
func GetVersion() string {
	return releaseVersion
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	// Initialize Sentry
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			Release:          "magda-omr@" + releaseVersion,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
			EnableLogs:       true,
			Debug:            !cfg.IsProduction(),
			BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
				if event.Request != nil {
					event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
				}
				return event
			},
		}); err != nil {
			log.Printf("Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s, release: %s)", cfg.Environment, releaseVersion)
			defer sentry.Flush(sentryFlushTimeout)
		}
	} else {
		log.Println("⚠️  Sentry not configured (SENTRY_DSN not set)")
	}

	// Vocabulary errors are configuration errors
	table, err := loadVocabulary(cfg.VocabPath)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to load vocabulary: ", err)
	}
	log.Printf("🎼 Vocabulary loaded (%d classes)", table.Size())

	// Conversion history
	store, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to open conversion history: ", err)
	}
	if !cfg.HistoryEnabled() {
		log.Println("⚠️  Conversion history disabled (DATABASE_URL not set)")
	}

	// Metrics
	cw, err := metrics.NewClient(context.Background(), cfg.Environment, cfg.CloudWatchNamespace)
	if err != nil {
		log.Printf("Failed to initialize CloudWatch metrics: %v", err)
		cw = nil
	}
	reporter := metrics.NewReporter(cw)

	svc := services.NewTranscriptionService(table, music.NewTranslator(nil), reporter)

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.IsGatewayMode() {
		log.Println("🔐 Auth mode: gateway (trusting X-User-* headers)")
	} else {
		log.Println("🔓 Auth mode: none")
	}

	router := api.SetupRouter(cfg, svc, store, reporter, GetVersion())

	log.Printf("🚀 Starting server on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to start server:", err)
	}
}

func loadVocabulary(path string) (*vocab.Table, error) {
	if path == "" {
		return vocab.Default()
	}
	return vocab.Load(path)
}

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string)
	sensitiveKeys := map[string]bool{
		"authorization": true,
		"cookie":        true,
		"x-api-key":     true,
	}

	for k, v := range headers {
		if sensitiveKeys[k] {
			filtered[k] = "[REDACTED]"
		} else {
			filtered[k] = v
		}
	}
	return filtered
}
