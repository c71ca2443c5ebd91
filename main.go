package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"renolink/config"
	"renolink/crm"
	"renolink/middleware"
	"renolink/routes"
	"renolink/utils"
	"renolink/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "RENOLINK: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Initialize sentry error reporting
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry init failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Wire the lead engine
	store := crm.NewGormStore(config.DB)
	quotes := utils.NewQuoteClient(config.AppConfig.QuoteServiceURL)
	service := crm.NewService(store, quotes, config.AppConfig.SLAPolicies)

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the lead ingestion consumer when a broker is configured
	if config.AppConfig.AMQP.Enabled {
		ingestWorker, err := worker.NewLeadIngestWorker(
			config.AppConfig.AMQP,
			service,
			log.New(os.Stdout, "INGEST: ", log.LstdFlags),
		)
		if err != nil {
			logger.Fatalf("Failed to start lead ingest worker: %v", err)
		}
		go ingestWorker.Start(ctx)
	}

	// Setup routes
	routes.SetupRoutes(app, service)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
