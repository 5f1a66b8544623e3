package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-market-ingestor/internal/ingestor/config"
	delivery "golang-market-ingestor/internal/ingestor/delivery/http"
	"golang-market-ingestor/internal/ingestor/normalizer"
	"golang-market-ingestor/internal/ingestor/provider"
	"golang-market-ingestor/internal/ingestor/repository"
	"golang-market-ingestor/internal/ingestor/scraper"
	"golang-market-ingestor/internal/ingestor/service"
	"golang-market-ingestor/pkg/logger"
	"golang-market-ingestor/pkg/postgres"
	"golang-market-ingestor/pkg/redis"
	"golang-market-ingestor/pkg/telegram"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the ingestion service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Ingestion Service", logger.Field("name", cfg.App.Name))

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize Redis
	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	// Initialize repositories
	newsRepo := repository.NewNewsRepository(db.DB)
	priceRepo := repository.NewPriceRepository(db.DB)
	watermarkRepo := repository.NewWatermarkRepository(db.DB)
	analysisRepo := repository.NewAnalysisRepository(db.DB)
	holdingsRepo := repository.NewHoldingsRepository(db.DB)

	// Initialize services
	urls := normalizer.NewURLNormalizer(cfg.Ingestor.ExtraTrackingParams)
	ingestSvc := service.NewIngestService(urls, newsRepo, priceRepo, analysisRepo, appLogger)
	portfolioSvc := service.NewPortfolioService(holdingsRepo, analysisRepo, appLogger)

	adapters := buildAdapters(cfg, appLogger)
	if len(adapters) == 0 {
		appLogger.Fatal("No provider adapters configured")
	}

	var contentScraper *scraper.ContentScraper
	if cfg.Ingestor.BackfillContent {
		contentScraper = scraper.NewContentScraper(cfg.Finnhub.RequestTimeout, appLogger)
	}

	var notifier telegram.Notifier
	if cfg.Telegram.Enabled {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
		}
	}

	orch := service.NewOrchestrator(cfg.Ingestor, adapters, ingestSvc, watermarkRepo, newsRepo, contentScraper, redisClient.Client, notifier, appLogger)

	// Start the poll cycle scheduler
	go func() {
		if err := orch.Start(ctx); err != nil {
			appLogger.Error("Orchestrator stopped", logger.ErrorField(err))
			stop()
		}
	}()

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	// Initialize handlers and routes
	apiV1 := e.Group("/api/v1")

	holdingsHandler := delivery.NewHoldingsHandler(portfolioSvc, appLogger)
	holdingsHandler.RegisterRoutes(apiV1.Group("/holdings"))

	analysisHandler := delivery.NewAnalysisHandler(portfolioSvc, appLogger)
	analysisHandler.RegisterRoutes(apiV1.Group("/analysis"))

	(&delivery.HealthHandler{}).RegisterRoutes(e)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	appLogger.Info("Shutting down server...")

	// Gracefully shutdown the server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

// buildAdapters wires every provider adapter that has credentials configured.
func buildAdapters(cfg *config.Config, appLogger *logger.Logger) []provider.Adapter {
	watchlist := cfg.Ingestor.Watchlist
	var adapters []provider.Adapter

	if cfg.Finnhub.APIKey != "" {
		client := provider.NewFinnhubClient(cfg.Finnhub, appLogger)
		adapters = append(adapters,
			provider.NewFinnhubCompanyNews(cfg.Finnhub, client, watchlist, appLogger),
			provider.NewFinnhubMacroNews(cfg.Finnhub, client, watchlist, appLogger),
			provider.NewFinnhubPrices(cfg.Finnhub, client, watchlist, appLogger),
		)
	}

	if cfg.Polygon.APIKey != "" {
		client := provider.NewPolygonClient(cfg.Polygon, appLogger)
		adapters = append(adapters, provider.NewPolygonNews(cfg.Polygon, client, watchlist, appLogger))
	}

	if cfg.RSS.Enabled {
		adapters = append(adapters, provider.NewRSSNews(cfg.RSS, watchlist, appLogger))
	}

	return adapters
}

func main() {
	rootCmd := &cobra.Command{Use: "ingestion-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-ingestor.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing ingestion-service CLI: %s\n", err)
		os.Exit(1)
	}
}
