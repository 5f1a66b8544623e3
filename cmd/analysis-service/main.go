package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang-market-ingestor/internal/analyzer/config"
	"golang-market-ingestor/internal/analyzer/delivery/consumer"
	analyzerrepo "golang-market-ingestor/internal/analyzer/repository"
	"golang-market-ingestor/internal/analyzer/service"
	"golang-market-ingestor/internal/ingestor/normalizer"
	"golang-market-ingestor/internal/ingestor/repository"
	ingestsvc "golang-market-ingestor/internal/ingestor/service"
	"golang-market-ingestor/pkg/logger"
	"golang-market-ingestor/pkg/postgres"
	"golang-market-ingestor/pkg/redis"

	"github.com/spf13/cobra"
	"google.golang.org/genai"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the analysis service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
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

	appLogger.Info("Starting Analysis Service", logger.Field("name", cfg.App.Name))

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

	// Initialize the Gemini AI backend
	genAiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.Gemini.APIKey,
	})
	if err != nil {
		appLogger.Fatal("Failed to initialize Gemini AI client", logger.ErrorField(err))
	}
	aiRepo, err := analyzerrepo.NewGeminiAIRepository(cfg, appLogger, genAiClient)
	if err != nil {
		appLogger.Fatal("Failed to initialize Gemini AI repository", logger.ErrorField(err))
	}

	// Initialize repositories and services
	newsRepo := repository.NewNewsRepository(db.DB)
	priceRepo := repository.NewPriceRepository(db.DB)
	analysisRepo := repository.NewAnalysisRepository(db.DB)
	holdingsRepo := repository.NewHoldingsRepository(db.DB)

	ingestSvc := ingestsvc.NewIngestService(normalizer.NewURLNormalizer(nil), newsRepo, priceRepo, analysisRepo, appLogger)
	analyzerSvc := service.NewAnalyzerService(cfg, redisClient.Client, aiRepo, newsRepo, priceRepo, holdingsRepo, ingestSvc, appLogger)

	// Start the trigger consumer
	redisConsumer := consumer.NewRedisConsumer(cfg, analyzerSvc, appLogger)
	if err := redisConsumer.Start(ctx); err != nil {
		appLogger.Fatal("Failed to start Redis consumer", logger.ErrorField(err))
	}

	<-ctx.Done()
	appLogger.Info("Shutting down analysis service...")
	redisConsumer.Stop()
	appLogger.Info("Analysis service exiting")
}

func main() {
	rootCmd := &cobra.Command{Use: "analysis-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-analyzer.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing analysis-service CLI: %s\n", err)
		os.Exit(1)
	}
}
