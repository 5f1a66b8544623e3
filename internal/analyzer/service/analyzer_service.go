package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"golang-market-ingestor/internal/analyzer/config"
	analyzerrepo "golang-market-ingestor/internal/analyzer/repository"
	"golang-market-ingestor/internal/entity"
	"golang-market-ingestor/internal/ingestor/repository"
	ingestsvc "golang-market-ingestor/internal/ingestor/service"
	"golang-market-ingestor/pkg/common"
	"golang-market-ingestor/pkg/logger"
)

// AnalyzerService consumes per-symbol analysis triggers, gathers the
// symbol's recent data, asks the AI backend for a verdict, and stores the
// validated result.
type AnalyzerService interface {
	// EnsureGroup creates the consumer group if it does not exist yet.
	EnsureGroup(ctx context.Context) error
	// ProcessTrigger reads and handles at most one trigger message.
	ProcessTrigger(ctx context.Context)
	// AnalyzeSymbol runs one full analysis for a symbol.
	AnalyzeSymbol(ctx context.Context, symbol string) error
}

// NewAnalyzerService creates a new analyzer service.
func NewAnalyzerService(
	cfg *config.Config,
	redisClient *redis.Client,
	aiRepo analyzerrepo.AIRepository,
	newsRepo repository.NewsRepository,
	priceRepo repository.PriceRepository,
	holdingsRepo repository.HoldingsRepository,
	ingest ingestsvc.IngestService,
	log *logger.Logger,
) AnalyzerService {
	return &analyzerService{
		cfg:          cfg,
		redisClient:  redisClient,
		aiRepo:       aiRepo,
		newsRepo:     newsRepo,
		priceRepo:    priceRepo,
		holdingsRepo: holdingsRepo,
		ingest:       ingest,
		logger:       log,
	}
}

type analyzerService struct {
	cfg          *config.Config
	redisClient  *redis.Client
	aiRepo       analyzerrepo.AIRepository
	newsRepo     repository.NewsRepository
	priceRepo    repository.PriceRepository
	holdingsRepo repository.HoldingsRepository
	ingest       ingestsvc.IngestService
	logger       *logger.Logger
}

func (s *analyzerService) EnsureGroup(ctx context.Context) error {
	err := s.redisClient.XGroupCreateMkStream(ctx, common.RedisStreamAnalysisTrigger, common.RedisStreamGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// ProcessTrigger dequeues and handles a single trigger message.
func (s *analyzerService) ProcessTrigger(ctx context.Context) {
	streams, err := s.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer,
		Streams:  []string{common.RedisStreamAnalysisTrigger, ">"},
		Count:    1,
		Block:    2 * time.Second,
		NoAck:    true,
	}).Result()

	if err != nil {
		// Cancellation and empty reads are expected during shutdown or idle.
		if err == context.Canceled || err == redis.Nil {
			return
		}
		s.logger.Error("Failed to read from stream", logger.ErrorField(err))
		return
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return
	}
	message := streams[0].Messages[0]

	symbol, ok := message.Values["symbol"].(string)
	if !ok || strings.TrimSpace(symbol) == "" {
		s.logger.Error("Malformed trigger message", logger.StringField("message_id", message.ID))
		return
	}

	timeout := s.cfg.Analyzer.AnalysisTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	analysisCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.AnalyzeSymbol(analysisCtx, symbol); err != nil {
		s.logger.Error("Symbol analysis failed",
			logger.StringField("symbol", symbol),
			logger.ErrorField(err))
	}
}

func (s *analyzerService) AnalyzeSymbol(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	newsLookback := s.cfg.Analyzer.NewsLookback
	if newsLookback <= 0 {
		newsLookback = 48 * time.Hour
	}
	maxNews := s.cfg.Analyzer.MaxNewsPerSymbol
	if maxNews <= 0 {
		maxNews = 20
	}
	priceLookback := s.cfg.Analyzer.PriceLookback
	if priceLookback <= 0 {
		priceLookback = 24 * time.Hour
	}

	news, err := s.newsRepo.FindRecentBySymbol(ctx, symbol, time.Now().UTC().Add(-newsLookback), maxNews)
	if err != nil {
		return err
	}
	prices, err := s.priceRepo.FindBySymbolSince(ctx, symbol, time.Now().UTC().Add(-priceLookback))
	if err != nil {
		return err
	}
	holding, err := s.holdingsRepo.Get(ctx, symbol)
	if err != nil {
		return err
	}

	verdict, err := s.aiRepo.AnalyzeSymbol(ctx, symbol, news, prices, holding)
	if err != nil {
		return err
	}

	resultJSON, err := json.Marshal(verdict)
	if err != nil {
		return err
	}

	result := &entity.AnalysisResult{
		Symbol:          symbol,
		AnalysisType:    entity.AnalysisTypeNews,
		ModelName:       s.aiRepo.ModelName(),
		Stance:          entity.Stance(strings.ToUpper(strings.TrimSpace(verdict.Stance))),
		ConfidenceScore: verdict.ConfidenceScore,
		Result:          resultJSON,
		KeyFactors:      verdict.KeyFactors,
	}
	if err := s.ingest.UpsertAnalysisResult(ctx, result); err != nil {
		return err
	}

	s.logger.Info("Symbol analysis stored",
		logger.StringField("symbol", symbol),
		logger.StringField("stance", string(result.Stance)),
		logger.Field("confidence", result.ConfidenceScore),
		logger.Field("news_count", len(news)),
		logger.Field("price_count", len(prices)))
	return nil
}
