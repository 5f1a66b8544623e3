package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"golang-market-ingestor/internal/entity"
	"golang-market-ingestor/internal/ingestor/market"
	"golang-market-ingestor/internal/ingestor/normalizer"
	"golang-market-ingestor/internal/ingestor/provider"
	"golang-market-ingestor/internal/ingestor/repository"
	"golang-market-ingestor/pkg/logger"
	"golang-market-ingestor/pkg/utils"
)

// IngestService validates and normalizes fetched records and hands them to
// the repositories. Every write goes through here; adapters and consumers
// never touch the repositories with raw provider data.
type IngestService interface {
	IngestNews(ctx context.Context, rec provider.NewsRecord) (repository.Outcome, error)
	IngestPrice(ctx context.Context, rec provider.PriceRecord) (repository.Outcome, error)
	// BackfillContent stores extracted article text for an item that arrived
	// with an empty body. Existing content is never overwritten.
	BackfillContent(ctx context.Context, rawURL, content string) error
	UpsertAnalysisResult(ctx context.Context, result *entity.AnalysisResult) error
}

// NewIngestService creates a new ingest service.
func NewIngestService(urls *normalizer.URLNormalizer, newsRepo repository.NewsRepository, priceRepo repository.PriceRepository, analysisRepo repository.AnalysisRepository, log *logger.Logger) IngestService {
	return &ingestService{
		urls:         urls,
		newsRepo:     newsRepo,
		priceRepo:    priceRepo,
		analysisRepo: analysisRepo,
		logger:       log,
	}
}

type ingestService struct {
	urls         *normalizer.URLNormalizer
	newsRepo     repository.NewsRepository
	priceRepo    repository.PriceRepository
	analysisRepo repository.AnalysisRepository
	logger       *logger.Logger
}

func (s *ingestService) IngestNews(ctx context.Context, rec provider.NewsRecord) (repository.Outcome, error) {
	if strings.TrimSpace(rec.Headline) == "" {
		return "", invalid("headline", "must not be empty")
	}
	if rec.PublishedAt.IsZero() {
		return "", invalid("published_at", "must be set")
	}
	if len(rec.Symbols) == 0 {
		return "", invalid("symbols", "at least one symbol mention required")
	}

	canonical, err := s.urls.Normalize(rec.URL)
	if err != nil {
		return "", invalid("url", err.Error())
	}

	mentions := make([]entity.NewsSymbol, 0, len(rec.Symbols))
	seen := make(map[string]struct{}, len(rec.Symbols))
	for _, m := range rec.Symbols {
		symbol := strings.ToUpper(strings.TrimSpace(m.Symbol))
		if symbol == "" {
			return "", invalid("symbol", "must not be empty")
		}
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}
		mentions = append(mentions, entity.NewsSymbol{
			URL:         canonical,
			Symbol:      symbol,
			IsImportant: m.IsImportant,
		})
	}

	item := &entity.NewsItem{
		URL:         canonical,
		Headline:    strings.TrimSpace(rec.Headline),
		Content:     strings.TrimSpace(rec.Content),
		PublishedAt: rec.PublishedAt.UTC(),
		Source:      strings.TrimSpace(rec.Source),
		NewsType:    rec.NewsType,
		CreatedAt:   utils.TimeNowUTC(),
	}
	return s.newsRepo.Ingest(ctx, item, mentions)
}

func (s *ingestService) IngestPrice(ctx context.Context, rec provider.PriceRecord) (repository.Outcome, error) {
	if !rec.Price.IsPositive() {
		return "", invalid("price", "must be positive")
	}
	if rec.Volume != nil && *rec.Volume < 0 {
		return "", invalid("volume", "must not be negative")
	}

	symbol, ts, err := normalizer.PriceKey(rec.Symbol, rec.Timestamp)
	if err != nil {
		return "", invalid("symbol", err.Error())
	}
	if !utils.IsValidSymbol(symbol) {
		return "", invalid("symbol", "not a plausible ticker: "+symbol)
	}

	obs := &entity.PriceObservation{
		Symbol:    symbol,
		Timestamp: ts,
		Price:     rec.Price,
		Volume:    rec.Volume,
		Session:   market.Classify(ts),
	}
	return s.priceRepo.Ingest(ctx, obs)
}

func (s *ingestService) BackfillContent(ctx context.Context, rawURL, content string) error {
	canonical, err := s.urls.Normalize(rawURL)
	if err != nil {
		return invalid("url", err.Error())
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return invalid("content", "must not be empty")
	}
	return s.newsRepo.BackfillContent(ctx, canonical, content)
}

func (s *ingestService) UpsertAnalysisResult(ctx context.Context, result *entity.AnalysisResult) error {
	result.Symbol = strings.ToUpper(strings.TrimSpace(result.Symbol))
	if result.Symbol == "" {
		return invalid("symbol", "must not be empty")
	}
	switch result.AnalysisType {
	case entity.AnalysisTypeNews, entity.AnalysisTypeSentiment, entity.AnalysisTypeTrader:
	default:
		return invalid("analysis_type", "unknown type "+string(result.AnalysisType))
	}
	switch result.Stance {
	case entity.StanceBull, entity.StanceBear, entity.StanceNeutral:
	default:
		return invalid("stance", "must be BULL, BEAR, or NEUTRAL")
	}
	if result.ConfidenceScore < 0 || result.ConfidenceScore > 1 {
		return invalid("confidence_score", "must be between 0 and 1")
	}
	if !isJSONObject(result.Result) {
		return invalid("result", "must be a JSON object")
	}
	if result.LastUpdated.IsZero() {
		result.LastUpdated = utils.TimeNowUTC()
	}
	return s.analysisRepo.Upsert(ctx, result)
}

func isJSONObject(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}
