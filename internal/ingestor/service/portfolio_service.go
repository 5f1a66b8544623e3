package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"golang-market-ingestor/internal/entity"
	"golang-market-ingestor/internal/ingestor/dto"
	"golang-market-ingestor/internal/ingestor/repository"
	"golang-market-ingestor/pkg/logger"
	"golang-market-ingestor/pkg/utils"
)

// PortfolioService backs the holdings and analysis read API. Decimal fields
// cross the boundary as strings and are parsed exactly, never through floats.
type PortfolioService interface {
	UpsertHolding(ctx context.Context, symbol string, req *dto.UpsertHoldingRequest) (*dto.HoldingResponse, error)
	GetHolding(ctx context.Context, symbol string) (*dto.HoldingResponse, error)
	ListHoldings(ctx context.Context) ([]dto.HoldingResponse, error)
	DeleteHolding(ctx context.Context, symbol string) error
	// ListAnalysis returns the current analysis rows, for one symbol or all.
	ListAnalysis(ctx context.Context, symbol string) ([]dto.AnalysisResponse, error)
}

// NewPortfolioService creates a new portfolio service.
func NewPortfolioService(holdingsRepo repository.HoldingsRepository, analysisRepo repository.AnalysisRepository, log *logger.Logger) PortfolioService {
	return &portfolioService{
		holdingsRepo: holdingsRepo,
		analysisRepo: analysisRepo,
		logger:       log,
	}
}

type portfolioService struct {
	holdingsRepo repository.HoldingsRepository
	analysisRepo repository.AnalysisRepository
	logger       *logger.Logger
}

func (s *portfolioService) UpsertHolding(ctx context.Context, symbol string, req *dto.UpsertHoldingRequest) (*dto.HoldingResponse, error) {
	symbol, err := cleanSymbol(symbol)
	if err != nil {
		return nil, err
	}

	quantity, err := parseDecimal("quantity", req.Quantity)
	if err != nil {
		return nil, err
	}
	breakEven, err := parseDecimal("break_even_price", req.BreakEvenPrice)
	if err != nil {
		return nil, err
	}
	totalCost, err := parseDecimal("total_cost", req.TotalCost)
	if err != nil {
		return nil, err
	}
	if quantity.IsNegative() || breakEven.IsNegative() || totalCost.IsNegative() {
		return nil, invalid("holding", "money fields must not be negative")
	}

	holding := &entity.Holding{
		Symbol:         symbol,
		Quantity:       quantity,
		BreakEvenPrice: breakEven,
		TotalCost:      totalCost,
		Notes:          strings.TrimSpace(req.Notes),
	}
	if err := s.holdingsRepo.Upsert(ctx, holding); err != nil {
		return nil, err
	}

	resp := dto.NewHoldingResponse(holding)
	return &resp, nil
}

func (s *portfolioService) GetHolding(ctx context.Context, symbol string) (*dto.HoldingResponse, error) {
	symbol, err := cleanSymbol(symbol)
	if err != nil {
		return nil, err
	}
	holding, err := s.holdingsRepo.Get(ctx, symbol)
	if err != nil || holding == nil {
		return nil, err
	}
	resp := dto.NewHoldingResponse(holding)
	return &resp, nil
}

func (s *portfolioService) ListHoldings(ctx context.Context) ([]dto.HoldingResponse, error) {
	holdings, err := s.holdingsRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.HoldingResponse, 0, len(holdings))
	for i := range holdings {
		out = append(out, dto.NewHoldingResponse(&holdings[i]))
	}
	return out, nil
}

func (s *portfolioService) DeleteHolding(ctx context.Context, symbol string) error {
	symbol, err := cleanSymbol(symbol)
	if err != nil {
		return err
	}
	return s.holdingsRepo.Delete(ctx, symbol)
}

func (s *portfolioService) ListAnalysis(ctx context.Context, symbol string) ([]dto.AnalysisResponse, error) {
	var (
		results []entity.AnalysisResult
		err     error
	)
	if strings.TrimSpace(symbol) == "" {
		results, err = s.analysisRepo.FindAll(ctx)
	} else {
		var cleaned string
		cleaned, err = cleanSymbol(symbol)
		if err != nil {
			return nil, err
		}
		results, err = s.analysisRepo.FindBySymbol(ctx, cleaned)
	}
	if err != nil {
		return nil, err
	}

	out := make([]dto.AnalysisResponse, 0, len(results))
	for i := range results {
		out = append(out, dto.NewAnalysisResponse(&results[i]))
	}
	return out, nil
}

func cleanSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !utils.IsValidSymbol(symbol) {
		return "", invalid("symbol", "not a plausible ticker: "+symbol)
	}
	return symbol, nil
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, invalid(field, "not a decimal string")
	}
	return value, nil
}
