package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"golang-market-ingestor/internal/entity"
)

func TestBuildSymbolAnalysisPrompt(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	news := []entity.NewsItem{{
		URL:         "https://example.com/a",
		Headline:    "Apple beats expectations",
		Content:     "Strong quarter.",
		PublishedAt: now.Add(-2 * time.Hour),
		Source:      "Reuters",
	}}
	prices := []entity.PriceObservation{{
		Symbol:    "AAPL",
		Timestamp: now.Add(-1 * time.Hour),
		Price:     decimal.RequireFromString("187.45"),
		Session:   entity.SessionRegular,
	}}
	holding := &entity.Holding{
		Symbol:         "AAPL",
		Quantity:       decimal.NewFromInt(10),
		BreakEvenPrice: decimal.RequireFromString("150.00"),
		TotalCost:      decimal.RequireFromString("1500.00"),
	}

	prompt := BuildSymbolAnalysisPrompt("AAPL", news, prices, holding)

	assert.Contains(t, prompt, `"stance": "BULL|BEAR|NEUTRAL"`)
	assert.Contains(t, prompt, "Apple beats expectations")
	assert.Contains(t, prompt, "187.45")
	assert.Contains(t, prompt, "break-even 150")
	assert.True(t, strings.Contains(prompt, "AAPL"))
}

func TestBuildSymbolAnalysisPromptWithoutData(t *testing.T) {
	prompt := BuildSymbolAnalysisPrompt("MSFT", nil, nil, nil)
	assert.Contains(t, prompt, "No recent news available")
	assert.NotContains(t, prompt, "Current position")
}
