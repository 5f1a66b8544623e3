package provider

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"golang-market-ingestor/internal/entity"
	"golang-market-ingestor/internal/ingestor/config"
	"golang-market-ingestor/pkg/logger"
)

// finnhubQuote is the raw /quote payload. Finnhub serves prices as JSON
// numbers; they are decoded via json.Number into exact decimals, never
// through a float.
type finnhubQuote struct {
	Current   decimal.Decimal `json:"c"`
	Timestamp int64           `json:"t"`
}

// FinnhubPrices fetches the latest quote per watchlist symbol.
type FinnhubPrices struct {
	client  *restClient
	symbols []string
	spec    StreamSpec
	logger  *logger.Logger
}

// NewFinnhubPrices creates the price adapter for a watchlist.
func NewFinnhubPrices(cfg config.Finnhub, client *restClient, symbols []string, log *logger.Logger) *FinnhubPrices {
	return &FinnhubPrices{
		client:  client,
		symbols: upperSymbols(symbols),
		spec: StreamSpec{
			Provider:          entity.ProviderFinnhub,
			Stream:            entity.StreamPrices,
			Scope:             entity.ScopeSymbol,
			Cursor:            CursorTimestamp,
			BootstrapLookback: 24 * time.Hour,
		},
		logger: log,
	}
}

func (p *FinnhubPrices) Name() string      { return "finnhub-prices" }
func (p *FinnhubPrices) Spec() StreamSpec  { return p.spec }
func (p *FinnhubPrices) Symbols() []string { return p.symbols }

func (p *FinnhubPrices) FetchBatch(ctx context.Context, plan FetchPlan) (Batch, error) {
	if plan.Since == nil {
		return Batch{}, fmt.Errorf("price stream requires a timestamp cursor")
	}
	symbol := plan.Key.Symbol

	params := url.Values{}
	params.Set("symbol", symbol)

	var quote finnhubQuote
	if err := p.client.get(ctx, "/quote", params, &quote); err != nil {
		return Batch{}, err
	}

	batch := Batch{}
	if quote.Timestamp <= 0 || !quote.Current.IsPositive() {
		batch.Dropped++
		return batch, nil
	}

	observed := time.Unix(quote.Timestamp, 0).UTC()
	if !observed.After(*plan.Since) {
		// Quote unchanged since the last poll.
		return batch, nil
	}

	batch.Prices = append(batch.Prices, PriceRecord{
		Symbol:    symbol,
		Timestamp: observed,
		Price:     quote.Current,
	})
	return batch, nil
}
