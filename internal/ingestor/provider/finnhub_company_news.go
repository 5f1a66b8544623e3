package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang-market-ingestor/internal/entity"
	"golang-market-ingestor/internal/ingestor/config"
	"golang-market-ingestor/pkg/logger"
	"golang-market-ingestor/pkg/utils"
)

// finnhubArticle is Finnhub's raw news payload shape, for both the
// /company-news and /news endpoints.
type finnhubArticle struct {
	ID       int64  `json:"id"`
	Headline string `json:"headline"`
	URL      string `json:"url"`
	Datetime int64  `json:"datetime"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	Related  string `json:"related"`
}

// FinnhubCompanyNews fetches per-symbol company news from /company-news using
// a date cursor.
type FinnhubCompanyNews struct {
	client  *restClient
	symbols []string
	spec    StreamSpec
	logger  *logger.Logger
}

// NewFinnhubCompanyNews creates the company news adapter for a watchlist.
func NewFinnhubCompanyNews(cfg config.Finnhub, client *restClient, symbols []string, log *logger.Logger) *FinnhubCompanyNews {
	firstRunDays := cfg.CompanyNewsFirstRunDays
	if firstRunDays <= 0 {
		firstRunDays = 2
	}
	return &FinnhubCompanyNews{
		client:  client,
		symbols: upperSymbols(symbols),
		spec: StreamSpec{
			Provider:          entity.ProviderFinnhub,
			Stream:            entity.StreamCompany,
			Scope:             entity.ScopeSymbol,
			Cursor:            CursorTimestamp,
			BootstrapLookback: time.Duration(firstRunDays) * 24 * time.Hour,
		},
		logger: log,
	}
}

func (p *FinnhubCompanyNews) Name() string     { return "finnhub-company-news" }
func (p *FinnhubCompanyNews) Spec() StreamSpec { return p.spec }
func (p *FinnhubCompanyNews) Symbols() []string {
	return p.symbols
}

func (p *FinnhubCompanyNews) FetchBatch(ctx context.Context, plan FetchPlan) (Batch, error) {
	if plan.Since == nil {
		return Batch{}, fmt.Errorf("company news requires a timestamp cursor")
	}
	symbol := plan.Key.Symbol

	// The API filters by whole calendar days, so fetch from the cursor's day
	// with a small buffer and drop anything at or before the cursor here.
	buffer := plan.Since.Add(-2 * time.Minute)
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("from", buffer.UTC().Format("2006-01-02"))
	params.Set("to", time.Now().UTC().Format("2006-01-02"))

	var articles []finnhubArticle
	if err := p.client.get(ctx, "/company-news", params, &articles); err != nil {
		return Batch{}, err
	}

	batch := Batch{}
	for _, article := range articles {
		rec, ok := parseFinnhubArticle(article, entity.NewsTypeCompanySpecific)
		if !ok {
			batch.Dropped++
			continue
		}
		if !rec.PublishedAt.After(*plan.Since) {
			continue
		}
		important := true
		rec.Symbols = []SymbolMention{{Symbol: symbol, IsImportant: &important}}
		batch.News = append(batch.News, rec)
	}
	return batch, nil
}

// FinnhubMacroNews fetches market-wide news from /news using Finnhub's
// numeric id pagination. One call per cycle, global scope; articles are
// mapped to watchlist symbols via the `related` field, with a MARKET
// fallback for articles that match none.
type FinnhubMacroNews struct {
	client  *restClient
	symbols []string
	spec    StreamSpec
	logger  *logger.Logger
}

// NewFinnhubMacroNews creates the macro news adapter.
func NewFinnhubMacroNews(cfg config.Finnhub, client *restClient, symbols []string, log *logger.Logger) *FinnhubMacroNews {
	firstRunDays := cfg.MacroNewsFirstRunDays
	if firstRunDays <= 0 {
		firstRunDays = 2
	}
	return &FinnhubMacroNews{
		client:  client,
		symbols: upperSymbols(symbols),
		spec: StreamSpec{
			Provider:          entity.ProviderFinnhub,
			Stream:            entity.StreamMacro,
			Scope:             entity.ScopeGlobal,
			Cursor:            CursorID,
			BootstrapLookback: time.Duration(firstRunDays) * 24 * time.Hour,
		},
		logger: log,
	}
}

func (p *FinnhubMacroNews) Name() string      { return "finnhub-macro-news" }
func (p *FinnhubMacroNews) Spec() StreamSpec  { return p.spec }
func (p *FinnhubMacroNews) Symbols() []string { return nil }

func (p *FinnhubMacroNews) FetchBatch(ctx context.Context, plan FetchPlan) (Batch, error) {
	params := url.Values{}
	params.Set("category", "general")
	if plan.MinID != nil {
		params.Set("minId", fmt.Sprintf("%d", *plan.MinID))
	}

	var articles []finnhubArticle
	if err := p.client.get(ctx, "/news", params, &articles); err != nil {
		return Batch{}, err
	}

	// First poll has no id cursor; bound the window by publish time instead.
	var bootstrapCutoff *time.Time
	if plan.MinID == nil {
		cutoff := time.Now().UTC().Add(-p.spec.BootstrapLookback)
		bootstrapCutoff = &cutoff
	}

	batch := Batch{}
	for _, article := range articles {
		if plan.MinID != nil && article.ID <= *plan.MinID {
			continue
		}
		if article.ID > 0 && (batch.MaxID == nil || article.ID > *batch.MaxID) {
			id := article.ID
			batch.MaxID = &id
		}

		rec, ok := parseFinnhubArticle(article, entity.NewsTypeMacro)
		if !ok {
			batch.Dropped++
			continue
		}
		if bootstrapCutoff != nil && !rec.PublishedAt.After(*bootstrapCutoff) {
			continue
		}
		rec.Symbols = p.relatedMentions(article.Related)
		batch.News = append(batch.News, rec)
	}
	return batch, nil
}

// relatedMentions maps the comma-separated `related` field to watchlist
// symbols, falling back to the synthetic MARKET symbol.
func (p *FinnhubMacroNews) relatedMentions(related string) []SymbolMention {
	symbols := utils.ParseSymbols(related, p.symbols)
	if len(symbols) == 0 {
		return []SymbolMention{{Symbol: "MARKET"}}
	}
	mentions := make([]SymbolMention, 0, len(symbols))
	for _, s := range symbols {
		mentions = append(mentions, SymbolMention{Symbol: s})
	}
	return mentions
}

func parseFinnhubArticle(article finnhubArticle, newsType entity.NewsType) (NewsRecord, bool) {
	headline := strings.TrimSpace(article.Headline)
	rawURL := strings.TrimSpace(article.URL)
	if headline == "" || rawURL == "" || article.Datetime <= 0 {
		return NewsRecord{}, false
	}

	source := strings.TrimSpace(article.Source)
	if source == "" {
		source = "Finnhub"
	}

	return NewsRecord{
		URL:         rawURL,
		Headline:    headline,
		Content:     strings.TrimSpace(article.Summary),
		PublishedAt: time.Unix(article.Datetime, 0).UTC(),
		Source:      source,
		NewsType:    newsType,
	}, true
}

func upperSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
