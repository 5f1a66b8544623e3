package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/patrickmn/go-cache"

	"golang-market-ingestor/internal/entity"
	"golang-market-ingestor/internal/ingestor/config"
	"golang-market-ingestor/pkg/logger"
)

const googleNewsRSSBase = "https://news.google.com/rss/search"

// RSSNews fetches per-symbol headlines from the Google News RSS feed. The
// feed has no cursor of its own, so the publish-time cursor plus a short
// lived seen cache keep repeat polls from re-emitting the same items.
type RSSNews struct {
	parser  *gofeed.Parser
	symbols []string
	spec    StreamSpec
	seen    *cache.Cache
	logger  *logger.Logger
}

// NewRSSNews creates the RSS adapter for a watchlist.
func NewRSSNews(cfg config.RSS, symbols []string, log *logger.Logger) *RSSNews {
	firstRunDays := cfg.NewsFirstRunDays
	if firstRunDays <= 0 {
		firstRunDays = 1
	}
	parser := gofeed.NewParser()
	parser.UserAgent = "market-ingestor/1.0"
	if cfg.RequestTimeout > 0 {
		parser.Client = clientWithTimeout(cfg.RequestTimeout)
	}
	return &RSSNews{
		parser:  parser,
		symbols: upperSymbols(symbols),
		spec: StreamSpec{
			Provider:          entity.ProviderRSS,
			Stream:            entity.StreamCompany,
			Scope:             entity.ScopeSymbol,
			Cursor:            CursorTimestamp,
			BootstrapLookback: time.Duration(firstRunDays) * 24 * time.Hour,
		},
		seen:   cache.New(6*time.Hour, 30*time.Minute),
		logger: log,
	}
}

func (p *RSSNews) Name() string      { return "rss-news" }
func (p *RSSNews) Spec() StreamSpec  { return p.spec }
func (p *RSSNews) Symbols() []string { return p.symbols }

func (p *RSSNews) FetchBatch(ctx context.Context, plan FetchPlan) (Batch, error) {
	return p.fetchFrom(ctx, p.feedURL(plan.Key.Symbol), plan)
}

func (p *RSSNews) fetchFrom(ctx context.Context, feedURL string, plan FetchPlan) (Batch, error) {
	if plan.Since == nil {
		return Batch{}, fmt.Errorf("rss news requires a timestamp cursor")
	}
	symbol := plan.Key.Symbol

	feed, err := p.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return Batch{}, &TransientError{Err: fmt.Errorf("fetch rss feed for %s: %w", symbol, err)}
	}

	batch := Batch{}
	for _, item := range feed.Items {
		rec, ok := p.parseItem(item, symbol)
		if !ok {
			batch.Dropped++
			continue
		}
		if !rec.PublishedAt.After(*plan.Since) {
			continue
		}
		if _, dup := p.seen.Get(rec.URL); dup {
			continue
		}
		p.seen.SetDefault(rec.URL, struct{}{})
		batch.News = append(batch.News, rec)
	}
	return batch, nil
}

func (p *RSSNews) feedURL(symbol string) string {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("%s stock", symbol))
	params.Set("hl", "en-US")
	params.Set("gl", "US")
	params.Set("ceid", "US:en")
	return fmt.Sprintf("%s?%s", googleNewsRSSBase, params.Encode())
}

func (p *RSSNews) parseItem(item *gofeed.Item, symbol string) (NewsRecord, bool) {
	if item == nil || item.PublishedParsed == nil {
		return NewsRecord{}, false
	}
	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if title == "" || link == "" {
		return NewsRecord{}, false
	}

	source := "Google News"
	if parsed, err := url.Parse(link); err == nil && parsed.Hostname() != "" {
		source = parsed.Hostname()
	}

	return NewsRecord{
		URL:         link,
		Headline:    title,
		PublishedAt: item.PublishedParsed.UTC(),
		Source:      source,
		NewsType:    entity.NewsTypeCompanySpecific,
		Symbols:     []SymbolMention{{Symbol: symbol}},
	}, true
}
