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
)

// polygonArticle is Polygon's raw /v2/reference/news payload shape.
type polygonArticle struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	ArticleURL   string   `json:"article_url"`
	PublishedUTC string   `json:"published_utc"`
	Description  string   `json:"description"`
	Tickers      []string `json:"tickers"`
	Publisher    struct {
		Name string `json:"name"`
	} `json:"publisher"`
}

type polygonNewsResponse struct {
	Results []polygonArticle `json:"results"`
}

// PolygonNews fetches ticker-tagged news from /v2/reference/news in a single
// global call per cycle, filtered server-side by the publish-time cursor.
// Articles are mapped to watchlist symbols via their ticker tags; anything
// tagged with no watchlist symbol is dropped.
type PolygonNews struct {
	client    *restClient
	symbols   []string
	watchlist map[string]struct{}
	spec      StreamSpec
	logger    *logger.Logger
}

// NewPolygonNews creates the Polygon news adapter for a watchlist.
func NewPolygonNews(cfg config.Polygon, client *restClient, symbols []string, log *logger.Logger) *PolygonNews {
	firstRunDays := cfg.NewsFirstRunDays
	if firstRunDays <= 0 {
		firstRunDays = 2
	}
	upper := upperSymbols(symbols)
	watchlist := make(map[string]struct{}, len(upper))
	for _, s := range upper {
		watchlist[s] = struct{}{}
	}
	return &PolygonNews{
		client:    client,
		symbols:   upper,
		watchlist: watchlist,
		spec: StreamSpec{
			Provider:          entity.ProviderPolygon,
			Stream:            entity.StreamCompany,
			Scope:             entity.ScopeGlobal,
			Cursor:            CursorTimestamp,
			BootstrapLookback: time.Duration(firstRunDays) * 24 * time.Hour,
		},
		logger: log,
	}
}

func (p *PolygonNews) Name() string      { return "polygon-news" }
func (p *PolygonNews) Spec() StreamSpec  { return p.spec }
func (p *PolygonNews) Symbols() []string { return nil }

func (p *PolygonNews) FetchBatch(ctx context.Context, plan FetchPlan) (Batch, error) {
	if plan.Since == nil {
		return Batch{}, fmt.Errorf("polygon news requires a timestamp cursor")
	}

	params := url.Values{}
	params.Set("published_utc.gt", plan.Since.UTC().Format(time.RFC3339))
	params.Set("order", "asc")
	params.Set("sort", "published_utc")
	params.Set("limit", "100")

	var resp polygonNewsResponse
	if err := p.client.get(ctx, "/v2/reference/news", params, &resp); err != nil {
		return Batch{}, err
	}

	batch := Batch{}
	for _, article := range resp.Results {
		rec, ok := p.parseArticle(article)
		if !ok {
			batch.Dropped++
			continue
		}
		if !rec.PublishedAt.After(*plan.Since) {
			continue
		}
		mentions := p.watchlistMentions(article.Tickers)
		if len(mentions) == 0 {
			continue
		}
		rec.Symbols = mentions
		batch.News = append(batch.News, rec)
	}
	return batch, nil
}

func (p *PolygonNews) parseArticle(article polygonArticle) (NewsRecord, bool) {
	title := strings.TrimSpace(article.Title)
	rawURL := strings.TrimSpace(article.ArticleURL)
	if title == "" || rawURL == "" {
		return NewsRecord{}, false
	}
	publishedAt, err := time.Parse(time.RFC3339, article.PublishedUTC)
	if err != nil {
		return NewsRecord{}, false
	}

	source := strings.TrimSpace(article.Publisher.Name)
	if source == "" {
		source = "Polygon"
	}

	return NewsRecord{
		URL:         rawURL,
		Headline:    title,
		Content:     strings.TrimSpace(article.Description),
		PublishedAt: publishedAt.UTC(),
		Source:      source,
		NewsType:    entity.NewsTypeCompanySpecific,
	}, true
}

// watchlistMentions keeps only the ticker tags on the watchlist. Polygon
// tags articles generously; tags the pipeline does not track are noise.
func (p *PolygonNews) watchlistMentions(tickers []string) []SymbolMention {
	var mentions []SymbolMention
	seen := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if _, ok := p.watchlist[t]; !ok {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		mentions = append(mentions, SymbolMention{Symbol: t})
	}
	return mentions
}
