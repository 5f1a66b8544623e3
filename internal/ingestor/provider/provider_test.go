package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-market-ingestor/internal/entity"
	"golang-market-ingestor/internal/ingestor/config"
	"golang-market-ingestor/internal/ingestor/repository"
	"golang-market-ingestor/pkg/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "console")
	require.NoError(t, err)
	return log
}

func finnhubConfig(baseURL string) config.Finnhub {
	return config.Finnhub{
		APIKey:              "test-key",
		BaseURL:             baseURL,
		MaxRequestPerMinute: 6000,
		RequestTimeout:      5 * time.Second,
	}
}

func TestFinnhubCompanyNewsFetchBatch(t *testing.T) {
	cursor := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/company-news", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("token"))
		assert.Equal(t, "2026-03-10", r.URL.Query().Get("from"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 1, "headline": "Old article", "url": "https://example.com/old", "datetime": 1773143900, "source": "Reuters"},
			{"id": 2, "headline": "New article", "url": "https://example.com/new", "datetime": 1773144100, "source": "Reuters", "summary": "body"},
			{"id": 3, "headline": "", "url": "https://example.com/broken", "datetime": 1773144200}
		]`))
	}))
	defer server.Close()

	adapter := NewFinnhubCompanyNews(finnhubConfig(server.URL), NewFinnhubClient(finnhubConfig(server.URL), newTestLogger(t)), []string{"aapl"}, newTestLogger(t))

	assert.Equal(t, entity.ProviderFinnhub, adapter.Spec().Provider)
	assert.Equal(t, entity.StreamCompany, adapter.Spec().Stream)
	assert.Equal(t, entity.ScopeSymbol, adapter.Spec().Scope)
	assert.Equal(t, []string{"AAPL"}, adapter.Symbols())

	batch, err := adapter.FetchBatch(context.Background(), FetchPlan{
		Key:   repository.CursorKey{Provider: entity.ProviderFinnhub, Stream: entity.StreamCompany, Scope: entity.ScopeSymbol, Symbol: "AAPL"},
		Since: &cursor,
	})
	require.NoError(t, err)

	// Cursor sits at unix 1773144000; only record 2 is strictly newer.
	require.Len(t, batch.News, 1)
	assert.Equal(t, "https://example.com/new", batch.News[0].URL)
	assert.Equal(t, "New article", batch.News[0].Headline)
	assert.Equal(t, "body", batch.News[0].Content)
	assert.Equal(t, entity.NewsTypeCompanySpecific, batch.News[0].NewsType)
	require.Len(t, batch.News[0].Symbols, 1)
	assert.Equal(t, "AAPL", batch.News[0].Symbols[0].Symbol)
	require.NotNil(t, batch.News[0].Symbols[0].IsImportant)
	assert.True(t, *batch.News[0].Symbols[0].IsImportant)
	assert.Equal(t, 1, batch.Dropped)
}

func TestFinnhubMacroNewsFetchBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/news", r.URL.Path)
		assert.Equal(t, "general", r.URL.Query().Get("category"))
		assert.Equal(t, "100", r.URL.Query().Get("minId"))

		now := time.Now().UTC().Unix()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 100, "headline": "Already seen", "url": "https://example.com/seen", "datetime": ` + timestampJSON(now-300) + `},
			{"id": 105, "headline": "Fed statement", "url": "https://example.com/fed", "datetime": ` + timestampJSON(now-200) + `, "related": "AAPL,XYZQ"},
			{"id": 110, "headline": "Broad selloff", "url": "https://example.com/selloff", "datetime": ` + timestampJSON(now-100) + `, "related": ""}
		]`))
	}))
	defer server.Close()

	adapter := NewFinnhubMacroNews(finnhubConfig(server.URL), NewFinnhubClient(finnhubConfig(server.URL), newTestLogger(t)), []string{"AAPL", "MSFT"}, newTestLogger(t))
	assert.Nil(t, adapter.Symbols())

	minID := int64(100)
	batch, err := adapter.FetchBatch(context.Background(), FetchPlan{
		Key:   repository.CursorKey{Provider: entity.ProviderFinnhub, Stream: entity.StreamMacro, Scope: entity.ScopeGlobal},
		MinID: &minID,
	})
	require.NoError(t, err)

	require.Len(t, batch.News, 2)
	require.NotNil(t, batch.MaxID)
	assert.Equal(t, int64(110), *batch.MaxID)

	// Related tickers are filtered to the watchlist.
	assert.Equal(t, []SymbolMention{{Symbol: "AAPL"}}, batch.News[0].Symbols)
	// Articles matching nothing fall back to the synthetic market symbol.
	assert.Equal(t, []SymbolMention{{Symbol: "MARKET"}}, batch.News[1].Symbols)
	assert.Equal(t, entity.NewsTypeMacro, batch.News[0].NewsType)
}

func TestFinnhubPricesFetchBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"c": 187.45, "t": 1773144100}`))
	}))
	defer server.Close()

	adapter := NewFinnhubPrices(finnhubConfig(server.URL), NewFinnhubClient(finnhubConfig(server.URL), newTestLogger(t)), []string{"AAPL"}, newTestLogger(t))

	cursor := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	batch, err := adapter.FetchBatch(context.Background(), FetchPlan{
		Key:   repository.CursorKey{Provider: entity.ProviderFinnhub, Stream: entity.StreamPrices, Scope: entity.ScopeSymbol, Symbol: "AAPL"},
		Since: &cursor,
	})
	require.NoError(t, err)

	require.Len(t, batch.Prices, 1)
	assert.Equal(t, "AAPL", batch.Prices[0].Symbol)
	assert.Equal(t, "187.45", batch.Prices[0].Price.String())
	assert.Equal(t, time.Unix(1773144100, 0).UTC(), batch.Prices[0].Timestamp)

	// Quote timestamp at the cursor means nothing new; no record, no drop.
	atCursor := time.Unix(1773144100, 0).UTC()
	batch, err = adapter.FetchBatch(context.Background(), FetchPlan{
		Key:   repository.CursorKey{Provider: entity.ProviderFinnhub, Stream: entity.StreamPrices, Scope: entity.ScopeSymbol, Symbol: "AAPL"},
		Since: &atCursor,
	})
	require.NoError(t, err)
	assert.Empty(t, batch.Prices)
	assert.Zero(t, batch.Dropped)
}

func TestFinnhubPricesDropsInvalidQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"c": 0, "t": 0}`))
	}))
	defer server.Close()

	adapter := NewFinnhubPrices(finnhubConfig(server.URL), NewFinnhubClient(finnhubConfig(server.URL), newTestLogger(t)), []string{"AAPL"}, newTestLogger(t))

	cursor := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	batch, err := adapter.FetchBatch(context.Background(), FetchPlan{
		Key:   repository.CursorKey{Provider: entity.ProviderFinnhub, Stream: entity.StreamPrices, Scope: entity.ScopeSymbol, Symbol: "AAPL"},
		Since: &cursor,
	})
	require.NoError(t, err)
	assert.Empty(t, batch.Prices)
	assert.Equal(t, 1, batch.Dropped)
}

func TestPolygonNewsFetchBatch(t *testing.T) {
	cursor := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/reference/news", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		assert.Equal(t, "2026-03-10T12:00:00Z", r.URL.Query().Get("published_utc.gt"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [
			{"id": "a", "title": "Apple ships", "article_url": "https://example.com/apple", "published_utc": "2026-03-10T12:05:00Z", "tickers": ["AAPL", "aapl", "TSLA"], "publisher": {"name": "Benzinga"}},
			{"id": "b", "title": "Nothing tracked", "article_url": "https://example.com/other", "published_utc": "2026-03-10T12:06:00Z", "tickers": ["XYZQ"]},
			{"id": "c", "title": "Bad timestamp", "article_url": "https://example.com/bad", "published_utc": "not-a-time", "tickers": ["AAPL"]}
		]}`))
	}))
	defer server.Close()

	cfg := config.Polygon{APIKey: "test-key", BaseURL: server.URL, MaxRequestPerMinute: 6000, RequestTimeout: 5 * time.Second}
	adapter := NewPolygonNews(cfg, NewPolygonClient(cfg, newTestLogger(t)), []string{"AAPL", "MSFT"}, newTestLogger(t))

	assert.Equal(t, entity.ScopeGlobal, adapter.Spec().Scope)

	batch, err := adapter.FetchBatch(context.Background(), FetchPlan{
		Key:   repository.CursorKey{Provider: entity.ProviderPolygon, Stream: entity.StreamCompany, Scope: entity.ScopeGlobal},
		Since: &cursor,
	})
	require.NoError(t, err)

	// Off-watchlist article is silently skipped, malformed one is dropped.
	require.Len(t, batch.News, 1)
	assert.Equal(t, "https://example.com/apple", batch.News[0].URL)
	assert.Equal(t, "Benzinga", batch.News[0].Source)
	assert.Equal(t, []SymbolMention{{Symbol: "AAPL"}}, batch.News[0].Symbols)
	assert.Equal(t, 1, batch.Dropped)
}

func TestRSSNewsFetchBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
	<title>Search results</title>
	<item>
		<title>Apple event recap</title>
		<link>https://example.com/recap</link>
		<pubDate>Tue, 10 Mar 2026 12:05:00 GMT</pubDate>
	</item>
	<item>
		<title>Stale item</title>
		<link>https://example.com/stale</link>
		<pubDate>Tue, 10 Mar 2026 11:00:00 GMT</pubDate>
	</item>
</channel></rss>`))
	}))
	defer server.Close()

	adapter := NewRSSNews(config.RSS{Enabled: true, RequestTimeout: 5 * time.Second}, []string{"AAPL"}, newTestLogger(t))

	cursor := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	plan := FetchPlan{
		Key:   repository.CursorKey{Provider: entity.ProviderRSS, Stream: entity.StreamCompany, Scope: entity.ScopeSymbol, Symbol: "AAPL"},
		Since: &cursor,
	}

	batch, err := adapter.fetchFrom(context.Background(), server.URL, plan)
	require.NoError(t, err)
	require.Len(t, batch.News, 1)
	assert.Equal(t, "https://example.com/recap", batch.News[0].URL)
	assert.Equal(t, "Apple event recap", batch.News[0].Headline)
	assert.Equal(t, "example.com", batch.News[0].Source)
	assert.Equal(t, []SymbolMention{{Symbol: "AAPL"}}, batch.News[0].Symbols)

	// The seen cache stops the same item reappearing on the next poll.
	batch, err = adapter.fetchFrom(context.Background(), server.URL, plan)
	require.NoError(t, err)
	assert.Empty(t, batch.News)
}

func TestRESTClientRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := newRESTClient("test", server.URL, "token", "k", 6000, 5*time.Second, newTestLogger(t))

	var out struct {
		OK bool `json:"ok"`
	}
	err := client.get(context.Background(), "/thing", nil, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRESTClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := newRESTClient("test", server.URL, "token", "k", 6000, 5*time.Second, newTestLogger(t))

	var out map[string]any
	err := client.get(context.Background(), "/thing", nil, &out)
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRESTClientExhaustedRetriesAreTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newRESTClient("test", server.URL, "token", "k", 6000, 5*time.Second, newTestLogger(t))

	var out map[string]any
	err := client.get(context.Background(), "/thing", nil, &out)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func timestampJSON(v int64) string {
	return strconv.FormatInt(v, 10)
}
