package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"golang-market-ingestor/internal/entity"
	"golang-market-ingestor/internal/ingestor/config"
	"golang-market-ingestor/internal/ingestor/normalizer"
	"golang-market-ingestor/internal/ingestor/provider"
	"golang-market-ingestor/internal/ingestor/repository"
	"golang-market-ingestor/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, db.AutoMigrate(
		&entity.NewsItem{},
		&entity.NewsSymbol{},
		&entity.PriceObservation{},
		&entity.WatermarkCursor{},
	))
	return db
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "console")
	require.NoError(t, err)
	return log
}

type testEnv struct {
	db         *gorm.DB
	newsRepo   repository.NewsRepository
	priceRepo  repository.PriceRepository
	watermarks repository.WatermarkRepository
	ingest     IngestService
	logger     *logger.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger(t)
	newsRepo := repository.NewNewsRepository(db)
	priceRepo := repository.NewPriceRepository(db)
	return &testEnv{
		db:         db,
		newsRepo:   newsRepo,
		priceRepo:  priceRepo,
		watermarks: repository.NewWatermarkRepository(db),
		ingest:     NewIngestService(normalizer.NewURLNormalizer(nil), newsRepo, priceRepo, nil, log),
		logger:     log,
	}
}

func newsRecord(url, symbol string, publishedAt time.Time) provider.NewsRecord {
	return provider.NewsRecord{
		URL:         url,
		Headline:    "Apple Reports Strong Q1 Earnings",
		PublishedAt: publishedAt,
		Source:      "Reuters",
		NewsType:    entity.NewsTypeCompanySpecific,
		Symbols:     []provider.SymbolMention{{Symbol: symbol}},
	}
}

func TestIngestNewsValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	publishedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		mutate func(*provider.NewsRecord)
	}{
		{"empty headline", func(r *provider.NewsRecord) { r.Headline = "  " }},
		{"malformed url", func(r *provider.NewsRecord) { r.URL = "::not-a-url" }},
		{"unsupported scheme", func(r *provider.NewsRecord) { r.URL = "ftp://example.com/a" }},
		{"zero published_at", func(r *provider.NewsRecord) { r.PublishedAt = time.Time{} }},
		{"no symbols", func(r *provider.NewsRecord) { r.Symbols = nil }},
		{"blank symbol", func(r *provider.NewsRecord) { r.Symbols = []provider.SymbolMention{{Symbol: " "}} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := newsRecord("https://example.com/article", "AAPL", publishedAt)
			tc.mutate(&rec)
			_, err := env.ingest.IngestNews(ctx, rec)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&entity.NewsItem{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestIngestNewsCrossProviderCollision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	publishedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// Same article via two providers with different tracking decorations.
	first := newsRecord("https://reuters.com/markets/apple?utm_source=finnhub", "AAPL", publishedAt)
	second := newsRecord("https://reuters.com/markets/apple/?ref=polygon", "AAPL", publishedAt)
	second.Source = "Polygon"

	outcome, err := env.ingest.IngestNews(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, repository.OutcomeInserted, outcome)

	outcome, err = env.ingest.IngestNews(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, repository.OutcomeSkipped, outcome)

	// A new symbol mention on the same article only adds the link.
	third := newsRecord("https://reuters.com/markets/apple", "MSFT", publishedAt)
	outcome, err = env.ingest.IngestNews(ctx, third)
	require.NoError(t, err)
	assert.Equal(t, repository.OutcomeLinkedOnly, outcome)

	var items []entity.NewsItem
	require.NoError(t, env.db.Find(&items).Error)
	require.Len(t, items, 1)
	assert.Equal(t, "https://reuters.com/markets/apple", items[0].URL)
	assert.Equal(t, "Reuters", items[0].Source)
}

func TestIngestPriceNormalizesKeyAndSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A Tuesday during regular hours, with sub-second noise on the timestamp.
	ts := time.Date(2026, 3, 10, 15, 0, 0, 123456789, time.UTC)
	outcome, err := env.ingest.IngestPrice(ctx, provider.PriceRecord{
		Symbol:    " aapl ",
		Timestamp: ts,
		Price:     decimal.RequireFromString("187.45"),
	})
	require.NoError(t, err)
	assert.Equal(t, repository.OutcomeInserted, outcome)

	var obs []entity.PriceObservation
	require.NoError(t, env.db.Find(&obs).Error)
	require.Len(t, obs, 1)
	assert.Equal(t, "AAPL", obs[0].Symbol)
	assert.True(t, obs[0].Timestamp.Equal(ts.Truncate(time.Second)))
	assert.Equal(t, entity.SessionRegular, obs[0].Session)
	assert.Equal(t, "187.45", obs[0].Price.String())
}

func TestIngestPriceValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	_, err := env.ingest.IngestPrice(ctx, provider.PriceRecord{Symbol: "AAPL", Timestamp: ts, Price: decimal.Zero})
	assert.True(t, IsValidation(err))

	negative := int64(-1)
	_, err = env.ingest.IngestPrice(ctx, provider.PriceRecord{Symbol: "AAPL", Timestamp: ts, Price: decimal.NewFromInt(1), Volume: &negative})
	assert.True(t, IsValidation(err))

	_, err = env.ingest.IngestPrice(ctx, provider.PriceRecord{Symbol: "not a ticker", Timestamp: ts, Price: decimal.NewFromInt(1)})
	assert.True(t, IsValidation(err))
}

type recordingAnalysisRepo struct {
	last *entity.AnalysisResult
}

func (r *recordingAnalysisRepo) Upsert(ctx context.Context, result *entity.AnalysisResult) error {
	r.last = result
	return nil
}

func (r *recordingAnalysisRepo) FindBySymbol(ctx context.Context, symbol string) ([]entity.AnalysisResult, error) {
	return nil, nil
}

func (r *recordingAnalysisRepo) FindAll(ctx context.Context) ([]entity.AnalysisResult, error) {
	return nil, nil
}

func TestUpsertAnalysisResult(t *testing.T) {
	repo := &recordingAnalysisRepo{}
	svc := NewIngestService(normalizer.NewURLNormalizer(nil), nil, nil, repo, newTestLogger(t))
	ctx := context.Background()

	valid := func() *entity.AnalysisResult {
		return &entity.AnalysisResult{
			Symbol:          "aapl",
			AnalysisType:    entity.AnalysisTypeNews,
			ModelName:       "gemini-2.0-flash",
			Stance:          entity.StanceBull,
			ConfidenceScore: 0.8,
			Result:          []byte(`{"summary": "ok"}`),
		}
	}

	require.NoError(t, svc.UpsertAnalysisResult(ctx, valid()))
	require.NotNil(t, repo.last)
	assert.Equal(t, "AAPL", repo.last.Symbol)
	assert.False(t, repo.last.LastUpdated.IsZero())

	bad := valid()
	bad.Stance = "SIDEWAYS"
	assert.True(t, IsValidation(svc.UpsertAnalysisResult(ctx, bad)))

	bad = valid()
	bad.ConfidenceScore = 1.2
	assert.True(t, IsValidation(svc.UpsertAnalysisResult(ctx, bad)))

	bad = valid()
	bad.Result = []byte(`["not", "an", "object"]`)
	assert.True(t, IsValidation(svc.UpsertAnalysisResult(ctx, bad)))

	bad = valid()
	bad.AnalysisType = "tarot_reading"
	assert.True(t, IsValidation(svc.UpsertAnalysisResult(ctx, bad)))
}

// fakeAdapter serves a canned batch for orchestrator tests.
type fakeAdapter struct {
	name    string
	spec    provider.StreamSpec
	symbols []string
	batch   provider.Batch
	err     error
	onFetch func(plan provider.FetchPlan)
}

func (f *fakeAdapter) Name() string      { return f.name }
func (f *fakeAdapter) Spec() provider.StreamSpec { return f.spec }
func (f *fakeAdapter) Symbols() []string { return f.symbols }

func (f *fakeAdapter) FetchBatch(ctx context.Context, plan provider.FetchPlan) (provider.Batch, error) {
	if f.onFetch != nil {
		f.onFetch(plan)
	}
	if f.err != nil {
		return provider.Batch{}, f.err
	}
	return f.batch, nil
}

func globalNewsSpec() provider.StreamSpec {
	return provider.StreamSpec{
		Provider:          entity.ProviderFinnhub,
		Stream:            entity.StreamMacro,
		Scope:             entity.ScopeGlobal,
		Cursor:            provider.CursorTimestamp,
		BootstrapLookback: 48 * time.Hour,
	}
}

func newOrchestratorForTest(env *testEnv, adapters ...provider.Adapter) Orchestrator {
	return NewOrchestrator(config.Ingestor{MaxConcurrent: 2}, adapters, env.ingest, env.watermarks, env.newsRepo, nil, nil, nil, env.logger)
}

func TestRunCyclePersistsValidRecordsAndAdvances(t *testing.T) {
	env := newTestEnv(t)
	base := time.Now().UTC().Add(-1 * time.Hour).Truncate(time.Second)

	var batch provider.Batch
	for i := 0; i < 10; i++ {
		rec := newsRecord(fmt.Sprintf("https://example.com/article-%d", i), "AAPL", base.Add(time.Duration(i)*time.Minute))
		if i == 4 {
			rec.Headline = "" // one bad record must not sink the batch
		}
		batch.News = append(batch.News, rec)
	}

	adapter := &fakeAdapter{name: "fake-news", spec: globalNewsSpec(), batch: batch}
	summary := newOrchestratorForTest(env, adapter).RunCycle(context.Background())

	inserted, _, _, dropped, failed := summary.Totals()
	assert.Equal(t, 9, inserted)
	assert.Equal(t, 1, dropped)
	assert.Zero(t, failed)
	assert.Equal(t, []string{"AAPL"}, summary.NewDataSymbols)

	key := repository.CursorKey{Provider: entity.ProviderFinnhub, Stream: entity.StreamMacro, Scope: entity.ScopeGlobal}
	cursor, err := env.watermarks.Get(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	require.NotNil(t, cursor.LastSeenAt)
	assert.True(t, cursor.LastSeenAt.Equal(base.Add(9*time.Minute)))
}

func TestRunCycleUsesBootstrapLookbackThenStoredCursor(t *testing.T) {
	env := newTestEnv(t)

	var plans []provider.FetchPlan
	adapter := &fakeAdapter{
		name: "fake-news",
		spec: globalNewsSpec(),
		onFetch: func(plan provider.FetchPlan) {
			plans = append(plans, plan)
		},
	}
	adapter.batch.News = append(adapter.batch.News,
		newsRecord("https://example.com/one", "AAPL", time.Now().UTC().Add(-30*time.Minute).Truncate(time.Second)))

	orch := newOrchestratorForTest(env, adapter)
	orch.RunCycle(context.Background())
	orch.RunCycle(context.Background())

	require.Len(t, plans, 2)
	require.NotNil(t, plans[0].Since)
	assert.WithinDuration(t, time.Now().UTC().Add(-48*time.Hour), *plans[0].Since, 5*time.Second)

	// Second cycle resumes from the stored cursor, not the lookback.
	require.NotNil(t, plans[1].Since)
	assert.WithinDuration(t, time.Now().UTC().Add(-30*time.Minute), *plans[1].Since, 5*time.Second)
}

// failingNewsRepo fails every Ingest after the first n calls.
type failingNewsRepo struct {
	repository.NewsRepository
	remaining int
}

func (f *failingNewsRepo) Ingest(ctx context.Context, item *entity.NewsItem, mentions []entity.NewsSymbol) (repository.Outcome, error) {
	if f.remaining <= 0 {
		return "", errors.New("disk full")
	}
	f.remaining--
	return f.NewsRepository.Ingest(ctx, item, mentions)
}

func TestRunCycleMidBatchFailureLeavesWatermarkAlone(t *testing.T) {
	env := newTestEnv(t)
	failing := &failingNewsRepo{NewsRepository: env.newsRepo, remaining: 3}
	ingest := NewIngestService(normalizer.NewURLNormalizer(nil), failing, env.priceRepo, nil, env.logger)

	base := time.Now().UTC().Add(-1 * time.Hour).Truncate(time.Second)
	var batch provider.Batch
	for i := 0; i < 6; i++ {
		batch.News = append(batch.News,
			newsRecord(fmt.Sprintf("https://example.com/article-%d", i), "AAPL", base.Add(time.Duration(i)*time.Minute)))
	}
	adapter := &fakeAdapter{name: "fake-news", spec: globalNewsSpec(), batch: batch}

	orch := NewOrchestrator(config.Ingestor{}, []provider.Adapter{adapter}, ingest, env.watermarks, env.newsRepo, nil, nil, nil, env.logger)
	summary := orch.RunCycle(context.Background())

	require.Len(t, summary.Identities, 1)
	require.Error(t, summary.Identities[0].Err)
	assert.False(t, summary.Identities[0].Advanced)

	// Records committed before the failure stay durable.
	var count int64
	require.NoError(t, env.db.Model(&entity.NewsItem{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	key := repository.CursorKey{Provider: entity.ProviderFinnhub, Stream: entity.StreamMacro, Scope: entity.ScopeGlobal}
	cursor, err := env.watermarks.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestRunCycleCancellationLeavesWatermarkAlone(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	base := time.Now().UTC().Add(-1 * time.Hour).Truncate(time.Second)
	adapter := &fakeAdapter{
		name: "fake-news",
		spec: globalNewsSpec(),
		onFetch: func(provider.FetchPlan) {
			cancel() // cancel arrives mid-batch, after the fetch
		},
	}
	adapter.batch.News = append(adapter.batch.News, newsRecord("https://example.com/one", "AAPL", base))

	summary := newOrchestratorForTest(env, adapter).RunCycle(ctx)
	require.Len(t, summary.Identities, 1)
	require.ErrorIs(t, summary.Identities[0].Err, context.Canceled)

	key := repository.CursorKey{Provider: entity.ProviderFinnhub, Stream: entity.StreamMacro, Scope: entity.ScopeGlobal}
	cursor, err := env.watermarks.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestRunCycleIsolatesFailingIdentity(t *testing.T) {
	env := newTestEnv(t)
	base := time.Now().UTC().Add(-1 * time.Hour).Truncate(time.Second)

	broken := &fakeAdapter{
		name: "broken",
		spec: globalNewsSpec(),
		err:  &provider.TransientError{Err: errors.New("rate limited")},
	}

	healthySpec := globalNewsSpec()
	healthySpec.Provider = entity.ProviderPolygon
	healthy := &fakeAdapter{name: "healthy", spec: healthySpec}
	healthy.batch.News = append(healthy.batch.News, newsRecord("https://example.com/ok", "MSFT", base))

	summary := newOrchestratorForTest(env, broken, healthy).RunCycle(context.Background())
	require.Len(t, summary.Identities, 2)

	byName := map[string]IdentityResult{}
	for _, r := range summary.Identities {
		byName[r.Identity] = r
	}

	brokenKey := repository.CursorKey{Provider: entity.ProviderFinnhub, Stream: entity.StreamMacro, Scope: entity.ScopeGlobal}
	healthyKey := repository.CursorKey{Provider: entity.ProviderPolygon, Stream: entity.StreamMacro, Scope: entity.ScopeGlobal}

	assert.Error(t, byName[brokenKey.String()].Err)
	assert.True(t, provider.IsTransient(byName[brokenKey.String()].Err))
	assert.NoError(t, byName[healthyKey.String()].Err)
	assert.Equal(t, 1, byName[healthyKey.String()].Inserted)

	cursor, err := env.watermarks.Get(context.Background(), brokenKey)
	require.NoError(t, err)
	assert.Nil(t, cursor)

	cursor, err = env.watermarks.Get(context.Background(), healthyKey)
	require.NoError(t, err)
	require.NotNil(t, cursor)
}

func TestRunCycleAdvancesIDCursor(t *testing.T) {
	env := newTestEnv(t)

	spec := globalNewsSpec()
	spec.Cursor = provider.CursorID
	maxID := int64(4200)
	adapter := &fakeAdapter{name: "fake-macro", spec: spec, batch: provider.Batch{MaxID: &maxID}}

	newOrchestratorForTest(env, adapter).RunCycle(context.Background())

	key := repository.CursorKey{Provider: entity.ProviderFinnhub, Stream: entity.StreamMacro, Scope: entity.ScopeGlobal}
	cursor, err := env.watermarks.Get(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	require.NotNil(t, cursor.LastSeenID)
	assert.Equal(t, int64(4200), *cursor.LastSeenID)
}

func TestRunCycleClampsFuturePositions(t *testing.T) {
	env := newTestEnv(t)

	rec := newsRecord("https://example.com/from-the-future", "AAPL", time.Now().UTC().Add(24*time.Hour).Truncate(time.Second))
	adapter := &fakeAdapter{name: "fake-news", spec: globalNewsSpec()}
	adapter.batch.News = append(adapter.batch.News, rec)

	newOrchestratorForTest(env, adapter).RunCycle(context.Background())

	key := repository.CursorKey{Provider: entity.ProviderFinnhub, Stream: entity.StreamMacro, Scope: entity.ScopeGlobal}
	cursor, err := env.watermarks.Get(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	require.NotNil(t, cursor.LastSeenAt)
	assert.True(t, cursor.LastSeenAt.Before(time.Now().UTC().Add(2*time.Minute)))
}

func TestRunCyclePerSymbolIdentities(t *testing.T) {
	env := newTestEnv(t)

	spec := provider.StreamSpec{
		Provider:          entity.ProviderFinnhub,
		Stream:            entity.StreamCompany,
		Scope:             entity.ScopeSymbol,
		Cursor:            provider.CursorTimestamp,
		BootstrapLookback: 24 * time.Hour,
	}
	// Identities fan out concurrently, so guard the captured plans.
	var mu sync.Mutex
	var plans []provider.FetchPlan
	adapter := &fakeAdapter{
		name:    "fake-company",
		spec:    spec,
		symbols: []string{"AAPL", "MSFT"},
		onFetch: func(plan provider.FetchPlan) {
			mu.Lock()
			plans = append(plans, plan)
			mu.Unlock()
		},
	}

	summary := newOrchestratorForTest(env, adapter).RunCycle(context.Background())
	assert.Len(t, summary.Identities, 2)
	require.Len(t, plans, 2)

	polled := map[string]bool{}
	for _, plan := range plans {
		polled[plan.Key.Symbol] = true
	}
	assert.True(t, polled["AAPL"])
	assert.True(t, polled["MSFT"])
}
