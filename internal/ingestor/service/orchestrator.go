package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"golang-market-ingestor/internal/entity"
	"golang-market-ingestor/internal/ingestor/config"
	"golang-market-ingestor/internal/ingestor/provider"
	"golang-market-ingestor/internal/ingestor/repository"
	"golang-market-ingestor/internal/ingestor/scraper"
	"golang-market-ingestor/pkg/common"
	"golang-market-ingestor/pkg/logger"
	"golang-market-ingestor/pkg/telegram"
	"golang-market-ingestor/pkg/utils"
)

// futureClampWindow bounds how far ahead of wall-clock time a provider
// timestamp may push a cursor. Anything further is treated as clock skew.
const futureClampWindow = 60 * time.Second

const defaultMaxConcurrent = 5

// IdentityResult is the outcome of one (provider, stream, scope, symbol)
// poll within a cycle.
type IdentityResult struct {
	Identity string
	Inserted int
	Linked   int
	Skipped  int
	Dropped  int
	Advanced bool
	Err      error
}

// CycleSummary aggregates a full poll cycle across all identities.
type CycleSummary struct {
	StartedAt  time.Time
	Duration   time.Duration
	Identities []IdentityResult
	// NewDataSymbols lists symbols that gained news or prices this cycle,
	// sorted; these are the ones worth re-analyzing.
	NewDataSymbols []string
}

// Totals sums the per-identity counters.
func (s *CycleSummary) Totals() (inserted, linked, skipped, dropped, failed int) {
	for _, r := range s.Identities {
		inserted += r.Inserted
		linked += r.Linked
		skipped += r.Skipped
		dropped += r.Dropped
		if r.Err != nil {
			failed++
		}
	}
	return
}

// Orchestrator runs poll cycles: one fetch plan per identity, bounded
// fan-out, independent per-record persistence, watermark advancement only
// after an identity's batch fully persisted.
type Orchestrator interface {
	Start(ctx context.Context) error
	RunCycle(ctx context.Context) *CycleSummary
}

// NewOrchestrator creates a new ingestion orchestrator. The notifier, redis
// client, and content scraper are optional; nil disables the feature.
func NewOrchestrator(
	cfg config.Ingestor,
	adapters []provider.Adapter,
	ingest IngestService,
	watermarks repository.WatermarkRepository,
	newsRepo repository.NewsRepository,
	contentScraper *scraper.ContentScraper,
	redisClient *redis.Client,
	notifier telegram.Notifier,
	log *logger.Logger,
) Orchestrator {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &orchestrator{
		cfg:           cfg,
		adapters:      adapters,
		ingest:        ingest,
		watermarks:    watermarks,
		newsRepo:      newsRepo,
		scraper:       contentScraper,
		redisClient:   redisClient,
		notifier:      notifier,
		maxConcurrent: maxConcurrent,
		logger:        log,
	}
}

type orchestrator struct {
	cfg           config.Ingestor
	adapters      []provider.Adapter
	ingest        IngestService
	watermarks    repository.WatermarkRepository
	newsRepo      repository.NewsRepository
	scraper       *scraper.ContentScraper
	redisClient   *redis.Client
	notifier      telegram.Notifier
	maxConcurrent int
	logger        *logger.Logger
}

type identity struct {
	adapter provider.Adapter
	key     repository.CursorKey
}

// Start schedules poll cycles on the configured cron expression and blocks
// until the context is cancelled.
func (o *orchestrator) Start(ctx context.Context) error {
	schedule := o.cfg.CronSchedule
	if schedule == "" {
		schedule = "*/5 * * * *"
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		cycleCtx := ctx
		var cancel context.CancelFunc
		if o.cfg.CycleTimeout > 0 {
			cycleCtx, cancel = context.WithTimeout(ctx, o.cfg.CycleTimeout)
			defer cancel()
		}
		o.RunCycle(cycleCtx)
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	o.logger.Info("ingestion orchestrator started", logger.StringField("schedule", schedule))
	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	<-stopCtx.Done()
	o.logger.Info("ingestion orchestrator stopped")
	return nil
}

// RunCycle executes one poll cycle over every identity. A failing identity
// never blocks the others; the summary records each outcome.
func (o *orchestrator) RunCycle(ctx context.Context) *CycleSummary {
	started := utils.TimeNowUTC()
	identities := o.enumerateIdentities()

	results := make([]IdentityResult, len(identities))
	newData := make(map[string]struct{})

	var wg sync.WaitGroup
	var mu sync.Mutex
	semaphore := make(chan struct{}, o.maxConcurrent)

	for i, id := range identities {
		if !utils.ShouldContinue(ctx, o.logger) {
			break
		}
		i, id := i, id
		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			result, symbols := o.runIdentity(ctx, id)
			mu.Lock()
			results[i] = result
			for _, s := range symbols {
				newData[s] = struct{}{}
			}
			mu.Unlock()
		})
	}
	wg.Wait()

	summary := &CycleSummary{
		StartedAt:  started,
		Duration:   time.Since(started),
		Identities: results,
	}
	for s := range newData {
		summary.NewDataSymbols = append(summary.NewDataSymbols, s)
	}
	sort.Strings(summary.NewDataSymbols)

	o.logSummary(summary)
	o.publishTriggers(ctx, summary.NewDataSymbols)
	o.notify(summary)
	o.prune(ctx)
	return summary
}

func (o *orchestrator) enumerateIdentities() []identity {
	var out []identity
	for _, adapter := range o.adapters {
		spec := adapter.Spec()
		base := repository.CursorKey{Provider: spec.Provider, Stream: spec.Stream, Scope: spec.Scope}
		if spec.Scope == entity.ScopeSymbol {
			for _, symbol := range adapter.Symbols() {
				key := base
				key.Symbol = symbol
				out = append(out, identity{adapter: adapter, key: key})
			}
			continue
		}
		out = append(out, identity{adapter: adapter, key: base})
	}
	return out
}

// runIdentity polls one identity: plan from the stored cursor, fetch,
// persist each record independently, then advance the watermark to the
// highest persisted position. Fetch failure or a persistence failure
// mid-batch leaves the watermark untouched.
func (o *orchestrator) runIdentity(ctx context.Context, id identity) (IdentityResult, []string) {
	result := IdentityResult{Identity: id.key.String()}
	spec := id.adapter.Spec()

	plan, err := o.buildPlan(ctx, id.key, spec)
	if err != nil {
		result.Err = fmt.Errorf("load cursor: %w", err)
		return result, nil
	}

	batch, err := id.adapter.FetchBatch(ctx, plan)
	if err != nil {
		if provider.IsTransient(err) {
			o.logger.Warn("provider batch abandoned",
				logger.StringField("identity", result.Identity),
				logger.ErrorField(err))
		}
		result.Err = err
		return result, nil
	}
	result.Dropped += batch.Dropped

	var maxPosition *time.Time
	var symbols []string
	advance := func(ts time.Time) {
		if maxPosition == nil || ts.After(*maxPosition) {
			t := ts
			maxPosition = &t
		}
	}

	for _, rec := range batch.News {
		if ctx.Err() != nil {
			result.Err = ctx.Err()
			return result, symbols
		}
		outcome, err := o.ingest.IngestNews(ctx, rec)
		if IsValidation(err) {
			result.Dropped++
			o.logger.Warn("news record dropped",
				logger.StringField("identity", result.Identity),
				logger.StringField("url", rec.URL),
				logger.ErrorField(err))
			continue
		}
		if err != nil {
			result.Err = fmt.Errorf("persist news %s: %w", rec.URL, err)
			return result, symbols
		}
		switch outcome {
		case repository.OutcomeInserted:
			result.Inserted++
			symbols = appendMentions(symbols, rec.Symbols)
			o.backfill(ctx, rec)
		case repository.OutcomeLinkedOnly:
			result.Linked++
			symbols = appendMentions(symbols, rec.Symbols)
		default:
			result.Skipped++
		}
		advance(rec.PublishedAt)
	}

	for _, rec := range batch.Prices {
		if ctx.Err() != nil {
			result.Err = ctx.Err()
			return result, symbols
		}
		outcome, err := o.ingest.IngestPrice(ctx, rec)
		if IsValidation(err) {
			result.Dropped++
			o.logger.Warn("price record dropped",
				logger.StringField("identity", result.Identity),
				logger.StringField("symbol", rec.Symbol),
				logger.ErrorField(err))
			continue
		}
		if err != nil {
			result.Err = fmt.Errorf("persist price %s: %w", rec.Symbol, err)
			return result, symbols
		}
		if outcome == repository.OutcomeInserted {
			result.Inserted++
			symbols = append(symbols, strings.ToUpper(strings.TrimSpace(rec.Symbol)))
		} else {
			result.Skipped++
		}
		advance(rec.Timestamp)
	}

	result.Advanced, result.Err = o.advanceCursor(ctx, id.key, spec, batch, maxPosition)
	return result, symbols
}

func (o *orchestrator) buildPlan(ctx context.Context, key repository.CursorKey, spec provider.StreamSpec) (provider.FetchPlan, error) {
	plan := provider.FetchPlan{Key: key}

	cursor, err := o.watermarks.Get(ctx, key)
	if err != nil {
		return plan, err
	}

	switch spec.Cursor {
	case provider.CursorID:
		if cursor != nil && cursor.LastSeenID != nil {
			id := *cursor.LastSeenID
			plan.MinID = &id
		}
	default:
		var since time.Time
		if cursor != nil && cursor.LastSeenAt != nil {
			since = cursor.LastSeenAt.UTC()
		} else {
			since = time.Now().UTC().Add(-spec.BootstrapLookback)
		}
		plan.Since = &since
	}
	return plan, nil
}

func (o *orchestrator) advanceCursor(ctx context.Context, key repository.CursorKey, spec provider.StreamSpec, batch provider.Batch, maxPosition *time.Time) (bool, error) {
	if spec.Cursor == provider.CursorID {
		if batch.MaxID == nil {
			return false, nil
		}
		moved, err := o.watermarks.AdvanceID(ctx, key, *batch.MaxID)
		if err != nil {
			return false, fmt.Errorf("advance cursor: %w", err)
		}
		return moved, nil
	}

	if maxPosition == nil {
		return false, nil
	}
	position := *maxPosition
	if limit := time.Now().UTC().Add(futureClampWindow); position.After(limit) {
		o.logger.Warn("future position clamped",
			logger.StringField("identity", key.String()),
			logger.StringField("position", utils.FormatRFC3339(position)))
		position = limit
	}
	moved, err := o.watermarks.AdvanceTimestamp(ctx, key, position)
	if err != nil {
		return false, fmt.Errorf("advance cursor: %w", err)
	}
	return moved, nil
}

// backfill fetches and stores article body text for a freshly inserted item
// that arrived without content. Extraction failure only logs; the item
// already committed.
func (o *orchestrator) backfill(ctx context.Context, rec provider.NewsRecord) {
	if !o.cfg.BackfillContent || o.scraper == nil || rec.Content != "" {
		return
	}
	content, err := o.scraper.Extract(ctx, rec.URL)
	if err != nil {
		o.logger.Debug("content backfill skipped",
			logger.StringField("url", rec.URL),
			logger.ErrorField(err))
		return
	}
	if err := o.ingest.BackfillContent(ctx, rec.URL, content); err != nil {
		o.logger.Warn("content backfill failed",
			logger.StringField("url", rec.URL),
			logger.ErrorField(err))
	}
}

func (o *orchestrator) logSummary(summary *CycleSummary) {
	inserted, linked, skipped, dropped, failed := summary.Totals()
	o.logger.Info("poll cycle finished",
		logger.IntField("identities", len(summary.Identities)),
		logger.IntField("inserted", inserted),
		logger.IntField("linked", linked),
		logger.IntField("skipped", skipped),
		logger.IntField("dropped", dropped),
		logger.IntField("failed", failed),
		logger.Field("duration", summary.Duration))

	for _, r := range summary.Identities {
		if r.Err != nil {
			o.logger.Error("identity poll failed",
				logger.StringField("identity", r.Identity),
				logger.ErrorField(r.Err))
		}
	}
}

// publishTriggers tells the analysis consumer which symbols gained data.
func (o *orchestrator) publishTriggers(ctx context.Context, symbols []string) {
	if o.redisClient == nil {
		return
	}
	for _, symbol := range symbols {
		err := o.redisClient.XAdd(ctx, &redis.XAddArgs{
			Stream: common.RedisStreamAnalysisTrigger,
			Values: map[string]interface{}{"symbol": symbol},
		}).Err()
		if err != nil {
			o.logger.Error("failed to publish analysis trigger",
				logger.StringField("symbol", symbol),
				logger.ErrorField(err))
		}
	}
}

func (o *orchestrator) notify(summary *CycleSummary) {
	if o.notifier == nil {
		return
	}
	inserted, linked, skipped, dropped, failed := summary.Totals()
	if inserted == 0 && failed == 0 {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Ingestion cycle* %s\n", summary.StartedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "inserted %d, linked %d, skipped %d, dropped %d, failed %d\n", inserted, linked, skipped, dropped, failed)
	if len(summary.NewDataSymbols) > 0 {
		fmt.Fprintf(&b, "new data: %s", telegram.EscapeMarkdown(strings.Join(summary.NewDataSymbols, ", ")))
	}
	if err := o.notifier.SendMessage(b.String()); err != nil {
		o.logger.Error("failed to send cycle summary", logger.ErrorField(err))
	}
}

// prune enforces the retention window when one is configured.
func (o *orchestrator) prune(ctx context.Context) {
	if o.cfg.RetentionDays <= 0 {
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -o.cfg.RetentionDays)
	counts, err := o.newsRepo.PruneBefore(ctx, cutoff)
	if err != nil {
		o.logger.Error("retention prune failed", logger.ErrorField(err))
		return
	}
	if counts.NewsDeleted > 0 || counts.PricesDeleted > 0 {
		o.logger.Info("retention prune finished",
			logger.IntField("news", int(counts.NewsDeleted)),
			logger.IntField("links", int(counts.SymbolsDeleted)),
			logger.IntField("prices", int(counts.PricesDeleted)))
	}
}

func appendMentions(symbols []string, mentions []provider.SymbolMention) []string {
	for _, m := range mentions {
		symbols = append(symbols, strings.ToUpper(strings.TrimSpace(m.Symbol)))
	}
	return symbols
}
