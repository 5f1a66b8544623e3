package provider

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"golang-market-ingestor/internal/entity"
	"golang-market-ingestor/internal/ingestor/repository"
)

// SymbolMention ties a fetched news record to one ticker.
type SymbolMention struct {
	Symbol      string
	IsImportant *bool
}

// NewsRecord is the canonical shape every news adapter parses its raw payload
// into. The core never inspects provider-specific field names.
type NewsRecord struct {
	URL         string
	Headline    string
	Content     string
	PublishedAt time.Time
	Source      string
	NewsType    entity.NewsType
	Symbols     []SymbolMention
}

// PriceRecord is the canonical shape for one fetched price point.
type PriceRecord struct {
	Symbol    string
	Timestamp time.Time
	Price     decimal.Decimal
	Volume    *int64
}

// CursorKind selects the pagination primitive a stream uses.
type CursorKind string

const (
	CursorTimestamp CursorKind = "timestamp"
	CursorID        CursorKind = "id"
)

// StreamSpec describes the watermark identity shape of one adapter stream and
// the bootstrap lookback used on the very first poll. The watermark store
// itself never invents a default window.
type StreamSpec struct {
	Provider          entity.Provider
	Stream            entity.Stream
	Scope             entity.Scope
	Cursor            CursorKind
	BootstrapLookback time.Duration
}

// FetchPlan carries the cursor position for one identity poll. Exactly one of
// Since/MinID is set, matching the stream's CursorKind. For timestamp streams
// Since is always populated (stored cursor or bootstrap lookback).
type FetchPlan struct {
	Key   repository.CursorKey
	Since *time.Time
	MinID *int64
}

// Batch is the result of one FetchBatch call. Dropped counts records the
// adapter discarded at parse time. MaxID is the highest raw id observed by
// id-cursor streams, reported even when every record was filtered out.
type Batch struct {
	News    []NewsRecord
	Prices  []PriceRecord
	Dropped int
	MaxID   *int64
}

// Adapter is the polymorphic fetch capability the orchestrator depends on.
// Adapters own their HTTP retry/backoff and rate-limit compliance; the
// orchestrator only sees fully-formed or explicitly-failed batches.
type Adapter interface {
	Name() string
	Spec() StreamSpec
	// Symbols returns the tickers this adapter polls; empty for global scope.
	Symbols() []string
	FetchBatch(ctx context.Context, plan FetchPlan) (Batch, error)
}
