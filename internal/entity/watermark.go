package entity

import (
	"time"
)

// Provider identifies a data provider tracked by watermark state.
type Provider string

const (
	ProviderFinnhub Provider = "FINNHUB"
	ProviderPolygon Provider = "POLYGON"
	ProviderRSS     Provider = "RSS"
)

// Stream is a logical data stream within a provider.
type Stream string

const (
	StreamCompany Stream = "COMPANY"
	StreamMacro   Stream = "MACRO"
	StreamPrices  Stream = "PRICES"
)

// Scope discriminates global streams from per-symbol streams.
type Scope string

const (
	ScopeGlobal Scope = "GLOBAL"
	ScopeSymbol Scope = "SYMBOL"
)

// WatermarkCursor records the last successfully ingested position for one
// (provider, stream, scope, symbol) identity. Symbol is empty for global scope.
// The cursor only ever moves forward, and only after the batch is durable.
type WatermarkCursor struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Provider   Provider   `gorm:"uniqueIndex:idx_last_seen_identity;not null" json:"provider"`
	Stream     Stream     `gorm:"uniqueIndex:idx_last_seen_identity;not null" json:"stream"`
	Scope      Scope      `gorm:"uniqueIndex:idx_last_seen_identity;not null" json:"scope"`
	Symbol     string     `gorm:"uniqueIndex:idx_last_seen_identity;not null;default:''" json:"symbol"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	LastSeenID *int64     `json:"last_seen_id,omitempty"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the WatermarkCursor model.
func (WatermarkCursor) TableName() string {
	return "last_seen_state"
}
