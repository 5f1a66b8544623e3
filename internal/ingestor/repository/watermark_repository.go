package repository

import (
	"context"
	"fmt"
	"time"

	"golang-market-ingestor/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CursorKey identifies one watermark: a (provider, stream, scope, symbol)
// identity. Symbol must be empty for global scope and set for symbol scope.
type CursorKey struct {
	Provider entity.Provider
	Stream   entity.Stream
	Scope    entity.Scope
	Symbol   string
}

// Validate checks the scope/symbol pairing.
func (k CursorKey) Validate() error {
	switch k.Scope {
	case entity.ScopeGlobal:
		if k.Symbol != "" {
			return fmt.Errorf("global scope must not carry a symbol, got %q", k.Symbol)
		}
	case entity.ScopeSymbol:
		if k.Symbol == "" {
			return fmt.Errorf("symbol scope requires a symbol")
		}
	default:
		return fmt.Errorf("unknown scope %q", k.Scope)
	}
	return nil
}

func (k CursorKey) String() string {
	if k.Symbol == "" {
		return fmt.Sprintf("%s/%s/%s", k.Provider, k.Stream, k.Scope)
	}
	return fmt.Sprintf("%s/%s/%s/%s", k.Provider, k.Stream, k.Scope, k.Symbol)
}

// WatermarkRepository stores and compares per-identity ingestion cursors. It
// never invents a bootstrap window: a missing cursor is returned as nil and
// the caller decides the first-poll lookback.
type WatermarkRepository interface {
	Get(ctx context.Context, key CursorKey) (*entity.WatermarkCursor, error)
	// AdvanceTimestamp moves the identity's time cursor forward. A position at
	// or before the stored cursor is rejected as a no-op; the return value
	// reports whether the cursor actually moved.
	AdvanceTimestamp(ctx context.Context, key CursorKey, position time.Time) (bool, error)
	// AdvanceID moves the identity's numeric cursor forward under the same
	// backward-movement rule.
	AdvanceID(ctx context.Context, key CursorKey, position int64) (bool, error)
}

// NewWatermarkRepository creates a new instance of WatermarkRepository.
func NewWatermarkRepository(db *gorm.DB) WatermarkRepository {
	return &watermarkRepository{db: db}
}

type watermarkRepository struct {
	db *gorm.DB
}

var cursorConflictTarget = []clause.Column{
	{Name: "provider"}, {Name: "stream"}, {Name: "scope"}, {Name: "symbol"},
}

func (r *watermarkRepository) Get(ctx context.Context, key CursorKey) (*entity.WatermarkCursor, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	var cursor entity.WatermarkCursor
	err := r.db.WithContext(ctx).
		Where("provider = ? AND stream = ? AND scope = ? AND symbol = ?",
			key.Provider, key.Stream, key.Scope, key.Symbol).
		First(&cursor).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cursor %s: %w", key, err)
	}
	return &cursor, nil
}

func (r *watermarkRepository) AdvanceTimestamp(ctx context.Context, key CursorKey, position time.Time) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}

	position = position.UTC().Truncate(time.Second)
	cursor := entity.WatermarkCursor{
		Provider:   key.Provider,
		Stream:     key.Stream,
		Scope:      key.Scope,
		Symbol:     key.Symbol,
		LastSeenAt: &position,
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: cursorConflictTarget,
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_seen_at": position,
			"updated_at":   time.Now().UTC(),
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "last_seen_state.last_seen_at IS NULL OR excluded.last_seen_at > last_seen_state.last_seen_at"},
		}},
	}).Create(&cursor)
	if res.Error != nil {
		return false, fmt.Errorf("advance cursor %s: %w", key, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *watermarkRepository) AdvanceID(ctx context.Context, key CursorKey, position int64) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}

	cursor := entity.WatermarkCursor{
		Provider:   key.Provider,
		Stream:     key.Stream,
		Scope:      key.Scope,
		Symbol:     key.Symbol,
		LastSeenID: &position,
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: cursorConflictTarget,
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_seen_id": position,
			"updated_at":   time.Now().UTC(),
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "last_seen_state.last_seen_id IS NULL OR excluded.last_seen_id > last_seen_state.last_seen_id"},
		}},
	}).Create(&cursor)
	if res.Error != nil {
		return false, fmt.Errorf("advance cursor %s: %w", key, res.Error)
	}
	return res.RowsAffected > 0, nil
}
