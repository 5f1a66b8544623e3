package repository

import (
	"context"
	"fmt"
	"time"

	"golang-market-ingestor/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PriceRepository defines append-only persistence for price observations.
type PriceRepository interface {
	// Ingest writes the observation unless its (symbol, timestamp) key already
	// exists. Price history is first-write authoritative: a conflicting key is
	// a no-op, never an overwrite.
	Ingest(ctx context.Context, obs *entity.PriceObservation) (Outcome, error)
	FindBySymbolSince(ctx context.Context, symbol string, since time.Time) ([]entity.PriceObservation, error)
	Latest(ctx context.Context, symbol string) (*entity.PriceObservation, error)
}

// NewPriceRepository creates a new instance of PriceRepository.
func NewPriceRepository(db *gorm.DB) PriceRepository {
	return &priceRepository{db: db}
}

type priceRepository struct {
	db *gorm.DB
}

func (r *priceRepository) Ingest(ctx context.Context, obs *entity.PriceObservation) (Outcome, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "timestamp"}},
		DoNothing: true,
	}).Create(obs)
	if res.Error != nil {
		return OutcomeSkipped, fmt.Errorf("insert price observation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return OutcomeSkipped, nil
	}
	return OutcomeInserted, nil
}

func (r *priceRepository) FindBySymbolSince(ctx context.Context, symbol string, since time.Time) ([]entity.PriceObservation, error) {
	var prices []entity.PriceObservation
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND timestamp >= ?", symbol, since).
		Order("timestamp ASC").
		Find(&prices).Error
	if err != nil {
		return nil, fmt.Errorf("find prices for %s: %w", symbol, err)
	}
	return prices, nil
}

func (r *priceRepository) Latest(ctx context.Context, symbol string) (*entity.PriceObservation, error) {
	var obs entity.PriceObservation
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("timestamp DESC").
		First(&obs).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest price for %s: %w", symbol, err)
	}
	return &obs, nil
}
