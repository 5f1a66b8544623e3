package repository

import (
	"context"
	"fmt"
	"time"

	"golang-market-ingestor/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HoldingsRepository manages portfolio positions. Analysis consumes holdings
// read-only; mutation happens through the holdings API.
type HoldingsRepository interface {
	Upsert(ctx context.Context, holding *entity.Holding) error
	Get(ctx context.Context, symbol string) (*entity.Holding, error)
	GetAll(ctx context.Context) ([]entity.Holding, error)
	Delete(ctx context.Context, symbol string) error
}

// NewHoldingsRepository creates a new instance of HoldingsRepository.
func NewHoldingsRepository(db *gorm.DB) HoldingsRepository {
	return &holdingsRepository{db: db}
}

type holdingsRepository struct {
	db *gorm.DB
}

func (r *holdingsRepository) Upsert(ctx context.Context, holding *entity.Holding) error {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":         holding.Quantity,
			"break_even_price": holding.BreakEvenPrice,
			"total_cost":       holding.TotalCost,
			"notes":            holding.Notes,
			"updated_at":       time.Now().UTC(),
		}),
	}).Create(holding)
	if res.Error != nil {
		return fmt.Errorf("upsert holding %s: %w", holding.Symbol, res.Error)
	}
	return nil
}

func (r *holdingsRepository) Get(ctx context.Context, symbol string) (*entity.Holding, error) {
	var holding entity.Holding
	err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&holding).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get holding %s: %w", symbol, err)
	}
	return &holding, nil
}

func (r *holdingsRepository) GetAll(ctx context.Context) ([]entity.Holding, error) {
	var holdings []entity.Holding
	if err := r.db.WithContext(ctx).Order("symbol ASC").Find(&holdings).Error; err != nil {
		return nil, fmt.Errorf("get holdings: %w", err)
	}
	return holdings, nil
}

func (r *holdingsRepository) Delete(ctx context.Context, symbol string) error {
	if err := r.db.WithContext(ctx).Where("symbol = ?", symbol).Delete(&entity.Holding{}).Error; err != nil {
		return fmt.Errorf("delete holding %s: %w", symbol, err)
	}
	return nil
}
