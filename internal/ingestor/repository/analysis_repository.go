package repository

import (
	"context"
	"fmt"
	"time"

	"golang-market-ingestor/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnalysisRepository persists analysis results with replace-on-conflict
// semantics: at most one current row per (symbol, analysis type).
type AnalysisRepository interface {
	Upsert(ctx context.Context, result *entity.AnalysisResult) error
	FindBySymbol(ctx context.Context, symbol string) ([]entity.AnalysisResult, error)
	FindAll(ctx context.Context) ([]entity.AnalysisResult, error)
}

// NewAnalysisRepository creates a new instance of AnalysisRepository.
func NewAnalysisRepository(db *gorm.DB) AnalysisRepository {
	return &analysisRepository{db: db}
}

type analysisRepository struct {
	db *gorm.DB
}

func (r *analysisRepository) Upsert(ctx context.Context, result *entity.AnalysisResult) error {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "analysis_type"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"model_name":       result.ModelName,
			"stance":           result.Stance,
			"confidence_score": result.ConfidenceScore,
			"last_updated":     result.LastUpdated,
			"result_json":      result.Result,
			"key_factors":      result.KeyFactors,
			"updated_at":       time.Now().UTC(),
		}),
	}).Create(result)
	if res.Error != nil {
		return fmt.Errorf("upsert analysis result: %w", res.Error)
	}
	return nil
}

func (r *analysisRepository) FindBySymbol(ctx context.Context, symbol string) ([]entity.AnalysisResult, error) {
	var results []entity.AnalysisResult
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("analysis_type ASC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("find analysis results for %s: %w", symbol, err)
	}
	return results, nil
}

func (r *analysisRepository) FindAll(ctx context.Context) ([]entity.AnalysisResult, error) {
	var results []entity.AnalysisResult
	err := r.db.WithContext(ctx).
		Order("symbol ASC, analysis_type ASC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("find analysis results: %w", err)
	}
	return results, nil
}
