package entity

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// AnalysisType identifies the kind of analysis a result row carries.
type AnalysisType string

const (
	AnalysisTypeNews      AnalysisType = "news_analysis"
	AnalysisTypeSentiment AnalysisType = "sentiment_analysis"
	AnalysisTypeTrader    AnalysisType = "head_trader"
)

// Stance is the categorical position of an analysis result.
type Stance string

const (
	StanceBull    Stance = "BULL"
	StanceBear    Stance = "BEAR"
	StanceNeutral Stance = "NEUTRAL"
)

// AnalysisResult holds the single current analysis per (symbol, type).
// A new result replaces the prior row, it never accumulates.
type AnalysisResult struct {
	Symbol          string         `gorm:"primaryKey" json:"symbol"`
	AnalysisType    AnalysisType   `gorm:"primaryKey" json:"analysis_type"`
	ModelName       string         `gorm:"not null" json:"model_name"`
	Stance          Stance         `gorm:"not null" json:"stance"`
	ConfidenceScore float64        `gorm:"not null" json:"confidence_score"`
	LastUpdated     time.Time      `gorm:"not null" json:"last_updated"`
	Result          datatypes.JSON `gorm:"column:result_json" json:"result"`
	KeyFactors      pq.StringArray `gorm:"type:text[]" json:"key_factors,omitempty"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the AnalysisResult model.
func (AnalysisResult) TableName() string {
	return "analysis_results"
}
