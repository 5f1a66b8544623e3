package dto

import (
	"encoding/json"
	"time"

	"golang-market-ingestor/internal/entity"
)

// UpsertHoldingRequest is the PUT /holdings/:symbol payload. Money fields are
// decimal strings, never floats.
type UpsertHoldingRequest struct {
	Quantity       string `json:"quantity"`
	BreakEvenPrice string `json:"break_even_price"`
	TotalCost      string `json:"total_cost"`
	Notes          string `json:"notes,omitempty"`
}

// HoldingResponse mirrors one holdings row with decimals as strings.
type HoldingResponse struct {
	Symbol         string    `json:"symbol"`
	Quantity       string    `json:"quantity"`
	BreakEvenPrice string    `json:"break_even_price"`
	TotalCost      string    `json:"total_cost"`
	Notes          string    `json:"notes,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewHoldingResponse converts a holdings row to its API shape.
func NewHoldingResponse(h *entity.Holding) HoldingResponse {
	return HoldingResponse{
		Symbol:         h.Symbol,
		Quantity:       h.Quantity.String(),
		BreakEvenPrice: h.BreakEvenPrice.String(),
		TotalCost:      h.TotalCost.String(),
		Notes:          h.Notes,
		UpdatedAt:      h.UpdatedAt,
	}
}

// AnalysisResponse mirrors one analysis row.
type AnalysisResponse struct {
	Symbol          string          `json:"symbol"`
	AnalysisType    string          `json:"analysis_type"`
	ModelName       string          `json:"model_name"`
	Stance          string          `json:"stance"`
	ConfidenceScore float64         `json:"confidence_score"`
	LastUpdated     time.Time       `json:"last_updated"`
	Result          json.RawMessage `json:"result"`
	KeyFactors      []string        `json:"key_factors,omitempty"`
}

// NewAnalysisResponse converts an analysis row to its API shape.
func NewAnalysisResponse(r *entity.AnalysisResult) AnalysisResponse {
	return AnalysisResponse{
		Symbol:          r.Symbol,
		AnalysisType:    string(r.AnalysisType),
		ModelName:       r.ModelName,
		Stance:          string(r.Stance),
		ConfidenceScore: r.ConfidenceScore,
		LastUpdated:     r.LastUpdated,
		Result:          json.RawMessage(r.Result),
		KeyFactors:      r.KeyFactors,
	}
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
