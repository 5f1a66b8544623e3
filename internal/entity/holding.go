package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is a portfolio position keyed by symbol. Quantity and cost fields are
// exact-decimal text. Mutated only via the holdings API; analysis reads them.
type Holding struct {
	Symbol         string          `gorm:"primaryKey" json:"symbol"`
	Quantity       decimal.Decimal `gorm:"type:text;not null" json:"quantity"`
	BreakEvenPrice decimal.Decimal `gorm:"type:text;not null" json:"break_even_price"`
	TotalCost      decimal.Decimal `gorm:"type:text;not null" json:"total_cost"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the Holding model.
func (Holding) TableName() string {
	return "holdings"
}
