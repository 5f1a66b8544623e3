package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Session tags a price observation with the market session it was taken in.
type Session string

const (
	SessionPre     Session = "PRE"
	SessionRegular Session = "REGULAR"
	SessionPost    Session = "POST"
	SessionClosed  Session = "CLOSED"
)

// PriceObservation is one append-only price point per (symbol, timestamp).
// Price is stored as exact-decimal text; binary floats are never used for money.
type PriceObservation struct {
	Symbol    string          `gorm:"primaryKey" json:"symbol"`
	Timestamp time.Time       `gorm:"primaryKey" json:"timestamp"`
	Price     decimal.Decimal `gorm:"type:text;not null" json:"price"`
	Volume    *int64          `json:"volume,omitempty"`
	Session   Session         `gorm:"not null" json:"session"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the PriceObservation model.
func (PriceObservation) TableName() string {
	return "price_data"
}
