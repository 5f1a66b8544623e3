package entity

import (
	"time"
)

// NewsType categorizes the editorial nature of a news item.
type NewsType string

const (
	NewsTypeMacro           NewsType = "macro"
	NewsTypeCompanySpecific NewsType = "company_specific"
	NewsTypeSocialSentiment NewsType = "social_sentiment"
)

// NewsItem represents a deduplicated news article. The normalized URL is the
// global identity: two providers reporting the same article collapse to one row.
type NewsItem struct {
	URL         string    `gorm:"primaryKey" json:"url"`
	Headline    string    `gorm:"not null" json:"headline"`
	Content     string    `json:"content,omitempty"`
	PublishedAt time.Time `gorm:"not null" json:"published_at"`
	Source      string    `gorm:"not null" json:"source"`
	NewsType    NewsType  `gorm:"not null" json:"news_type"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`

	Symbols []NewsSymbol `gorm:"foreignKey:URL;references:URL;constraint:OnDelete:CASCADE" json:"symbols,omitempty"`
}

// TableName specifies the table name for the NewsItem model.
func (NewsItem) TableName() string {
	return "news_items"
}

// NewsSymbol links a news item to a ticker it references.
type NewsSymbol struct {
	URL         string    `gorm:"primaryKey" json:"url"`
	Symbol      string    `gorm:"primaryKey" json:"symbol"`
	IsImportant *bool     `json:"is_important,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the NewsSymbol model.
func (NewsSymbol) TableName() string {
	return "news_symbols"
}
