package repository

import (
	"context"
	"fmt"
	"time"

	"golang-market-ingestor/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PruneCounts reports how many rows a retention prune removed.
type PruneCounts struct {
	SymbolsDeleted int64
	NewsDeleted    int64
	PricesDeleted  int64
}

// NewsRepository defines the dedup-aware persistence operations for news.
type NewsRepository interface {
	// Ingest inserts the item and its symbol links as one transaction. When
	// the normalized URL already exists the body write is skipped (first
	// writer wins) but missing links are still created.
	Ingest(ctx context.Context, item *entity.NewsItem, mentions []entity.NewsSymbol) (Outcome, error)
	// BackfillContent fills the content column only when it is still empty.
	BackfillContent(ctx context.Context, url, content string) error
	FindRecentBySymbol(ctx context.Context, symbol string, since time.Time, limit int) ([]entity.NewsItem, error)
	// PruneBefore removes news, symbol links, and prices created at or before
	// the cutoff, atomically. Used after the analysis layer has consumed them.
	PruneBefore(ctx context.Context, cutoff time.Time) (PruneCounts, error)
}

// NewNewsRepository creates a new instance of NewsRepository.
func NewNewsRepository(db *gorm.DB) NewsRepository {
	return &newsRepository{db: db}
}

type newsRepository struct {
	db *gorm.DB
}

func (r *newsRepository) Ingest(ctx context.Context, item *entity.NewsItem, mentions []entity.NewsSymbol) (Outcome, error) {
	outcome := OutcomeSkipped

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item.Symbols = nil
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "url"}},
			DoNothing: true,
		}).Create(item)
		if res.Error != nil {
			return fmt.Errorf("insert news item: %w", res.Error)
		}
		inserted := res.RowsAffected > 0

		var linked int64
		for i := range mentions {
			mentions[i].URL = item.URL
			lres := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "url"}, {Name: "symbol"}},
				DoNothing: true,
			}).Create(&mentions[i])
			if lres.Error != nil {
				return fmt.Errorf("insert news symbol link: %w", lres.Error)
			}
			linked += lres.RowsAffected
		}

		switch {
		case inserted:
			outcome = OutcomeInserted
		case linked > 0:
			outcome = OutcomeLinkedOnly
		default:
			outcome = OutcomeSkipped
		}
		return nil
	})
	if err != nil {
		return OutcomeSkipped, err
	}
	return outcome, nil
}

func (r *newsRepository) BackfillContent(ctx context.Context, url, content string) error {
	return r.db.WithContext(ctx).
		Model(&entity.NewsItem{}).
		Where("url = ? AND (content IS NULL OR content = '')", url).
		Update("content", content).Error
}

func (r *newsRepository) FindRecentBySymbol(ctx context.Context, symbol string, since time.Time, limit int) ([]entity.NewsItem, error) {
	var news []entity.NewsItem
	err := r.db.WithContext(ctx).
		Joins("JOIN news_symbols ON news_symbols.url = news_items.url").
		Where("news_symbols.symbol = ? AND news_items.published_at >= ?", symbol, since).
		Order("news_items.published_at DESC").
		Limit(limit).
		Find(&news).Error
	if err != nil {
		return nil, fmt.Errorf("find news for %s: %w", symbol, err)
	}
	return news, nil
}

func (r *newsRepository) PruneBefore(ctx context.Context, cutoff time.Time) (PruneCounts, error) {
	var counts PruneCounts

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("url IN (?)",
			tx.Session(&gorm.Session{NewDB: true}).
				Model(&entity.NewsItem{}).
				Select("url").
				Where("created_at <= ?", cutoff),
		).Delete(&entity.NewsSymbol{})
		if res.Error != nil {
			return fmt.Errorf("prune news symbols: %w", res.Error)
		}
		counts.SymbolsDeleted = res.RowsAffected

		res = tx.Where("created_at <= ?", cutoff).Delete(&entity.NewsItem{})
		if res.Error != nil {
			return fmt.Errorf("prune news items: %w", res.Error)
		}
		counts.NewsDeleted = res.RowsAffected

		res = tx.Where("created_at <= ?", cutoff).Delete(&entity.PriceObservation{})
		if res.Error != nil {
			return fmt.Errorf("prune price data: %w", res.Error)
		}
		counts.PricesDeleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return PruneCounts{}, err
	}
	return counts, nil
}
