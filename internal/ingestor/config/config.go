package config

import (
	"time"

	"golang-market-ingestor/pkg/config"
)

// Finnhub holds the configuration for the Finnhub provider.
type Finnhub struct {
	APIKey                  string        `mapstructure:"api_key"`
	BaseURL                 string        `mapstructure:"base_url"`
	MaxRequestPerMinute     int           `mapstructure:"max_request_per_minute"`
	CompanyNewsFirstRunDays int           `mapstructure:"company_news_first_run_days"`
	MacroNewsFirstRunDays   int           `mapstructure:"macro_news_first_run_days"`
	RequestTimeout          time.Duration `mapstructure:"request_timeout"`
}

// Polygon holds the configuration for the Polygon provider.
type Polygon struct {
	APIKey              string        `mapstructure:"api_key"`
	BaseURL             string        `mapstructure:"base_url"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	NewsFirstRunDays    int           `mapstructure:"news_first_run_days"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
}

// RSS holds the configuration for the Google News RSS provider.
type RSS struct {
	Enabled          bool          `mapstructure:"enabled"`
	NewsFirstRunDays int           `mapstructure:"news_first_run_days"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
}

// Ingestor holds pipeline-level settings.
type Ingestor struct {
	Watchlist           []string      `mapstructure:"watchlist"`
	CronSchedule        string        `mapstructure:"cron_schedule"`
	MaxConcurrent       int           `mapstructure:"max_concurrent"`
	CycleTimeout        time.Duration `mapstructure:"cycle_timeout"`
	ExtraTrackingParams []string      `mapstructure:"extra_tracking_params"`
	BackfillContent     bool          `mapstructure:"backfill_content"`
	RetentionDays       int           `mapstructure:"retention_days"`
}

// Telegram holds configuration for the cycle-summary notifier.
type Telegram struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Config holds the full configuration for the ingestion service.
type Config struct {
	App      config.App      `mapstructure:"app"`
	Logger   config.Logger   `mapstructure:"logger"`
	Database config.Database `mapstructure:"database"`
	Redis    config.Redis    `mapstructure:"redis"`
	API      config.API      `mapstructure:"api"`
	Ingestor Ingestor        `mapstructure:"ingestor"`
	Finnhub  Finnhub         `mapstructure:"finnhub"`
	Polygon  Polygon         `mapstructure:"polygon"`
	RSS      RSS             `mapstructure:"rss"`
	Telegram Telegram        `mapstructure:"telegram"`
}

// Load loads the ingestion service configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
