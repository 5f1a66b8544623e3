package config

import (
	"time"

	"golang-market-ingestor/pkg/config"
)

// Gemini holds the configuration for the Gemini AI backend.
type Gemini struct {
	APIKey              string `mapstructure:"api_key"`
	BaseURL             string `mapstructure:"base_url"`
	Model               string `mapstructure:"model"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// Analyzer holds pipeline settings for the analysis consumer.
type Analyzer struct {
	NewsLookback      time.Duration `mapstructure:"news_lookback"`
	MaxNewsPerSymbol  int           `mapstructure:"max_news_per_symbol"`
	PriceLookback     time.Duration `mapstructure:"price_lookback"`
	StreamReadTimeout time.Duration `mapstructure:"stream_read_timeout"`
	AnalysisTimeout   time.Duration `mapstructure:"analysis_timeout"`
}

// Config holds the full configuration for the analysis service.
type Config struct {
	App      config.App      `mapstructure:"app"`
	Logger   config.Logger   `mapstructure:"logger"`
	Database config.Database `mapstructure:"database"`
	Redis    config.Redis    `mapstructure:"redis"`
	Gemini   Gemini          `mapstructure:"gemini"`
	Analyzer Analyzer        `mapstructure:"analyzer"`
}

// Load loads the analysis service configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
