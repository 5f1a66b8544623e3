package provider

import (
	"net/http"
	"time"

	"golang-market-ingestor/internal/ingestor/config"
	"golang-market-ingestor/pkg/logger"
)

const (
	defaultFinnhubBaseURL = "https://finnhub.io/api/v1"
	defaultPolygonBaseURL = "https://api.polygon.io"
)

// NewFinnhubClient builds the shared REST client for all Finnhub adapters.
func NewFinnhubClient(cfg config.Finnhub, log *logger.Logger) *restClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultFinnhubBaseURL
	}
	return newRESTClient("finnhub", baseURL, "token", cfg.APIKey, cfg.MaxRequestPerMinute, cfg.RequestTimeout, log)
}

// NewPolygonClient builds the REST client for the Polygon adapter.
func NewPolygonClient(cfg config.Polygon, log *logger.Logger) *restClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultPolygonBaseURL
	}
	return newRESTClient("polygon", baseURL, "apiKey", cfg.APIKey, cfg.MaxRequestPerMinute, cfg.RequestTimeout, log)
}

func clientWithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
