package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mauidude/go-readability"
	"github.com/patrickmn/go-cache"

	"golang-market-ingestor/pkg/logger"
	"golang-market-ingestor/pkg/utils"
)

const maxContentRunes = 20000

// ContentScraper fetches article pages and extracts readable body text for
// news records that arrived with an empty content field. Failed URLs are
// cached so a bad page is not re-fetched every cycle.
type ContentScraper struct {
	client   *http.Client
	failures *cache.Cache
	logger   *logger.Logger
}

// NewContentScraper creates a content scraper with the given request timeout.
func NewContentScraper(timeout time.Duration, log *logger.Logger) *ContentScraper {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ContentScraper{
		client:   &http.Client{Timeout: timeout},
		failures: cache.New(6*time.Hour, 30*time.Minute),
		logger:   log,
	}
}

// Extract downloads the page at url and returns its readable text. A url
// that recently failed returns an error immediately without a request.
func (s *ContentScraper) Extract(ctx context.Context, url string) (string, error) {
	if _, failed := s.failures.Get(url); failed {
		return "", fmt.Errorf("url recently failed extraction: %s", url)
	}

	content, err := s.extract(ctx, url)
	if err != nil {
		s.failures.SetDefault(url, struct{}{})
		return "", err
	}
	return content, nil
}

func (s *ContentScraper) extract(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request for article: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch article, status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read article body: %w", err)
	}

	doc, err := readability.NewDocument(string(body))
	if err != nil {
		return "", fmt.Errorf("parse article content: %w", err)
	}

	docHTML, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(doc.Content())))
	if err != nil {
		return "", fmt.Errorf("parse extracted content: %w", err)
	}

	content := utils.SafeText(strings.TrimSpace(docHTML.Text()))
	if content == "" {
		return "", fmt.Errorf("no readable content at %s", url)
	}
	return utils.Truncate(content, maxContentRunes), nil
}
