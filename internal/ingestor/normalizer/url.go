package normalizer

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// defaultTrackingParams are the query parameters stripped from every URL, in
// addition to any `utm_` prefixed parameter. The set is a minimum; providers
// decorate shared links differently, so deployments extend it via config.
var defaultTrackingParams = []string{
	"ref",
	"fbclid",
	"gclid",
	"mc_cid",
	"mc_eid",
	"cmpid",
	"ito",
	"igshid",
	"smid",
	"ocid",
}

// URLNormalizer canonicalizes article URLs so the same physical article
// reported by different providers collides on one key.
type URLNormalizer struct {
	strip map[string]struct{}
}

// NewURLNormalizer builds a normalizer stripping the default tracking
// parameters plus any extras supplied from configuration.
func NewURLNormalizer(extraParams []string) *URLNormalizer {
	strip := make(map[string]struct{}, len(defaultTrackingParams)+len(extraParams))
	for _, p := range defaultTrackingParams {
		strip[strings.ToLower(p)] = struct{}{}
	}
	for _, p := range extraParams {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			strip[p] = struct{}{}
		}
	}
	return &URLNormalizer{strip: strip}
}

// Normalize canonicalizes a raw URL: lowercases scheme and host, drops default
// ports and fragments, strips tracking query parameters, sorts the surviving
// query, and removes a trailing slash. Normalize(Normalize(x)) == Normalize(x).
// A malformed URL returns an error; the caller drops the record.
func (n *URLNormalizer) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("url is empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("malformed url %q: %w", raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", raw)
	}

	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.User = nil

	if port := u.Port(); port != "" {
		if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
			u.Host = u.Hostname()
		}
	}

	query := u.Query()
	for key := range query {
		if n.isTracking(key) {
			query.Del(key)
		}
	}
	u.RawQuery = query.Encode() // Encode sorts keys, keeping the output stable.

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	return u.String(), nil
}

func (n *URLNormalizer) isTracking(key string) bool {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	_, ok := n.strip[key]
	return ok
}

// PriceKey canonicalizes a price observation's natural key: the symbol is
// trimmed and uppercased, the timestamp truncated to second precision in UTC.
func PriceKey(symbol string, ts time.Time) (string, time.Time, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", time.Time{}, fmt.Errorf("symbol is empty")
	}
	return symbol, ts.UTC().Truncate(time.Second), nil
}
