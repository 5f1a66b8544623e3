package utils

import (
	"strings"
)

// ParseSymbols parses a comma-separated symbol list into an order-preserving,
// deduplicated slice of uppercase tickers. Entries that are not 1-5 ASCII
// letters are dropped. When filterTo is non-empty, only symbols present in
// that watchlist are returned.
func ParseSymbols(raw string, filterTo []string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var allow map[string]struct{}
	if len(filterTo) > 0 {
		allow = make(map[string]struct{}, len(filterTo))
		for _, s := range filterTo {
			s = strings.ToUpper(strings.TrimSpace(s))
			if s != "" {
				allow[s] = struct{}{}
			}
		}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, token := range strings.Split(raw, ",") {
		sym := strings.ToUpper(strings.TrimSpace(token))
		if sym == "" || !isValidSymbol(sym) {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		if allow != nil {
			if _, ok := allow[sym]; !ok {
				continue
			}
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

// IsValidSymbol reports whether s is a plausible ticker: 1-5 uppercase
// ASCII letters.
func IsValidSymbol(s string) bool {
	return isValidSymbol(s)
}

func isValidSymbol(s string) bool {
	if len(s) < 1 || len(s) > 5 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
