package utils

import "strings"

// ParseSymbols splits a comma-separated list of tickers or currency codes.
// Values are trimmed and upper-cased, empties and duplicates are dropped
// and the first occurrence order is kept. Returns nil for blank input.
func ParseSymbols(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	seen := make(map[string]bool)
	var result []string
	for _, v := range strings.Split(s, ",") {
		sym := strings.ToUpper(strings.TrimSpace(v))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		result = append(result, sym)
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
