package reqcache

import (
	"strings"

	"github.com/Benxalil/EcoGest-07-sub004/pkg/errors"
)

// Strategy selects how a lookup trades freshness against latency.
type Strategy string

const (
	// CacheFirst returns a fresh entry without fetching, and fetches otherwise.
	CacheFirst Strategy = "cache-first"

	// NetworkFirst always fetches, falling back to any cached entry (fresh or
	// stale) when the fetch fails.
	NetworkFirst Strategy = "network-first"

	// StaleWhileRevalidate returns any cached entry at once and refreshes a
	// stale one in the background. Without an entry it fetches synchronously.
	StaleWhileRevalidate Strategy = "stale-while-revalidate"
)

// Strategies lists every supported strategy.
var Strategies = []Strategy{CacheFirst, NetworkFirst, StaleWhileRevalidate}

// String returns the strategy name.
func (s Strategy) String() string { return string(s) }

// Valid reports whether s is a supported strategy.
func (s Strategy) Valid() bool {
	switch s {
	case CacheFirst, NetworkFirst, StaleWhileRevalidate:
		return true
	}
	return false
}

// ParseStrategy parses a strategy name. Matching is case-insensitive and
// "swr" is accepted for stale-while-revalidate.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(name)))
	if s == "swr" {
		return StaleWhileRevalidate, nil
	}
	if !s.Valid() {
		return "", errors.New(errors.ErrCodeInvalidInput, "unknown cache strategy %q (want cache-first, network-first or stale-while-revalidate)", name)
	}
	return s, nil
}
