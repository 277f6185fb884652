package market

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
)

// DefaultWatchList is used when a run does not name its symbols
var DefaultWatchList = []string{
	"NVDA.US", "TSLA.US", "GOOGL.US", "MSFT.US", "COIN.US",
	"BABA.US", "SPY.US", "GLD.US", "IBIT.US", "UVIX.US",
}

// Source returns a market snapshot for symbols. The snapshot is opaque,
// decoded JSON; ExtractPrices reads prices out of it.
type Source interface {
	Snapshot(ctx context.Context, symbols []string) (any, error)
}

// priceFields are tried in order for each snapshot entry
var priceFields = []string{"last_done", "price", "close", "prev_close"}

// ExtractPrices reads symbol prices from a snapshot. It accepts a list of
// entries or an object wrapping the list under "snapshots" or "data".
// Entries without a symbol or a positive price are skipped.
func ExtractPrices(snapshot any) map[string]float64 {
	prices := make(map[string]float64)

	var entries []any
	switch s := snapshot.(type) {
	case []any:
		entries = s
	case []map[string]any:
		for _, e := range s {
			entries = append(entries, e)
		}
	case map[string]any:
		if list, ok := s["snapshots"].([]any); ok {
			entries = list
		} else if list, ok := s["data"].([]any); ok {
			entries = list
		}
	}

	for _, entry := range entries {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		symbol, _ := fields["symbol"].(string)
		if symbol == "" {
			continue
		}
		for _, name := range priceFields {
			if price, ok := toFloat(fields[name]); ok && price > 0 && !math.IsInf(price, 1) {
				prices[symbol] = price
				break
			}
		}
	}

	return prices
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// StaticSource serves fixed prices. It backs offline runs and tests.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[string]float64
}

func NewStaticSource(prices map[string]float64) *StaticSource {
	s := &StaticSource{prices: make(map[string]float64, len(prices))}
	for symbol, price := range prices {
		s.prices[symbol] = price
	}
	return s
}

// SetPrice updates one symbol's price
func (s *StaticSource) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[symbol] = price
}

func (s *StaticSource) Snapshot(_ context.Context, symbols []string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]any, 0, len(symbols))
	for _, symbol := range symbols {
		price, ok := s.prices[symbol]
		if !ok {
			continue
		}
		entries = append(entries, map[string]any{
			"symbol": symbol,
			"price":  price,
		})
	}
	return entries, nil
}
