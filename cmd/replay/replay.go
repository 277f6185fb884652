package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tradeking/tradeking-api/internal/account"
	"github.com/tradeking/tradeking-api/internal/executor"
)

// maxLineSize bounds one decision text
const maxLineSize = 1 << 20

// replayStats summarizes a replay run
type replayStats struct {
	lines        int
	skipped      int
	instructions int
	succeeded    int
	failed       int
}

// parseDecisionLine accepts a JSON string or an object with a "decision"
// field. Blank lines yield "" with no error.
func parseDecisionLine(line []byte) (string, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return "", nil
	}

	switch line[0] {
	case '"':
		var text string
		if err := json.Unmarshal(line, &text); err != nil {
			return "", fmt.Errorf("invalid decision string: %w", err)
		}
		return text, nil
	case '{':
		var doc struct {
			Decision *string `json:"decision"`
		}
		if err := json.Unmarshal(line, &doc); err != nil {
			return "", fmt.Errorf("invalid decision object: %w", err)
		}
		if doc.Decision == nil {
			return "", fmt.Errorf("decision object has no \"decision\" field")
		}
		return *doc.Decision, nil
	default:
		return "", fmt.Errorf("expected a JSON string or object")
	}
}

// loadPrices reads a {"SYMBOL": price} document
func loadPrices(r io.Reader) (map[string]float64, error) {
	var raw map[string]float64
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode prices: %w", err)
	}
	prices := make(map[string]float64, len(raw))
	for symbol, price := range raw {
		prices[strings.ToUpper(strings.TrimSpace(symbol))] = price
	}
	return prices, nil
}

// replay feeds every decision line in r through the executor against acct
func replay(r io.Reader, acct *account.Account, prices map[string]float64) (replayStats, error) {
	var stats replayStats
	exec := executor.NewExecutor(acct)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		stats.lines++
		logger := log.With().Int("line", stats.lines).Logger()

		text, err := parseDecisionLine(scanner.Bytes())
		if err != nil {
			stats.skipped++
			logger.Warn().Err(err).Msg("Skipping line")
			continue
		}
		if text == "" {
			stats.skipped++
			continue
		}

		results := exec.ParseAndExecute(text, prices)
		for _, result := range results {
			stats.instructions++
			var event *zerolog.Event
			if result.Success {
				stats.succeeded++
				event = logger.Info()
			} else {
				stats.failed++
				event = logger.Warn()
			}
			if result.Trade != nil {
				event = event.Str("action", result.Trade.Action).Str("symbol", result.Trade.Symbol)
			}
			event.Bool("success", result.Success).Msg(result.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read decisions: %w", err)
	}
	return stats, nil
}

// printSummary writes the run statistics and the final asset breakdown
func printSummary(w io.Writer, stats replayStats, assets account.AssetBreakdown) {
	fmt.Fprintf(w, "\nReplay Summary:\n")
	fmt.Fprintf(w, "==============\n")
	fmt.Fprintf(w, "Lines read:        %d (skipped %d)\n", stats.lines, stats.skipped)
	fmt.Fprintf(w, "Instructions:      %d\n", stats.instructions)
	fmt.Fprintf(w, "Succeeded:         %d\n", stats.succeeded)
	fmt.Fprintf(w, "Failed:            %d\n", stats.failed)

	fmt.Fprintf(w, "\nFinal Assets:\n")
	fmt.Fprintf(w, "Cash:              %.2f\n", assets.Cash)
	fmt.Fprintf(w, "Positions value:   %.2f\n", assets.PositionsValue)
	fmt.Fprintf(w, "Total assets:      %.2f\n", assets.TotalAssets)
	fmt.Fprintf(w, "Total P&L:         %.2f\n", assets.TotalPnL)
	fmt.Fprintf(w, "Unrealized P&L:    %.2f\n", assets.TotalUnrealizedPnL)

	if len(assets.Positions) > 0 {
		fmt.Fprintf(w, "\n%-12s %10s %12s %14s\n", "Symbol", "Quantity", "Price", "Market value")
		for _, p := range assets.Positions {
			fmt.Fprintf(w, "%-12s %10d %12.2f %14.2f\n", p.Symbol, p.Quantity, p.CurrentPrice, p.MarketValue)
		}
	}
}
