package executor

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tradeking/tradeking-api/internal/extractor"
	"github.com/tradeking/tradeking-api/internal/types"
)

// Ledger is the part of the virtual account the executor trades against
type Ledger interface {
	Buy(symbol string, quantity int64, price float64) (string, error)
	Sell(symbol string, quantity int64, price float64) (string, error)
}

// Executor validates candidate instructions, resolves their price and
// applies them to a ledger. Every instruction in a batch is executed on its
// own: a failure never rolls back or skips its siblings.
type Executor struct {
	ledger    Ledger
	extractor extractor.Extractor
}

// NewExecutor creates an executor using the default instruction extractor
func NewExecutor(ledger Ledger) *Executor {
	return &Executor{
		ledger:    ledger,
		extractor: extractor.New(),
	}
}

// WithExtractor swaps the extractor used by ParseAndExecute
func (e *Executor) WithExtractor(x extractor.Extractor) *Executor {
	e.extractor = x
	return e
}

// ParseAndExecute extracts instructions from decision text and executes them
// in the order they were found. Text with no instructions yields no results.
func (e *Executor) ParseAndExecute(decisionText string, marketPrices map[string]float64) []types.ExecutionResult {
	return e.ExecuteTrades(e.extractor.Extract(decisionText), marketPrices)
}

// ExecuteTradesFromJSON executes a JSON document holding one instruction or
// an array of them. A document that cannot be decoded produces a single
// failed result with no trade.
func (e *Executor) ExecuteTradesFromJSON(document string, marketPrices map[string]float64) []types.ExecutionResult {
	instructions, err := extractor.DecodeDocument([]byte(document))
	if err != nil {
		log.Warn().Err(err).Str("component", "executor").Msg("invalid trade document")
		return []types.ExecutionResult{{
			Success: false,
			Message: fmt.Sprintf("invalid JSON: %v", err),
		}}
	}
	return e.ExecuteTrades(instructions, marketPrices)
}

// ExecuteTrades executes an already decoded batch
func (e *Executor) ExecuteTrades(instructions []types.Instruction, marketPrices map[string]float64) []types.ExecutionResult {
	results := make([]types.ExecutionResult, 0, len(instructions))
	for _, instruction := range instructions {
		results = append(results, e.Execute(instruction, marketPrices))
	}
	return results
}

// Execute validates and applies one instruction. Rules are checked in order
// and the first failure is reported; ledger failures are passed through as-is.
func (e *Executor) Execute(instruction types.Instruction, marketPrices map[string]float64) types.ExecutionResult {
	trade := instruction
	trade.Action = strings.ToUpper(strings.TrimSpace(trade.Action))
	trade.Symbol = strings.ToUpper(strings.TrimSpace(trade.Symbol))

	logger := log.With().
		Str("component", "executor").
		Str("action", trade.Action).
		Str("symbol", trade.Symbol).
		Str("quantity", trade.QuantityText()).
		Logger()

	action, err := types.ParseAction(trade.Action)
	if err != nil {
		return reject(logger, trade, "invalid action: %s", trade.Action)
	}

	if trade.Symbol == "" {
		return reject(logger, trade, "symbol required")
	}

	// fractional quantities are truncated to whole shares
	if math.IsNaN(trade.Quantity) || trade.Quantity < 1 || trade.Quantity >= math.MaxInt64 {
		return reject(logger, trade, "invalid quantity: %s", trade.QuantityText())
	}
	quantity := int64(trade.Quantity)
	trade.Quantity = float64(quantity)

	if raw, ok := trade.RejectedPrice(); ok {
		return reject(logger, trade, "invalid price: %s", raw)
	}
	if trade.Price != nil && !validPrice(*trade.Price) {
		return reject(logger, trade, "invalid price: %v", *trade.Price)
	}

	if trade.Price == nil {
		price, ok := marketPrices[trade.Symbol]
		if !ok {
			return reject(logger, trade, "no price available for %s", trade.Symbol)
		}
		if !validPrice(price) {
			return reject(logger, trade, "invalid price: %v", price)
		}
		trade.Price = types.Float64(price)
	}

	var message string
	switch action {
	case types.ActionBuy:
		message, err = e.ledger.Buy(trade.Symbol, quantity, *trade.Price)
	case types.ActionSell:
		message, err = e.ledger.Sell(trade.Symbol, quantity, *trade.Price)
	}

	if err != nil {
		logger.Warn().Err(err).Float64("price", *trade.Price).Msg("ledger rejected trade")
		return types.ExecutionResult{Success: false, Message: err.Error(), Trade: &trade}
	}

	logger.Info().Float64("price", *trade.Price).Msg(message)
	return types.ExecutionResult{Success: true, Message: message, Trade: &trade}
}

func reject(logger zerolog.Logger, trade types.Instruction, format string, args ...any) types.ExecutionResult {
	message := fmt.Sprintf(format, args...)
	logger.Warn().Msg(message)
	return types.ExecutionResult{Success: false, Message: message, Trade: &trade}
}

// validPrice rejects negative, NaN and infinite prices
func validPrice(p float64) bool {
	return p >= 0 && !math.IsInf(p, 1)
}
