package account

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tradeking/tradeking-api/internal/types"
)

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNoPosition         = errors.New("no position")
	ErrPositionLimit      = errors.New("position size limit exceeded")
)

// Account is a simulated brokerage account. Cash and positions change only
// through Buy and Sell, and every successful call appends one filled order.
type Account struct {
	mu           sync.RWMutex
	initialCash  float64
	cashBalance  float64
	positions    map[string]Position
	orderHistory []Order
	now          func() time.Time
}

// Option configures an Account
type Option func(*Account)

// WithClock replaces the clock used to timestamp orders
func WithClock(now func() time.Time) Option {
	return func(a *Account) {
		a.now = now
	}
}

// New creates an account whose cash balance starts at initialCash
func New(initialCash float64, opts ...Option) *Account {
	a := &Account{
		initialCash: initialCash,
		cashBalance: initialCash,
		positions:   make(map[string]Position),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FromSnapshot restores an account from its persisted shape
func FromSnapshot(snap Snapshot, opts ...Option) *Account {
	a := New(snap.InitialCash, opts...)
	a.cashBalance = snap.CashBalance
	for symbol, pos := range snap.Positions {
		if pos.Quantity <= 0 {
			continue
		}
		if pos.Symbol == "" {
			pos.Symbol = symbol
		}
		a.positions[symbol] = pos
	}
	a.orderHistory = append(a.orderHistory, snap.OrderHistory...)
	return a
}

// Buy purchases quantity shares at price. Callers validate quantity > 0
// and price >= 0. There are no partial fills: the order either fits in the
// cash balance and the int64 share count or is rejected without touching state.
func (a *Account) Buy(symbol string, quantity int64, price float64) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	existing, held := a.positions[symbol]
	if held && quantity > math.MaxInt64-existing.Quantity {
		return "", fmt.Errorf("%w: already holding %d shares of %s", ErrPositionLimit, existing.Quantity, symbol)
	}

	totalCost := float64(quantity) * price
	if totalCost > a.cashBalance {
		return "", fmt.Errorf("%w: need $%.2f, have $%.2f", ErrInsufficientFunds, totalCost, a.cashBalance)
	}

	a.cashBalance -= totalCost

	if held {
		totalQuantity := existing.Quantity + quantity
		a.positions[symbol] = Position{
			Symbol:    symbol,
			Quantity:  totalQuantity,
			CostBasis: (existing.TotalCost() + totalCost) / float64(totalQuantity),
		}
	} else {
		a.positions[symbol] = Position{
			Symbol:    symbol,
			Quantity:  quantity,
			CostBasis: price,
		}
	}

	a.record(types.ActionBuy, symbol, quantity, price, totalCost)

	log.Debug().
		Str("symbol", symbol).
		Int64("quantity", quantity).
		Float64("price", price).
		Float64("cash_balance", a.cashBalance).
		Msg("buy filled")

	return fmt.Sprintf("Bought %d shares of %s at $%.2f", quantity, symbol, price), nil
}

// Sell disposes of quantity shares at price. A partial sell keeps the
// remaining shares at the same cost basis; selling the whole holding
// removes the position.
func (a *Account) Sell(symbol string, quantity int64, price float64) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	position, ok := a.positions[symbol]
	if !ok {
		return "", fmt.Errorf("%w in %s", ErrNoPosition, symbol)
	}
	if quantity > position.Quantity {
		return "", fmt.Errorf("%w: have %d, trying to sell %d", ErrInsufficientShares, position.Quantity, quantity)
	}

	proceeds := float64(quantity) * price
	a.cashBalance += proceeds

	if quantity == position.Quantity {
		delete(a.positions, symbol)
	} else {
		position.Quantity -= quantity
		a.positions[symbol] = position
	}

	a.record(types.ActionSell, symbol, quantity, price, proceeds)

	log.Debug().
		Str("symbol", symbol).
		Int64("quantity", quantity).
		Float64("price", price).
		Float64("cash_balance", a.cashBalance).
		Msg("sell filled")

	return fmt.Sprintf("Sold %d shares of %s at $%.2f", quantity, symbol, price), nil
}

// record appends a filled order; callers hold the lock
func (a *Account) record(side types.Action, symbol string, quantity int64, price, total float64) {
	a.orderHistory = append(a.orderHistory, Order{
		Timestamp:   a.now().Format(time.RFC3339Nano),
		OrderType:   side,
		Symbol:      symbol,
		Quantity:    quantity,
		Price:       price,
		TotalAmount: total,
		Status:      StatusFilled,
	})
}

func (a *Account) Info() Info {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return Info{
		CashBalance: a.cashBalance,
		InitialCash: a.initialCash,
		Currency:    Currency,
	}
}

func (a *Account) CashBalance() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cashBalance
}

// Position returns the holding for symbol, if any
func (a *Account) Position(symbol string) (Position, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	pos, ok := a.positions[symbol]
	return pos, ok
}

// Positions lists current holdings ordered by symbol
func (a *Account) Positions() []PositionView {
	a.mu.RLock()
	defer a.mu.RUnlock()

	views := make([]PositionView, 0, len(a.positions))
	for _, pos := range a.sortedPositions() {
		views = append(views, PositionView{
			Symbol:    pos.Symbol,
			Quantity:  pos.Quantity,
			CostBasis: pos.CostBasis,
			TotalCost: pos.TotalCost(),
		})
	}
	return views
}

// OrderHistory returns filled orders newest first. A positive limit keeps
// only that many of the most recent orders.
func (a *Account) OrderHistory(limit int) []Order {
	a.mu.RLock()
	defer a.mu.RUnlock()

	n := len(a.orderHistory)
	if limit > 0 && limit < n {
		n = limit
	}

	orders := make([]Order, 0, n)
	for i := len(a.orderHistory) - 1; i >= 0 && len(orders) < n; i-- {
		orders = append(orders, a.orderHistory[i])
	}
	return orders
}

// CalculateAssets values every position at marketPrices. A symbol missing
// from marketPrices is valued at its cost basis, i.e. with no unrealized move.
func (a *Account) CalculateAssets(marketPrices map[string]float64) AssetBreakdown {
	a.mu.RLock()
	defer a.mu.RUnlock()

	breakdown := AssetBreakdown{
		Cash:        a.cashBalance,
		InitialCash: a.initialCash,
		Positions:   make([]PositionValuation, 0, len(a.positions)),
	}

	for _, pos := range a.sortedPositions() {
		currentPrice, ok := marketPrices[pos.Symbol]
		if !ok {
			currentPrice = pos.CostBasis
		}
		marketValue := float64(pos.Quantity) * currentPrice
		unrealized := marketValue - pos.TotalCost()

		breakdown.PositionsValue += marketValue
		breakdown.TotalUnrealizedPnL += unrealized
		breakdown.Positions = append(breakdown.Positions, PositionValuation{
			Symbol:        pos.Symbol,
			Quantity:      pos.Quantity,
			CostBasis:     pos.CostBasis,
			CurrentPrice:  currentPrice,
			MarketValue:   marketValue,
			UnrealizedPnL: unrealized,
		})
	}

	breakdown.TotalAssets = breakdown.Cash + breakdown.PositionsValue
	breakdown.TotalPnL = breakdown.TotalAssets - breakdown.InitialCash
	return breakdown
}

// Snapshot copies the full account state into its persisted shape
func (a *Account) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	positions := make(map[string]Position, len(a.positions))
	for symbol, pos := range a.positions {
		positions[symbol] = pos
	}
	orders := make([]Order, len(a.orderHistory))
	copy(orders, a.orderHistory)

	return Snapshot{
		InitialCash:  a.initialCash,
		CashBalance:  a.cashBalance,
		Positions:    positions,
		OrderHistory: orders,
	}
}

func (a *Account) sortedPositions() []Position {
	positions := make([]Position, 0, len(a.positions))
	for _, pos := range a.positions {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions
}
