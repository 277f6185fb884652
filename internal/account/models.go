package account

import "github.com/tradeking/tradeking-api/internal/types"

const (
	// DefaultInitialCash is the starting balance of a fresh account in USD
	DefaultInitialCash = 100000.0
	Currency           = "USD"
	StatusFilled       = "FILLED"
)

// Position is the aggregated holding of one symbol at a weighted-average cost
type Position struct {
	Symbol    string  `json:"symbol"`
	Quantity  int64   `json:"quantity"`
	CostBasis float64 `json:"cost_basis"` // average cost per share
}

// TotalCost is the book cost of the holding
func (p Position) TotalCost() float64 {
	return float64(p.Quantity) * p.CostBasis
}

// Order is a filled trade. Orders are appended and never modified.
type Order struct {
	Timestamp   string       `json:"timestamp"`
	OrderType   types.Action `json:"order_type"` // BUY or SELL
	Symbol      string       `json:"symbol"`
	Quantity    int64        `json:"quantity"`
	Price       float64      `json:"price"`
	TotalAmount float64      `json:"total_amount"`
	Status      string       `json:"status"` // always FILLED
}

type Info struct {
	CashBalance float64 `json:"cash_balance"`
	InitialCash float64 `json:"initial_cash"`
	Currency    string  `json:"currency"`
}

type PositionView struct {
	Symbol    string  `json:"symbol"`
	Quantity  int64   `json:"quantity"`
	CostBasis float64 `json:"cost_basis"`
	TotalCost float64 `json:"total_cost"`
}

type PositionValuation struct {
	Symbol        string  `json:"symbol"`
	Quantity      int64   `json:"quantity"`
	CostBasis     float64 `json:"cost_basis"`
	CurrentPrice  float64 `json:"current_price"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// AssetBreakdown values the account at a set of market prices
type AssetBreakdown struct {
	Cash               float64             `json:"cash"`
	PositionsValue     float64             `json:"positions_value"`
	TotalAssets        float64             `json:"total_assets"`
	InitialCash        float64             `json:"initial_cash"`
	TotalPnL           float64             `json:"total_pnl"`
	TotalUnrealizedPnL float64             `json:"total_unrealized_pnl"`
	Positions          []PositionValuation `json:"positions"`
}

// Snapshot is the persisted shape of an account
type Snapshot struct {
	InitialCash  float64             `json:"initial_cash"`
	CashBalance  float64             `json:"cash_balance"`
	Positions    map[string]Position `json:"positions"`
	OrderHistory []Order             `json:"order_history"`
}
