package account

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/tradeking/tradeking-api/internal/types"
)

func fixedClock() func() time.Time {
	ts := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
	return func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}
}

func newTestAccount(cash float64) *Account {
	return New(cash, WithClock(fixedClock()))
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestBuy_CreatesPosition(t *testing.T) {
	a := newTestAccount(100000)

	msg, err := a.Buy("AAPL.US", 100, 150)
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if !strings.Contains(msg, "Bought 100 shares of AAPL.US at $150.00") {
		t.Errorf("unexpected message: %q", msg)
	}
	if a.CashBalance() != 85000 {
		t.Errorf("expected cash 85000, got %f", a.CashBalance())
	}

	pos, ok := a.Position("AAPL.US")
	if !ok {
		t.Fatal("expected position for AAPL.US")
	}
	if pos.Quantity != 100 || pos.CostBasis != 150 {
		t.Errorf("unexpected position %+v", pos)
	}

	orders := a.OrderHistory(0)
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	o := orders[0]
	if o.OrderType != types.ActionBuy || o.TotalAmount != 15000 || o.Status != StatusFilled {
		t.Errorf("unexpected order %+v", o)
	}
	if _, err := time.Parse(time.RFC3339Nano, o.Timestamp); err != nil {
		t.Errorf("timestamp %q is not ISO-8601: %v", o.Timestamp, err)
	}
}

func TestBuy_WeightedAverageCostBasis(t *testing.T) {
	a := newTestAccount(100000)

	if _, err := a.Buy("AAPL.US", 100, 150); err != nil {
		t.Fatalf("first buy failed: %v", err)
	}
	if _, err := a.Buy("AAPL.US", 50, 160); err != nil {
		t.Fatalf("second buy failed: %v", err)
	}

	pos, _ := a.Position("AAPL.US")
	if pos.Quantity != 150 {
		t.Errorf("expected quantity 150, got %d", pos.Quantity)
	}
	want := (100.0*150 + 50.0*160) / 150
	if !almostEqual(pos.CostBasis, want) {
		t.Errorf("expected cost basis %f, got %f", want, pos.CostBasis)
	}
	if math.Abs(pos.CostBasis-153.33) > 0.01 {
		t.Errorf("expected cost basis close to 153.33, got %f", pos.CostBasis)
	}
}

func TestBuy_InsufficientFunds(t *testing.T) {
	a := newTestAccount(1000)

	_, err := a.Buy("AAPL.US", 100, 150)
	if err == nil {
		t.Fatal("expected buy to fail")
	}
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
	if !strings.Contains(err.Error(), "insufficient funds") {
		t.Errorf("unexpected message %q", err.Error())
	}
	if a.CashBalance() != 1000 {
		t.Errorf("cash changed to %f", a.CashBalance())
	}
	if len(a.Positions()) != 0 {
		t.Errorf("expected no positions, got %v", a.Positions())
	}
	if len(a.OrderHistory(0)) != 0 {
		t.Error("expected no orders after a rejected buy")
	}
}

func TestBuy_PositionLimit(t *testing.T) {
	a := newTestAccount(1000)

	const lot = 9e18
	if _, err := a.Buy("ZZZ", lot, 0); err != nil {
		t.Fatalf("first buy failed: %v", err)
	}

	_, err := a.Buy("ZZZ", lot, 0)
	if !errors.Is(err, ErrPositionLimit) {
		t.Fatalf("expected ErrPositionLimit, got %v", err)
	}

	pos, ok := a.Position("ZZZ")
	if !ok || pos.Quantity != lot {
		t.Errorf("position must be unchanged, got %+v", pos)
	}
	if len(a.OrderHistory(0)) != 1 {
		t.Errorf("expected only the first order, got %d", len(a.OrderHistory(0)))
	}

	// the largest quantity that still fits is accepted
	if _, err := a.Buy("ZZZ", math.MaxInt64-lot, 0); err != nil {
		t.Errorf("expected buy up to the limit to succeed, got %v", err)
	}
	if pos, _ := a.Position("ZZZ"); pos.Quantity != math.MaxInt64 {
		t.Errorf("expected quantity at the limit, got %d", pos.Quantity)
	}
}

func TestBuy_ExactCashIsAllowed(t *testing.T) {
	a := newTestAccount(15000)

	if _, err := a.Buy("AAPL.US", 100, 150); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if a.CashBalance() != 0 {
		t.Errorf("expected zero cash, got %f", a.CashBalance())
	}
}

func TestSell_FullCloseRemovesPosition(t *testing.T) {
	a := newTestAccount(100000)
	a.Buy("AAPL.US", 100, 150)

	msg, err := a.Sell("AAPL.US", 100, 160)
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	if !strings.Contains(msg, "Sold 100 shares of AAPL.US at $160.00") {
		t.Errorf("unexpected message %q", msg)
	}
	if _, ok := a.Position("AAPL.US"); ok {
		t.Error("expected position to be removed")
	}
	if a.CashBalance() != 101000 {
		t.Errorf("expected cash 101000, got %f", a.CashBalance())
	}
}

func TestSell_PartialKeepsCostBasis(t *testing.T) {
	a := newTestAccount(100000)
	a.Buy("AAPL.US", 100, 150)

	if _, err := a.Sell("AAPL.US", 50, 170); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	pos, ok := a.Position("AAPL.US")
	if !ok {
		t.Fatal("expected remaining position")
	}
	if pos.Quantity != 50 || pos.CostBasis != 150 {
		t.Errorf("expected 50 @ 150, got %+v", pos)
	}
}

func TestSell_Failures(t *testing.T) {
	tests := []struct {
		name    string
		symbol  string
		qty     int64
		wantErr error
	}{
		{"no position", "TSLA.US", 10, ErrNoPosition},
		{"too many shares", "AAPL.US", 101, ErrInsufficientShares},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAccount(100000)
			a.Buy("AAPL.US", 100, 150)
			cash := a.CashBalance()

			_, err := a.Sell(tt.symbol, tt.qty, 150)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if a.CashBalance() != cash {
				t.Errorf("cash changed from %f to %f", cash, a.CashBalance())
			}
			if len(a.OrderHistory(0)) != 1 {
				t.Errorf("expected only the buy order, got %d orders", len(a.OrderHistory(0)))
			}
		})
	}
}

func TestOrderHistory_NewestFirstWithLimit(t *testing.T) {
	a := newTestAccount(100000)
	a.Buy("AAPL.US", 10, 100)
	a.Buy("TSLA.US", 5, 200)
	a.Sell("AAPL.US", 5, 110)

	orders := a.OrderHistory(0)
	if len(orders) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(orders))
	}
	if orders[0].Symbol != "AAPL.US" || orders[0].OrderType != types.ActionSell {
		t.Errorf("expected newest order first, got %+v", orders[0])
	}
	if orders[2].Symbol != "AAPL.US" || orders[2].OrderType != types.ActionBuy {
		t.Errorf("expected oldest order last, got %+v", orders[2])
	}

	limited := a.OrderHistory(2)
	if len(limited) != 2 || limited[1].Symbol != "TSLA.US" {
		t.Errorf("unexpected limited history %+v", limited)
	}

	if got := len(a.OrderHistory(10)); got != 3 {
		t.Errorf("expected limit above size to return all orders, got %d", got)
	}
}

func TestInfoAndPositions(t *testing.T) {
	a := newTestAccount(50000)
	a.Buy("TSLA.US", 10, 200)
	a.Buy("AAPL.US", 20, 100)

	info := a.Info()
	if info.CashBalance != 46000 || info.InitialCash != 50000 || info.Currency != "USD" {
		t.Errorf("unexpected info %+v", info)
	}

	positions := a.Positions()
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions))
	}
	if positions[0].Symbol != "AAPL.US" || positions[0].TotalCost != 2000 {
		t.Errorf("unexpected first position %+v", positions[0])
	}
	if positions[1].TotalCost != 2000 {
		t.Errorf("unexpected second position %+v", positions[1])
	}
}

func TestCalculateAssets(t *testing.T) {
	a := newTestAccount(100000)
	a.Buy("AAPL.US", 100, 150)
	a.Buy("TSLA.US", 10, 200)

	assets := a.CalculateAssets(map[string]float64{"AAPL.US": 160})

	if assets.Cash != 83000 {
		t.Errorf("expected cash 83000, got %f", assets.Cash)
	}
	// AAPL at market, TSLA falls back to its cost basis
	if assets.PositionsValue != 16000+2000 {
		t.Errorf("expected positions value 18000, got %f", assets.PositionsValue)
	}
	if assets.TotalAssets != 101000 {
		t.Errorf("expected total assets 101000, got %f", assets.TotalAssets)
	}
	if assets.TotalPnL != 1000 || assets.TotalUnrealizedPnL != 1000 {
		t.Errorf("unexpected pnl %f / %f", assets.TotalPnL, assets.TotalUnrealizedPnL)
	}
	if len(assets.Positions) != 2 {
		t.Fatalf("expected 2 position details, got %d", len(assets.Positions))
	}
	tsla := assets.Positions[1]
	if tsla.Symbol != "TSLA.US" || tsla.CurrentPrice != 200 || tsla.UnrealizedPnL != 0 {
		t.Errorf("expected TSLA valued at cost, got %+v", tsla)
	}
}

func TestRealizedPnL(t *testing.T) {
	a := newTestAccount(100000)
	a.Buy("AAPL.US", 100, 150)
	a.Buy("AAPL.US", 100, 170)
	a.Sell("AAPL.US", 50, 180) // avg 160 -> +1000
	a.Buy("TSLA.US", 10, 200)
	a.Sell("TSLA.US", 10, 190) // -100

	if got := a.RealizedPnL(); !almostEqual(got, 900) {
		t.Errorf("expected realized pnl 900, got %f", got)
	}
}

func TestInvariants_RandomSequence(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	symbols := []string{"AAPL.US", "TSLA.US", "NVDA.US"}
	a := newTestAccount(20000)

	for i := 0; i < 2000; i++ {
		symbol := symbols[rng.Intn(len(symbols))]
		qty := int64(rng.Intn(40) + 1)
		price := float64(rng.Intn(30000)) / 100

		if rng.Intn(2) == 0 {
			a.Buy(symbol, qty, price)
		} else {
			a.Sell(symbol, qty, price)
		}

		if a.CashBalance() < 0 {
			t.Fatalf("step %d: cash went negative: %f", i, a.CashBalance())
		}
		for _, pos := range a.Positions() {
			if pos.Quantity <= 0 {
				t.Fatalf("step %d: position %s has quantity %d", i, pos.Symbol, pos.Quantity)
			}
		}
	}

	cash := 20000.0
	held := make(map[string]int64)
	for _, o := range a.OrderHistory(0) {
		switch o.OrderType {
		case types.ActionBuy:
			cash -= o.TotalAmount
			held[o.Symbol] += o.Quantity
		case types.ActionSell:
			cash += o.TotalAmount
			held[o.Symbol] -= o.Quantity
		}
	}
	if math.Abs(cash-a.CashBalance()) > 1e-4 {
		t.Errorf("order log does not reconcile: log %f, account %f", cash, a.CashBalance())
	}
	for symbol, qty := range held {
		pos, ok := a.Position(symbol)
		if qty == 0 && ok {
			t.Errorf("%s fully sold but still held", symbol)
		}
		if qty > 0 && (!ok || pos.Quantity != qty) {
			t.Errorf("%s: log says %d held, account has %+v", symbol, qty, pos)
		}
	}
}
