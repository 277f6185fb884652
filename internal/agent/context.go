package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tradeking/tradeking-api/internal/account"
	"github.com/tradeking/tradeking-api/internal/market"
)

// orderHistoryDepth is how many recent orders are shown to the model
const orderHistoryDepth = 50

// AccountView is the read side of the virtual account
type AccountView interface {
	Info() account.Info
	Positions() []account.PositionView
	OrderHistory(limit int) []account.Order
	CalculateAssets(marketPrices map[string]float64) account.AssetBreakdown
}

// ContextLoader gathers the prompt context from a market source and the account
type ContextLoader struct {
	source    market.Source
	account   AccountView
	watchList []string
}

// NewContextLoader uses market.DefaultWatchList when watchList is empty
func NewContextLoader(source market.Source, acct AccountView, watchList []string) *ContextLoader {
	if len(watchList) == 0 {
		watchList = market.DefaultWatchList
	}
	return &ContextLoader{
		source:    source,
		account:   acct,
		watchList: append([]string(nil), watchList...),
	}
}

// Gather fetches a snapshot for symbols (or the watch list) and renders every
// context field as compact JSON.
func (l *ContextLoader) Gather(ctx context.Context, symbols []string) (State, error) {
	if len(symbols) == 0 {
		symbols = l.watchList
	}

	snapshot, err := l.source.Snapshot(ctx, symbols)
	if err != nil {
		return State{}, fmt.Errorf("failed to load market data: %w", err)
	}
	prices := market.ExtractPrices(snapshot)

	state := State{
		Symbols:      append([]string(nil), symbols...),
		MarketPrices: prices,
	}

	fields := []struct {
		dst   *string
		value any
	}{
		{&state.AccountData, l.account.Info()},
		{&state.PositionsData, l.account.Positions()},
		{&state.MarketData, snapshot},
		{&state.AssetsData, l.account.CalculateAssets(prices)},
		{&state.OrdersData, l.account.OrderHistory(orderHistoryDepth)},
	}
	for _, f := range fields {
		rendered, err := compactJSON(f.value)
		if err != nil {
			return State{}, err
		}
		*f.dst = rendered
	}

	return state, nil
}

func compactJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to render prompt context: %w", err)
	}
	return string(data), nil
}
