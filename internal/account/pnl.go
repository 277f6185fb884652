package account

import "github.com/tradeking/tradeking-api/internal/types"

// RealizedPnL replays the order log with the same weighted-average policy as
// Buy and Sell and sums proceeds minus the cost of each sold slice. Positions
// do not carry realized P&L, so this is the only place it is derived.
func (a *Account) RealizedPnL() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	type lot struct {
		quantity int64
		cost     float64
	}
	lots := make(map[string]lot)
	realized := 0.0

	for _, order := range a.orderHistory {
		l := lots[order.Symbol]
		switch order.OrderType {
		case types.ActionBuy:
			l.cost += order.TotalAmount
			l.quantity += order.Quantity
		case types.ActionSell:
			if l.quantity <= 0 {
				continue
			}
			avg := l.cost / float64(l.quantity)
			realized += order.TotalAmount - avg*float64(order.Quantity)
			l.quantity -= order.Quantity
			l.cost -= avg * float64(order.Quantity)
			if l.quantity <= 0 {
				l = lot{}
			}
		}
		lots[order.Symbol] = l
	}

	return realized
}
