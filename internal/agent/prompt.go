package agent

import (
	"sort"
	"strings"
)

// TradePrompt is rendered with RenderPrompt. Placeholders: model_name,
// account_data, positions_data, market_data, assets_data, orders_data.
const TradePrompt = `You are the AI trading assistant model named {{model_name}}.
You are participating as an autonomous U.S. stock trading agent competing with other AIs in a live simulation.
Based on the following information, generate a specific trading decision:

- Account Info: {{account_data}}
- Positions: {{positions_data}}
- Market Data: {{market_data}}
- Assets: {{assets_data}}
- Order History: {{orders_data}}

Trading Environment:
- Instruments: NVDA, TSLA, GOOGL, MSFT, COIN, BABA, SPY, GLD, IBIT, UVIX
- Market Hours: 09:30-16:00 ET
- Virtual Account: $100,000 cash, whole shares only, orders fill immediately at the quoted price.
- Decision Frequency: Every 5 minutes you analyze data.

Trading Rules:
1. You may buy, sell, or hold any listed instrument.
2. Every position must have a take-profit target and a stop-loss or invalidation level.
3. If no valid trade condition is met, HOLD.

Please analyze the current market and provide a clear trading suggestion including:
1. Whether to trade (Yes/No)
2. Trade Direction (Buy/Sell/Hold)
3. Suggested Symbol(s)
4. Trade Rationale
5. Take-Profit and Stop-Loss levels

When you trade, finish with the orders as a JSON array, for example:
[{"action": "BUY", "symbol": "NVDA.US", "quantity": 10}]
Omit the array when you HOLD. Respond concisely in plain English.`

// RenderPrompt replaces every {{key}} in template with its value. Unknown
// placeholders are left untouched.
func RenderPrompt(template string, vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
