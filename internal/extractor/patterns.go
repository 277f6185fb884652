package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tradeking/tradeking-api/internal/types"
)

// Pattern is one natural-language phrasing of a trade. The group indices
// point at submatches of Regexp; Price may be 0 when the phrasing has no price.
type Pattern struct {
	Name     string
	Regexp   *regexp.Regexp
	Action   int
	Quantity int
	Symbol   int
	Price    int
}

// DefaultPatterns recognises
//
//	BUY 100 shares of AAPL at $150.00
//	SELL TSLA.US 20 shares at $210
//
// Symbols are alphabetic with at most one market suffix such as ".US".
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:     "quantity_first",
			Regexp:   regexp.MustCompile(`(?i)\b(BUY|SELL)\s+(\d+)\s+(?:shares?\s+(?:of\s+)?)?([A-Z]+(?:\.[A-Z]+)?)\b(?:\s+at\s+\$?(\d+(?:\.\d+)?))?`),
			Action:   1,
			Quantity: 2,
			Symbol:   3,
			Price:    4,
		},
		{
			Name:     "symbol_first",
			Regexp:   regexp.MustCompile(`(?i)\b(BUY|SELL)\s+([A-Z]+(?:\.[A-Z]+)?)\s+(\d+)\b(?:\s+shares?)?(?:\s+at\s+\$?(\d+(?:\.\d+)?))?`),
			Action:   1,
			Quantity: 3,
			Symbol:   2,
			Price:    4,
		},
	}
}

// NaturalLanguage applies every pattern in order and returns one instruction
// per match. Overlapping matches from different patterns are all kept.
func NaturalLanguage(text string, patterns []Pattern) []types.Instruction {
	var instructions []types.Instruction

	for _, p := range patterns {
		for _, m := range p.Regexp.FindAllStringSubmatch(text, -1) {
			instruction, ok := p.build(m)
			if !ok {
				continue
			}
			instructions = append(instructions, instruction)
		}
	}

	return instructions
}

func (p Pattern) build(m []string) (types.Instruction, bool) {
	group := func(i int) string {
		if i <= 0 || i >= len(m) {
			return ""
		}
		return m[i]
	}

	action, symbol := group(p.Action), group(p.Symbol)
	if action == "" || symbol == "" {
		return types.Instruction{}, false
	}

	qty, err := strconv.ParseInt(group(p.Quantity), 10, 64)
	if err != nil {
		return types.Instruction{}, false
	}

	var price *float64
	if raw := group(p.Price); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			price = &v
		}
	}

	return types.NewInstruction(strings.ToUpper(action), strings.ToUpper(symbol), float64(qty), price), true
}
