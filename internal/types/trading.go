package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Action is the side of a trade instruction
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

var ErrInvalidAction = errors.New("invalid action")

// ParseAction normalizes case and surrounding whitespace and rejects anything
// other than BUY or SELL
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy, nil
	case ActionSell:
		return ActionSell, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidAction, s)
}

func (a Action) String() string {
	return string(a)
}

// Instruction is one candidate trade extracted from decision text or
// submitted as a structured document. Price is nil when the market price
// should be used.
type Instruction struct {
	Action   string   `json:"action"`
	Symbol   string   `json:"symbol"`
	Quantity float64  `json:"quantity"`
	Price    *float64 `json:"price"`

	// quantityText keeps a non-numeric quantity as it appeared in the source
	quantityText string
	// priceText keeps a price that was supplied but could not be read
	priceText string
}

// NewInstruction builds an instruction with an optional price
func NewInstruction(action, symbol string, quantity float64, price *float64) Instruction {
	return Instruction{
		Action:   action,
		Symbol:   symbol,
		Quantity: quantity,
		Price:    price,
	}
}

// QuantityText renders the quantity the way it was supplied
func (i Instruction) QuantityText() string {
	if i.quantityText != "" {
		return i.quantityText
	}
	return strconv.FormatFloat(i.Quantity, 'f', -1, 64)
}

// RejectedPrice returns the raw price token when one was supplied but could
// not be read as a number
func (i Instruction) RejectedPrice() (string, bool) {
	return i.priceText, i.priceText != ""
}

// UnmarshalJSON tolerates the loosely typed records language models emit:
// numeric strings are accepted for price, and a non-numeric quantity or price
// is kept so that validation can report it instead of failing the whole
// document
func (i *Instruction) UnmarshalJSON(data []byte) error {
	var raw struct {
		Action   json.RawMessage `json:"action"`
		Symbol   json.RawMessage `json:"symbol"`
		Quantity json.RawMessage `json:"quantity"`
		Price    json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*i = Instruction{
		Action: rawText(raw.Action),
		Symbol: rawText(raw.Symbol),
	}

	if isPresent(raw.Quantity) {
		var qty float64
		if err := json.Unmarshal(raw.Quantity, &qty); err == nil {
			i.Quantity = qty
		} else {
			i.quantityText = rawText(raw.Quantity)
		}
	}

	if isPresent(raw.Price) {
		var price float64
		if err := json.Unmarshal(raw.Price, &price); err == nil {
			i.Price = &price
		} else if parsed, err := strconv.ParseFloat(strings.TrimSpace(rawText(raw.Price)), 64); err == nil {
			i.Price = &parsed
		} else {
			i.priceText = rawText(raw.Price)
		}
	}

	return nil
}

func isPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

// rawText returns a JSON string's value, or the raw token for anything else
func rawText(raw json.RawMessage) string {
	if !isPresent(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// ExecutionResult is the outcome of applying one instruction. Trade is nil
// only when the input could not be decoded at all.
type ExecutionResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Trade   *Instruction `json:"trade"`
}

// Float64 returns a pointer to v, for optional prices
func Float64(v float64) *float64 {
	return &v
}
