package extractor

import (
	"testing"

	"github.com/tradeking/tradeking-api/internal/types"
)

func priceOf(i types.Instruction) float64 {
	if i.Price == nil {
		return -1
	}
	return *i.Price
}

func TestExtract_StructuredObjectInProse(t *testing.T) {
	text := `Based on analysis, I recommend:
	{"action": "BUY", "symbol": "AAPL.US", "quantity": 100, "price": 150.0}
	I would also SELL 20 shares of TSLA at $200 if it weakens.`

	got := New().Extract(text)
	if len(got) != 1 {
		t.Fatalf("expected only the structured instruction, got %d: %+v", len(got), got)
	}
	if got[0].Action != "BUY" || got[0].Symbol != "AAPL.US" || got[0].Quantity != 100 || priceOf(got[0]) != 150 {
		t.Errorf("unexpected instruction %+v", got[0])
	}
}

func TestExtract_StructuredArray(t *testing.T) {
	text := `
	[
		{"action": "BUY", "symbol": "AAPL.US", "quantity": 100},
		{"action": "BUY", "symbol": "TSLA.US", "quantity": 50}
	]`

	got := New().Extract(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(got))
	}
	if got[1].Symbol != "TSLA.US" || got[1].Price != nil {
		t.Errorf("unexpected second instruction %+v", got[1])
	}
}

func TestExtract_MultipleFragmentsAndMalformed(t *testing.T) {
	text := `First {"action": "BUY", "symbol": "NVDA.US", "quantity": 5}
	then a broken one {"action": "SELL", "symbol": }
	and {"action": "SELL", "symbol": "GLD.US", "quantity": 3, "price": "190.5"}`

	got := Structured(text)
	if len(got) != 2 {
		t.Fatalf("expected malformed fragment to be skipped, got %d: %+v", len(got), got)
	}
	if got[1].Symbol != "GLD.US" || priceOf(got[1]) != 190.5 {
		t.Errorf("expected numeric string price to be accepted, got %+v", got[1])
	}
}

func TestExtract_NaturalLanguage(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		action string
		symbol string
		qty    float64
		price  float64
	}{
		{"quantity first with price", "I recommend to BUY 100 shares of AAPL at $150.00", "BUY", "AAPL", 100, 150},
		{"lower case", "we should sell 25 shares of tsla.us now", "SELL", "TSLA.US", 25, -1},
		{"symbol first", "SELL NVDA.US 40 shares at $120.5", "SELL", "NVDA.US", 40, 120.5},
		{"bare quantity first", "BUY 10 MSFT", "BUY", "MSFT", 10, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New().Extract(tt.text)
			if len(got) != 1 {
				t.Fatalf("expected 1 instruction, got %d: %+v", len(got), got)
			}
			i := got[0]
			if i.Action != tt.action || i.Symbol != tt.symbol || i.Quantity != tt.qty || priceOf(i) != tt.price {
				t.Errorf("got %+v (price %v), want %s %s %v @ %v", i, priceOf(i), tt.action, tt.symbol, tt.qty, tt.price)
			}
		})
	}
}

func TestExtract_NaturalLanguageMultipleMatches(t *testing.T) {
	text := "Plan: BUY 10 shares of NVDA at $100. Then SELL 5 shares of TSLA. Also BUY GLD 3 shares."

	got := New().Extract(text)
	if len(got) != 3 {
		t.Fatalf("expected 3 instructions, got %d: %+v", len(got), got)
	}
	// first pattern's matches come before the second pattern's
	if got[0].Symbol != "NVDA" || got[1].Symbol != "TSLA" || got[2].Symbol != "GLD" {
		t.Errorf("unexpected order %+v", got)
	}
}

func TestExtract_HoldYieldsNothing(t *testing.T) {
	for _, text := range []string{
		"",
		"HOLD. No valid trade conditions are met, keep current positions.",
		`{"decision": "hold"}`,
	} {
		if got := New().Extract(text); len(got) != 0 {
			t.Errorf("expected no instructions for %q, got %+v", text, got)
		}
	}
}

func TestExtract_CustomPatterns(t *testing.T) {
	p := DefaultPatterns()[1]
	got := New(p).Extract("BUY 100 shares of AAPL")
	if len(got) != 0 {
		t.Errorf("expected the symbol-first pattern alone to ignore quantity-first text, got %+v", got)
	}
}

func TestDecodeDocument(t *testing.T) {
	single, err := DecodeDocument([]byte(`{"action": "buy", "symbol": "AAPL.US", "quantity": 1}`))
	if err != nil || len(single) != 1 {
		t.Fatalf("expected single object to decode, got %v, %v", single, err)
	}

	batch, err := DecodeDocument([]byte(`[{"action": "BUY", "symbol": "A", "quantity": 1}, {"action": "SELL", "symbol": "B", "quantity": "lots"}]`))
	if err != nil || len(batch) != 2 {
		t.Fatalf("expected batch to decode, got %v, %v", batch, err)
	}
	if batch[1].Quantity != 0 || batch[1].QuantityText() != "lots" {
		t.Errorf("expected non-numeric quantity to be kept for reporting, got %+v", batch[1])
	}

	if _, err := DecodeDocument([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid document")
	}
}
