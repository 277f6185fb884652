package storage

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&TradingDecision{}, &TradeExecution{}, &ModelPerformance{}, &PortfolioSnapshot{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewDatabase(db)
}

var baseTime = time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC)

func decisionAt(id, model string, offset time.Duration) *TradingDecision {
	return &TradingDecision{
		DecisionID:  id,
		Timestamp:   baseTime.Add(offset),
		ModelChoice: model,
		Temperature: 0.4,
		Decision:    "HOLD",
	}
}

func TestCreateAndGetDecision(t *testing.T) {
	d := newTestDatabase(t)

	price := 150.0
	decision := decisionAt("DEC_1", "gpt5", 0)
	decision.AccountData = `{"cash_balance":100000}`
	decision.Symbols = `["AAPL.US"]`
	decision.Trades = []TradeExecution{
		{Sequence: 1, Action: "SELL", Symbol: "TSLA.US", Quantity: "5", Success: false, Message: "no position in TSLA.US"},
		{Sequence: 0, Action: "BUY", Symbol: "AAPL.US", Quantity: "10", Price: &price, Success: true, Message: "Bought"},
	}
	decision.TradesSucceeded, decision.TradesFailed = 1, 1

	if err := d.CreateDecision(decision); err != nil {
		t.Fatal(err)
	}

	got, err := d.GetDecision("DEC_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.AccountData != decision.AccountData || got.Symbols != decision.Symbols {
		t.Errorf("context not round-tripped: %+v", got)
	}
	if len(got.Trades) != 2 || got.Trades[0].Sequence != 0 || *got.Trades[0].Price != 150 {
		t.Errorf("expected trades ordered by sequence, got %+v", got.Trades)
	}

	if _, err := d.GetDecision("DEC_missing"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestDecisionQueries(t *testing.T) {
	d := newTestDatabase(t)

	for i, model := range []string{"gpt5", "deepseek", "gpt5", "deepseek", "gpt5"} {
		id := "DEC_" + string(rune('a'+i))
		if err := d.CreateDecision(decisionAt(id, model, time.Duration(i)*time.Hour)); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := d.LatestDecisions(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != 2 || latest[0].DecisionID != "DEC_e" || latest[1].DecisionID != "DEC_d" {
		t.Errorf("unexpected latest %+v", latest)
	}

	byModel, err := d.DecisionsByModel("deepseek", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byModel) != 2 || byModel[0].DecisionID != "DEC_d" {
		t.Errorf("unexpected by model %+v", byModel)
	}

	inRange, err := d.DecisionsInRange(baseTime.Add(time.Hour), baseTime.Add(3*time.Hour), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(inRange) != 3 || inRange[0].DecisionID != "DEC_b" || inRange[2].DecisionID != "DEC_d" {
		t.Errorf("expected inclusive range oldest first, got %+v", inRange)
	}

	inRange, _ = d.DecisionsInRange(baseTime, baseTime.Add(4*time.Hour), "gpt5", 2)
	if len(inRange) != 2 || inRange[0].DecisionID != "DEC_a" {
		t.Errorf("unexpected filtered range %+v", inRange)
	}
}

func TestUpdatePerformance(t *testing.T) {
	d := newTestDatabase(t)

	perf, err := d.GetOrCreatePerformance("gpt5")
	if err != nil {
		t.Fatal(err)
	}
	if perf.TotalDecisions != 0 || perf.AvgExecutionTimeMs != nil {
		t.Errorf("expected empty performance row, got %+v", perf)
	}

	first, second := 100.0, 200.0
	if _, err := d.UpdatePerformance("gpt5", &first, true, 50); err != nil {
		t.Fatal(err)
	}
	perf, err = d.UpdatePerformance("gpt5", &second, false, -20)
	if err != nil {
		t.Fatal(err)
	}

	if perf.TotalDecisions != 2 || perf.SuccessfulDecisions != 1 || perf.FailedDecisions != 1 {
		t.Errorf("unexpected counters %+v", perf)
	}
	if perf.AvgExecutionTimeMs == nil || math.Abs(*perf.AvgExecutionTimeMs-110) > 1e-9 {
		t.Errorf("expected moving average 110, got %v", perf.AvgExecutionTimeMs)
	}
	if perf.TotalProfitLoss != 30 {
		t.Errorf("expected total P&L 30, got %f", perf.TotalProfitLoss)
	}
	if perf.FirstDecisionAt == nil || perf.LastDecisionAt == nil {
		t.Error("expected decision timestamps")
	}

	all, err := d.AllPerformance()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].ModelChoice != "gpt5" {
		t.Errorf("unexpected rows %+v", all)
	}
}

func TestSnapshotsAndEquityCurve(t *testing.T) {
	d := newTestDatabase(t)

	values := []struct {
		model      string
		total      float64
		realized   float64
		unrealized float64
	}{
		{"gpt5", 101000, 0, 1000},
		{"deepseek", 99000, 0, -1000},
		{"gpt5", 105000, 2000, 3000},
	}
	for i, v := range values {
		snap := &PortfolioSnapshot{
			SnapshotID:    "SNAP_" + string(rune('a'+i)),
			Timestamp:     baseTime.Add(time.Duration(i) * time.Minute),
			ModelChoice:   v.model,
			TotalValue:    v.total,
			CashBalance:   50000,
			Positions:     `{}`,
			RealizedPnL:   v.realized,
			UnrealizedPnL: v.unrealized,
		}
		if err := d.CreateSnapshot(snap); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := d.LatestSnapshot("")
	if err != nil {
		t.Fatal(err)
	}
	if latest.SnapshotID != "SNAP_c" || latest.TotalPnL != 5000 {
		t.Errorf("unexpected latest snapshot %+v", latest)
	}

	latest, _ = d.LatestSnapshot("deepseek")
	if latest.SnapshotID != "SNAP_b" {
		t.Errorf("unexpected latest deepseek snapshot %+v", latest)
	}

	if _, err := d.LatestSnapshot("other"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}

	snapshots, err := d.EquityCurve("gpt5", 1000)
	if err != nil {
		t.Fatal(err)
	}
	curve := NewEquityCurve("gpt5", snapshots)
	if len(curve.DataPoints) != 2 {
		t.Fatalf("expected 2 points, got %d", len(curve.DataPoints))
	}
	if curve.InitialValue != 100000 || curve.CurrentValue != 105000 || math.Abs(curve.TotalReturnPct-5) > 1e-9 {
		t.Errorf("unexpected curve %+v", curve)
	}
}

func TestNewEquityCurve_Empty(t *testing.T) {
	curve := NewEquityCurve("gpt5", nil)
	if curve.InitialValue != 0 || curve.TotalReturnPct != 0 || len(curve.DataPoints) != 0 {
		t.Errorf("unexpected curve %+v", curve)
	}
}

func TestPing(t *testing.T) {
	if err := newTestDatabase(t).Ping(); err != nil {
		t.Errorf("expected ping to succeed, got %v", err)
	}
}

func TestJSONText(t *testing.T) {
	if b, _ := JSONText(`{"a":1}`).MarshalJSON(); string(b) != `{"a":1}` {
		t.Errorf("expected raw JSON, got %s", b)
	}
	if b, _ := JSONText("").MarshalJSON(); string(b) != "null" {
		t.Errorf("expected null, got %s", b)
	}
	if b, _ := JSONText("not json").MarshalJSON(); string(b) != "null" {
		t.Errorf("expected invalid JSON to render as null, got %s", b)
	}
}
