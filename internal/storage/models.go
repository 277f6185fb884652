package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// JSONText is a JSON document kept in a text column. It is emitted as raw
// JSON in API responses so stored context reads back as objects.
type JSONText string

func (j JSONText) MarshalJSON() ([]byte, error) {
	if j == "" || !json.Valid([]byte(j)) {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

func (j *JSONText) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*j = ""
		return nil
	}
	*j = JSONText(data)
	return nil
}

func (j JSONText) Value() (driver.Value, error) {
	if j == "" {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSONText) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = ""
	case string:
		*j = JSONText(v)
	case []byte:
		*j = JSONText(v)
	default:
		return fmt.Errorf("unsupported JSONText source %T", src)
	}
	return nil
}

// MarshalJSONText renders v as a compact JSONText
func MarshalJSONText(v any) (JSONText, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return JSONText(data), nil
}

// TradingDecision is one agent run with its full context and outcome
type TradingDecision struct {
	gorm.Model      `json:"-"`
	DecisionID      string           `gorm:"uniqueIndex;size:64" json:"decision_id"`
	Timestamp       time.Time        `gorm:"not null" json:"timestamp"`
	ModelChoice     string           `gorm:"size:50;not null" json:"model_choice"`
	Temperature     float64          `json:"temperature"`
	AccountData     JSONText         `gorm:"type:text" json:"account_data,omitempty"`
	PositionsData   JSONText         `gorm:"type:text" json:"positions_data,omitempty"`
	MarketData      JSONText         `gorm:"type:text" json:"market_data,omitempty"`
	AssetsData      JSONText         `gorm:"type:text" json:"assets_data,omitempty"`
	OrdersData      JSONText         `gorm:"type:text" json:"orders_data,omitempty"`
	Symbols         JSONText         `gorm:"type:text" json:"symbols,omitempty"`
	Prompt          string           `gorm:"type:text" json:"prompt,omitempty"`
	Decision        string           `gorm:"type:text;not null" json:"decision"`
	ExecutionTimeMs *float64         `json:"execution_time_ms"`
	ErrorMessage    *string          `gorm:"type:text" json:"error_message"`
	TradesSucceeded int              `json:"trades_succeeded"`
	TradesFailed    int              `json:"trades_failed"`
	Trades          []TradeExecution `gorm:"foreignKey:DecisionID;references:DecisionID" json:"trades,omitempty"`
}

// DecisionSummary is the list view of a decision
type DecisionSummary struct {
	DecisionID      string    `json:"decision_id"`
	Timestamp       time.Time `json:"timestamp"`
	ModelChoice     string    `json:"model_choice"`
	Temperature     float64   `json:"temperature"`
	Decision        string    `json:"decision"`
	Symbols         JSONText  `json:"symbols,omitempty"`
	ExecutionTimeMs *float64  `json:"execution_time_ms"`
	ErrorMessage    *string   `json:"error_message"`
	TradesSucceeded int       `json:"trades_succeeded"`
	TradesFailed    int       `json:"trades_failed"`
}

func (d TradingDecision) Summary() DecisionSummary {
	return DecisionSummary{
		DecisionID:      d.DecisionID,
		Timestamp:       d.Timestamp,
		ModelChoice:     d.ModelChoice,
		Temperature:     d.Temperature,
		Decision:        d.Decision,
		Symbols:         d.Symbols,
		ExecutionTimeMs: d.ExecutionTimeMs,
		ErrorMessage:    d.ErrorMessage,
		TradesSucceeded: d.TradesSucceeded,
		TradesFailed:    d.TradesFailed,
	}
}

// TradeExecution is the result of one instruction found in a decision
type TradeExecution struct {
	gorm.Model `json:"-"`
	DecisionID string   `gorm:"size:64;index" json:"decision_id"`
	Sequence   int      `json:"sequence"`
	Action     string   `gorm:"size:10" json:"action"`
	Symbol     string   `gorm:"size:32" json:"symbol"`
	Quantity   string   `gorm:"size:32" json:"quantity"`
	Price      *float64 `json:"price"`
	Success    bool     `json:"success"`
	Message    string   `gorm:"type:text" json:"message"`
}

// ModelPerformance aggregates decision outcomes per model
type ModelPerformance struct {
	ID                  uint       `gorm:"primaryKey" json:"-"`
	CreatedAt           time.Time  `json:"-"`
	ModelChoice        string     `gorm:"size:50;uniqueIndex;not null" json:"model_choice"`
	TotalDecisions      int        `gorm:"not null;default:0" json:"total_decisions"`
	SuccessfulDecisions int        `gorm:"not null;default:0" json:"successful_decisions"`
	FailedDecisions     int        `gorm:"not null;default:0" json:"failed_decisions"`
	AvgExecutionTimeMs  *float64   `json:"avg_execution_time_ms"`
	TotalProfitLoss     float64    `gorm:"not null;default:0" json:"total_profit_loss"`
	FirstDecisionAt     *time.Time `json:"first_decision_at"`
	LastDecisionAt      *time.Time `json:"last_decision_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// PortfolioSnapshot is the account valuation after a decision
type PortfolioSnapshot struct {
	gorm.Model    `json:"-"`
	SnapshotID    string    `gorm:"uniqueIndex;size:64" json:"snapshot_id"`
	Timestamp     time.Time `gorm:"not null" json:"timestamp"`
	ModelChoice   string    `gorm:"size:50;not null" json:"model_choice"`
	TotalValue    float64   `gorm:"not null" json:"total_value"`
	CashBalance   float64   `gorm:"not null" json:"cash_balance"`
	Positions     JSONText  `gorm:"type:text;not null" json:"positions"`
	RealizedPnL   float64   `gorm:"column:realized_pnl;not null;default:0" json:"realized_pnl"`
	UnrealizedPnL float64   `gorm:"column:unrealized_pnl;not null;default:0" json:"unrealized_pnl"`
	TotalPnL      float64   `gorm:"column:total_pnl;not null;default:0" json:"total_pnl"`
	DecisionID    string    `gorm:"size:64" json:"decision_id,omitempty"`
}

// EquityPoint is one sample of an equity curve
type EquityPoint struct {
	Timestamp  time.Time `json:"timestamp"`
	TotalValue float64   `json:"total_value"`
	TotalPnL   float64   `json:"total_pnl"`
}

// EquityCurve is a model's snapshot series with its overall return
type EquityCurve struct {
	ModelChoice    string        `json:"model_choice"`
	DataPoints     []EquityPoint `json:"data_points"`
	InitialValue   float64       `json:"initial_value"`
	CurrentValue   float64       `json:"current_value"`
	TotalReturnPct float64       `json:"total_return_pct"`
}

// NewEquityCurve derives the curve from snapshots ordered oldest first. The
// starting value is the first snapshot with its P&L removed.
func NewEquityCurve(modelChoice string, snapshots []PortfolioSnapshot) EquityCurve {
	curve := EquityCurve{
		ModelChoice: modelChoice,
		DataPoints:  make([]EquityPoint, 0, len(snapshots)),
	}
	if len(snapshots) == 0 {
		return curve
	}

	for _, s := range snapshots {
		curve.DataPoints = append(curve.DataPoints, EquityPoint{
			Timestamp:  s.Timestamp,
			TotalValue: s.TotalValue,
			TotalPnL:   s.TotalPnL,
		})
	}

	first, last := snapshots[0], snapshots[len(snapshots)-1]
	curve.InitialValue = first.TotalValue - first.TotalPnL
	curve.CurrentValue = last.TotalValue
	if curve.InitialValue > 0 {
		curve.TotalReturnPct = (curve.CurrentValue - curve.InitialValue) / curve.InitialValue * 100
	}
	return curve
}
