// Package decision runs full decision cycles: ask the agent, execute the
// instructions it produced against the virtual account and record the outcome.
package decision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tradeking/tradeking-api/internal/account"
	"github.com/tradeking/tradeking-api/internal/agent"
	"github.com/tradeking/tradeking-api/internal/executor"
	"github.com/tradeking/tradeking-api/internal/extractor"
	"github.com/tradeking/tradeking-api/internal/market"
	"github.com/tradeking/tradeking-api/internal/storage"
	"github.com/tradeking/tradeking-api/internal/types"
	"gorm.io/gorm"
)

// Runner produces a decision from an initial pipeline state
type Runner interface {
	Run(ctx context.Context, initial agent.State) (agent.State, error)
}

// RunRequest selects the model and symbols of one cycle. Empty fields fall
// back to the configured defaults.
type RunRequest struct {
	ModelChoice string   `json:"model_choice"`
	Symbols     []string `json:"symbols"`
}

// RunResult is what a completed cycle reports back
type RunResult struct {
	DecisionID      string                  `json:"decision_id"`
	ModelChoice     string                  `json:"model_choice"`
	Decision        string                  `json:"decision"`
	ExecutionTimeMs float64                 `json:"execution_time_ms"`
	Timestamp       time.Time               `json:"timestamp"`
	Trades          []types.ExecutionResult `json:"trades"`
	Assets          account.AssetBreakdown  `json:"assets"`
}

// Config wires a Service
type Config struct {
	Agent       Runner
	Account     *account.Account
	AccountFile string
	Prices      market.Source
	Store       *storage.Database
	Settings    agent.Settings
}

// Service serializes decision cycles against one account. A second cycle
// waits until the running one has been recorded.
type Service struct {
	mu          sync.Mutex
	agent       Runner
	executor    *executor.Executor
	account     *account.Account
	accountFile string
	prices      market.Source
	store       *storage.Database
	settings    agent.Settings
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(cfg Config) *Service {
	return &Service{
		agent:       cfg.Agent,
		executor:    executor.NewExecutor(cfg.Account),
		account:     cfg.Account,
		accountFile: cfg.AccountFile,
		prices:      cfg.Prices,
		store:       cfg.Store,
		settings:    cfg.Settings,
		logger:      log.With().Str("service", "decision").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Account exposes the ledger the service trades against
func (s *Service) Account() *account.Account {
	return s.account
}

// Run executes one decision cycle. A failed model run is still recorded as a
// failed decision before its error is returned.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	choice := s.settings.ModelChoice
	if req.ModelChoice != "" {
		parsed, err := agent.ParseModelChoice(req.ModelChoice)
		if err != nil {
			return nil, err
		}
		choice = parsed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	decisionID := "DEC_" + uuid.New().String()
	logger := s.logger.With().
		Str("decision_id", decisionID).
		Str("model", choice.String()).
		Logger()

	prevPnL, err := s.previousPnL(choice)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous snapshot: %w", err)
	}

	start := time.Now()
	state, runErr := s.agent.Run(ctx, agent.State{ModelChoice: choice, Symbols: req.Symbols})
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if runErr != nil {
		logger.Error().Err(runErr).Float64("execution_time_ms", elapsed).Msg("Decision cycle failed")
		if err := s.recordFailure(decisionID, choice, state, elapsed, runErr); err != nil {
			logger.Error().Err(err).Msg("Failed to record failed decision")
		}
		return nil, fmt.Errorf("failed to execute trading decision: %w", runErr)
	}

	results := s.executor.ParseAndExecute(state.Decision, state.MarketPrices)
	s.saveAccount(logger)

	record, err := s.newDecisionRecord(decisionID, choice, state, elapsed)
	if err != nil {
		return nil, err
	}
	record.Trades = tradeRecords(decisionID, results)
	for _, r := range results {
		if r.Success {
			record.TradesSucceeded++
		} else {
			record.TradesFailed++
		}
	}

	if err := s.store.CreateDecision(record); err != nil {
		return nil, fmt.Errorf("failed to store decision: %w", err)
	}

	assets := s.account.CalculateAssets(state.MarketPrices)
	snapshot, err := s.storeSnapshot(decisionID, choice, assets)
	if err != nil {
		return nil, fmt.Errorf("failed to store portfolio snapshot: %w", err)
	}

	if _, err := s.store.UpdatePerformance(choice.String(), &elapsed, true, snapshot.TotalPnL-prevPnL); err != nil {
		return nil, fmt.Errorf("failed to update model performance: %w", err)
	}

	logger.Info().
		Float64("execution_time_ms", elapsed).
		Int("trades_succeeded", record.TradesSucceeded).
		Int("trades_failed", record.TradesFailed).
		Float64("total_value", snapshot.TotalValue).
		Msg("Decision cycle completed")

	return &RunResult{
		DecisionID:      decisionID,
		ModelChoice:     choice.String(),
		Decision:        state.Decision,
		ExecutionTimeMs: elapsed,
		Timestamp:       record.Timestamp,
		Trades:          results,
		Assets:          assets,
	}, nil
}

// SubmitTrades executes a JSON trade document directly against the account.
// Instructions without a price are filled at the current market price when a
// price source is configured.
func (s *Service) SubmitTrades(ctx context.Context, document string) ([]types.ExecutionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prices := map[string]float64{}
	if instructions, err := extractor.DecodeDocument([]byte(document)); err == nil && s.prices != nil {
		if symbols := unpricedSymbols(instructions); len(symbols) > 0 {
			snapshot, err := s.prices.Snapshot(ctx, symbols)
			if err != nil {
				return nil, fmt.Errorf("failed to load market prices: %w", err)
			}
			prices = market.ExtractPrices(snapshot)
		}
	}

	results := s.executor.ExecuteTradesFromJSON(document, prices)
	s.saveAccount(s.logger)
	return results, nil
}

func (s *Service) GetDecision(decisionID string) (*storage.TradingDecision, error) {
	return s.store.GetDecision(decisionID)
}

func (s *Service) LatestDecisions(limit int) ([]storage.TradingDecision, error) {
	return s.store.LatestDecisions(limit)
}

// FilterDecisions picks the date range query when both bounds are set, the
// per-model query when only a model is given, and the latest otherwise.
func (s *Service) FilterDecisions(modelChoice string, start, end *time.Time, limit int) ([]storage.TradingDecision, error) {
	if modelChoice != "" {
		parsed, err := agent.ParseModelChoice(modelChoice)
		if err != nil {
			return nil, err
		}
		modelChoice = parsed.String()
	}

	switch {
	case start != nil && end != nil:
		return s.store.DecisionsInRange(*start, *end, modelChoice, limit)
	case modelChoice != "":
		return s.store.DecisionsByModel(modelChoice, limit)
	default:
		return s.store.LatestDecisions(limit)
	}
}

func (s *Service) previousPnL(choice agent.ModelChoice) (float64, error) {
	prev, err := s.store.LatestSnapshot(choice.String())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return prev.TotalPnL, nil
}

func (s *Service) saveAccount(logger zerolog.Logger) {
	if s.accountFile == "" {
		return
	}
	if err := s.account.Save(s.accountFile); err != nil {
		logger.Error().Err(err).Str("path", s.accountFile).Msg("Failed to save account")
	}
}

func (s *Service) newDecisionRecord(decisionID string, choice agent.ModelChoice, state agent.State, elapsed float64) (*storage.TradingDecision, error) {
	record := &storage.TradingDecision{
		DecisionID:      decisionID,
		Timestamp:       s.now(),
		ModelChoice:     choice.String(),
		Temperature:     s.settings.Temperature,
		AccountData:     storage.JSONText(state.AccountData),
		PositionsData:   storage.JSONText(state.PositionsData),
		MarketData:      storage.JSONText(state.MarketData),
		AssetsData:      storage.JSONText(state.AssetsData),
		OrdersData:      storage.JSONText(state.OrdersData),
		Prompt:          state.Prompt,
		Decision:        state.Decision,
		ExecutionTimeMs: &elapsed,
	}

	if len(state.Symbols) > 0 {
		symbols, err := storage.MarshalJSONText(state.Symbols)
		if err != nil {
			return nil, fmt.Errorf("failed to encode symbols: %w", err)
		}
		record.Symbols = symbols
	}
	return record, nil
}

func (s *Service) recordFailure(decisionID string, choice agent.ModelChoice, state agent.State, elapsed float64, runErr error) error {
	record, err := s.newDecisionRecord(decisionID, choice, state, elapsed)
	if err != nil {
		return err
	}
	record.Decision = ""
	message := runErr.Error()
	record.ErrorMessage = &message

	if err := s.store.CreateDecision(record); err != nil {
		return err
	}
	_, err = s.store.UpdatePerformance(choice.String(), &elapsed, false, 0)
	return err
}

func (s *Service) storeSnapshot(decisionID string, choice agent.ModelChoice, assets account.AssetBreakdown) (*storage.PortfolioSnapshot, error) {
	positions := make(map[string]account.PositionValuation, len(assets.Positions))
	for _, p := range assets.Positions {
		positions[p.Symbol] = p
	}
	encoded, err := storage.MarshalJSONText(positions)
	if err != nil {
		return nil, err
	}

	snapshot := &storage.PortfolioSnapshot{
		SnapshotID:    "SNAP_" + uuid.New().String(),
		Timestamp:     s.now(),
		ModelChoice:   choice.String(),
		TotalValue:    assets.TotalAssets,
		CashBalance:   assets.Cash,
		Positions:     encoded,
		RealizedPnL:   s.account.RealizedPnL(),
		UnrealizedPnL: assets.TotalUnrealizedPnL,
		DecisionID:    decisionID,
	}
	if err := s.store.CreateSnapshot(snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func tradeRecords(decisionID string, results []types.ExecutionResult) []storage.TradeExecution {
	records := make([]storage.TradeExecution, 0, len(results))
	for i, r := range results {
		record := storage.TradeExecution{
			DecisionID: decisionID,
			Sequence:   i,
			Success:    r.Success,
			Message:    r.Message,
		}
		if r.Trade != nil {
			record.Action = r.Trade.Action
			record.Symbol = r.Trade.Symbol
			record.Quantity = r.Trade.QuantityText()
			record.Price = r.Trade.Price
		}
		records = append(records, record)
	}
	return records
}

func unpricedSymbols(instructions []types.Instruction) []string {
	seen := make(map[string]bool)
	var symbols []string
	for _, i := range instructions {
		if i.Price != nil || i.Symbol == "" {
			continue
		}
		symbol := normalizeSymbol(i.Symbol)
		if !seen[symbol] {
			seen[symbol] = true
			symbols = append(symbols, symbol)
		}
	}
	return symbols
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
