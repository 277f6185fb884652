// Package agent runs the decision pipeline: load the trading context, render
// the prompt and ask the model for a decision.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const emptyContext = "{}"

// userTag identifies agent traffic to model providers
const userTag = "trade-agent"

// State is threaded through the pipeline stages. Empty context fields are
// filled by load_context.
type State struct {
	ModelChoice   ModelChoice        `json:"model_choice"`
	Symbols       []string           `json:"symbols,omitempty"`
	AccountData   string             `json:"account_data,omitempty"`
	PositionsData string             `json:"positions_data,omitempty"`
	MarketData    string             `json:"market_data,omitempty"`
	AssetsData    string             `json:"assets_data,omitempty"`
	OrdersData    string             `json:"orders_data,omitempty"`
	MarketPrices  map[string]float64 `json:"market_prices,omitempty"`
	Prompt        string             `json:"prompt,omitempty"`
	Decision      string             `json:"decision,omitempty"`
}

func (s *State) contextFields() []*string {
	return []*string{&s.AccountData, &s.PositionsData, &s.MarketData, &s.AssetsData, &s.OrdersData}
}

func (s *State) missingContext() bool {
	for _, f := range s.contextFields() {
		if *f == "" {
			return true
		}
	}
	return false
}

type stage struct {
	name string
	run  func(ctx context.Context, state *State) error
}

// Agent is a strictly linear pipeline: load_context, compose_prompt,
// invoke_model. It never branches or retries.
type Agent struct {
	settings  Settings
	completer Completer
	loader    *ContextLoader
	logger    zerolog.Logger
	stages    []stage
}

// New builds an agent. loader may be nil, in which case missing context
// fields are rendered as empty JSON objects.
func New(settings Settings, completer Completer, loader *ContextLoader) *Agent {
	a := &Agent{
		settings:  settings,
		completer: completer,
		loader:    loader,
		logger:    log.With().Str("component", "agent").Logger(),
	}
	a.stages = []stage{
		{"load_context", a.loadContext},
		{"compose_prompt", a.composePrompt},
		{"invoke_model", a.invokeModel},
	}
	return a
}

// Run executes every stage in order and returns the final state. On error the
// state reached so far is returned alongside it.
func (a *Agent) Run(ctx context.Context, initial State) (State, error) {
	state := initial
	if state.ModelChoice == "" {
		state.ModelChoice = a.settings.ModelChoice
	}

	for _, s := range a.stages {
		start := time.Now()
		if err := s.run(ctx, &state); err != nil {
			a.logger.Error().Err(err).Str("stage", s.name).Str("model", state.ModelChoice.String()).Msg("Pipeline stage failed")
			return state, fmt.Errorf("%s: %w", s.name, err)
		}
		a.logger.Debug().Str("stage", s.name).Dur("duration", time.Since(start)).Msg("Pipeline stage completed")
	}

	return state, nil
}

func (a *Agent) loadContext(ctx context.Context, state *State) error {
	if !state.missingContext() {
		return nil
	}

	if a.loader == nil {
		for _, f := range state.contextFields() {
			if *f == "" {
				*f = emptyContext
			}
		}
		return nil
	}

	loaded, err := a.loader.Gather(ctx, state.Symbols)
	if err != nil {
		return err
	}

	state.Symbols = loaded.Symbols
	state.MarketPrices = loaded.MarketPrices
	state.AccountData = loaded.AccountData
	state.PositionsData = loaded.PositionsData
	state.MarketData = loaded.MarketData
	state.AssetsData = loaded.AssetsData
	state.OrdersData = loaded.OrdersData
	return nil
}

func (a *Agent) composePrompt(_ context.Context, state *State) error {
	state.Prompt = RenderPrompt(TradePrompt, map[string]string{
		"model_name":     strings.ToUpper(state.ModelChoice.String()),
		"account_data":   state.AccountData,
		"positions_data": state.PositionsData,
		"market_data":    state.MarketData,
		"assets_data":    state.AssetsData,
		"orders_data":    state.OrdersData,
	})
	return nil
}

func (a *Agent) invokeModel(ctx context.Context, state *State) error {
	temperature := a.settings.Temperature
	decision, err := a.completer.GenerateText(ctx, state.Prompt, GenerateOptions{
		Model:           state.ModelChoice,
		Temperature:     &temperature,
		MaxOutputTokens: a.settings.MaxOutputTokens,
		User:            userTag,
	})
	if err != nil {
		return err
	}
	state.Decision = strings.TrimSpace(decision)
	return nil
}
