package portfolio

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/tradeking/tradeking-api/internal/account"
	"github.com/tradeking/tradeking-api/internal/agent"
	"github.com/tradeking/tradeking-api/internal/market"
	"github.com/tradeking/tradeking-api/internal/storage"
	"github.com/tradeking/tradeking-api/pkg/query"
	"github.com/tradeking/tradeking-api/pkg/response"
)

const (
	defaultOrderLimit = 50
	maxOrderLimit     = 1000
	defaultCurveLimit = 1000
	maxCurveLimit     = 10000
)

// Service serves the live account and its stored snapshots
type Service struct {
	account *account.Account
	prices  market.Source
	store   *storage.Database
}

// NewService builds a portfolio service. prices may be nil, in which case
// positions are valued at cost.
func NewService(acct *account.Account, prices market.Source, store *storage.Database) *Service {
	return &Service{account: acct, prices: prices, store: store}
}

// Assets values the account at current market prices
func (s *Service) Assets(ctx context.Context) (account.AssetBreakdown, error) {
	prices := map[string]float64{}

	positions := s.account.Positions()
	if s.prices != nil && len(positions) > 0 {
		symbols := make([]string, 0, len(positions))
		for _, p := range positions {
			symbols = append(symbols, p.Symbol)
		}
		snapshot, err := s.prices.Snapshot(ctx, symbols)
		if err != nil {
			return account.AssetBreakdown{}, fmt.Errorf("failed to load market prices: %w", err)
		}
		prices = market.ExtractPrices(snapshot)
	}

	return s.account.CalculateAssets(prices), nil
}

// LatestSnapshot returns the newest snapshot, optionally for one model
func (s *Service) LatestSnapshot(modelChoice string) (*storage.PortfolioSnapshot, error) {
	if modelChoice != "" {
		choice, err := parseModel(modelChoice)
		if err != nil {
			return nil, err
		}
		modelChoice = choice.String()
	}
	return s.store.LatestSnapshot(modelChoice)
}

// EquityCurve returns the model's snapshot series. A model with no
// snapshots yields an empty curve.
func (s *Service) EquityCurve(modelChoice string, limit int) (storage.EquityCurve, error) {
	choice, err := parseModel(modelChoice)
	if err != nil {
		return storage.EquityCurve{}, err
	}

	snapshots, err := s.store.EquityCurve(choice.String(), limit)
	if err != nil {
		return storage.EquityCurve{}, err
	}
	return storage.NewEquityCurve(choice.String(), snapshots), nil
}

// parseModel reports an unsupported model as a validation failure
func parseModel(modelChoice string) (agent.ModelChoice, error) {
	choice, err := agent.ParseModelChoice(modelChoice)
	if errors.Is(err, agent.ErrUnknownModel) {
		return "", &response.ValidationError{Field: "model_choice", Message: err.Error()}
	}
	return choice, err
}

// GinHandlers contains HTTP handlers for portfolio endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// AccountHandler handles GET requests for the live account summary
func (h *GinHandlers) AccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, h.service.account.Info())
	}
}

// PositionsHandler handles GET requests for current holdings
func (h *GinHandlers) PositionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, h.service.account.Positions())
	}
}

// OrdersHandler handles GET requests for filled orders, newest first
func (h *GinHandlers) OrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := query.Limit(c, defaultOrderLimit, maxOrderLimit)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, h.service.account.OrderHistory(limit))
	}
}

// AssetsHandler handles GET requests for the asset breakdown
func (h *GinHandlers) AssetsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		assets, err := h.service.Assets(c.Request.Context())
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		response.Success(c, assets)
	}
}

// LatestSnapshotHandler handles GET requests for the newest snapshot
// Query parameter: model_choice (optional)
func (h *GinHandlers) LatestSnapshotHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot, err := h.service.LatestSnapshot(c.Query("model_choice"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, snapshot)
	}
}

// EquityCurveHandler handles GET requests for a model's equity curve
// Query parameters: model_choice (required), limit
func (h *GinHandlers) EquityCurveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		modelChoice := c.Query("model_choice")
		if modelChoice == "" {
			response.BadRequest(c, "model_choice is required")
			return
		}

		limit, err := query.Limit(c, defaultCurveLimit, maxCurveLimit)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		curve, err := h.service.EquityCurve(modelChoice, limit)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		if len(curve.DataPoints) == 0 {
			response.NotFound(c, "Portfolio data not found for model: "+curve.ModelChoice)
			return
		}
		response.Success(c, curve)
	}
}
