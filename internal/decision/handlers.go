package decision

import (
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/tradeking/tradeking-api/internal/agent"
	"github.com/tradeking/tradeking-api/internal/auth"
	"github.com/tradeking/tradeking-api/internal/storage"
	"github.com/tradeking/tradeking-api/pkg/query"
	"github.com/tradeking/tradeking-api/pkg/response"
)

const (
	defaultLatestLimit = 10
	maxLatestLimit     = 100
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
	maxTradeDocument   = 1 << 20
)

// GinHandlers contains HTTP handlers for decision endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// ExecuteHandler handles POST requests that run one decision cycle
// Requires a valid JWT token
// Body (optional): {"model_choice": "gpt5", "symbols": ["NVDA.US"]}
func (h *GinHandlers) ExecuteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RunRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
				response.BadRequest(c, "Invalid request body")
				return
			}
		}

		claims, _ := c.Get("claims")
		log.Info().
			Str("component", "decision_handlers").
			Str("client_id", auth.GetClientID(claims)).
			Str("model", req.ModelChoice).
			Strs("symbols", req.Symbols).
			Msg("Decision cycle requested")

		result, err := h.service.Run(c.Request.Context(), req)
		if err != nil {
			if errors.Is(err, agent.ErrUnknownModel) {
				response.BadRequest(c, "Invalid model choice: "+req.ModelChoice)
				return
			}
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, result)
	}
}

// SubmitTradesHandler handles POST requests carrying a raw JSON trade document
// Requires a valid JWT token
func (h *GinHandlers) SubmitTradesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTradeDocument))
		if err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}
		if strings.TrimSpace(string(body)) == "" {
			response.BadRequest(c, "Trade document is required")
			return
		}

		results, err := h.service.SubmitTrades(c.Request.Context(), string(body))
		response.Handle(c, results, err)
	}
}

// LatestHandler handles GET requests for the newest decisions
func (h *GinHandlers) LatestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := query.Limit(c, defaultLatestLimit, maxLatestLimit)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		decisions, err := h.service.LatestDecisions(limit)
		response.Handle(c, summaries(decisions), err)
	}
}

// GetHandler handles GET requests for one decision with its full context
// URL parameter: decision_id
func (h *GinHandlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, err := h.service.GetDecision(c.Param("decision_id"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, decision)
	}
}

// ListHandler handles GET requests filtered by model and date range
// Query parameters: model_choice, start_date, end_date, limit
func (h *GinHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := query.Limit(c, defaultFilterLimit, maxFilterLimit)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		start, err := query.Time(c, "start_date")
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		end, err := query.Time(c, "end_date")
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		decisions, err := h.service.FilterDecisions(c.Query("model_choice"), start, end, limit)
		if errors.Is(err, agent.ErrUnknownModel) {
			response.BadRequest(c, "Invalid model choice: "+c.Query("model_choice"))
			return
		}
		response.Handle(c, summaries(decisions), err)
	}
}

func summaries(decisions []storage.TradingDecision) []storage.DecisionSummary {
	out := make([]storage.DecisionSummary, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, d.Summary())
	}
	return out
}
