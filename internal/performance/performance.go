package performance

import (
	"github.com/gin-gonic/gin"
	"github.com/tradeking/tradeking-api/internal/agent"
	"github.com/tradeking/tradeking-api/internal/storage"
	"github.com/tradeking/tradeking-api/pkg/response"
)

// GinHandlers contains HTTP handlers for model performance endpoints
type GinHandlers struct {
	store *storage.Database
}

func NewGinHandlers(store *storage.Database) *GinHandlers {
	return &GinHandlers{store: store}
}

// ListHandler handles GET requests for every model's aggregate
func (h *GinHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := h.store.AllPerformance()
		response.Handle(c, rows, err)
	}
}

// GetHandler handles GET requests for one model's aggregate
// URL parameter: model_choice
func (h *GinHandlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		choice, err := agent.ParseModelChoice(c.Param("model_choice"))
		if err != nil {
			response.BadRequest(c, "Invalid model choice: "+c.Param("model_choice"))
			return
		}

		perf, err := h.store.GetOrCreatePerformance(choice.String())
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		if perf.TotalDecisions == 0 {
			response.NotFound(c, "No decisions found for model: "+choice.String())
			return
		}
		response.Success(c, perf)
	}
}
