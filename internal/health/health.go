package health

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tradeking/tradeking-api/pkg/response"
)

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Pinger reports whether the database answers
type Pinger interface {
	Ping() error
}

// Status is the health check payload
type Status struct {
	Status            string    `json:"status"`
	Version           string    `json:"version"`
	Timestamp         time.Time `json:"timestamp"`
	DatabaseConnected bool      `json:"database_connected"`
	SchedulerRunning  bool      `json:"scheduler_running"`
}

// GinHandlers contains the health check handler
type GinHandlers struct {
	version   string
	db        Pinger
	scheduler func() bool
}

// NewGinHandlers builds the health handler. scheduler may be nil when no
// scheduler is configured.
func NewGinHandlers(version string, db Pinger, scheduler func() bool) *GinHandlers {
	return &GinHandlers{version: version, db: db, scheduler: scheduler}
}

func (h *GinHandlers) Check() Status {
	connected := h.db != nil && h.db.Ping() == nil

	status := StatusDegraded
	if connected {
		status = StatusHealthy
	}

	return Status{
		Status:            status,
		Version:           h.version,
		Timestamp:         time.Now().UTC(),
		DatabaseConnected: connected,
		SchedulerRunning:  h.scheduler != nil && h.scheduler(),
	}
}

// HealthHandler handles GET requests for the service status. It always
// answers 200; a failed database ping reports a degraded status.
func (h *GinHandlers) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, h.Check())
	}
}
