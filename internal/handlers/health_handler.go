package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// databaseProber reports whether the database connection is usable
type databaseProber interface {
	HealthCheck() error
}

// modelProber reports whether the model provider answers a trivial completion
type modelProber interface {
	HealthCheck(ctx context.Context) bool
}

// HealthHandler handles liveness and dependency probe requests
type HealthHandler struct {
	db  databaseProber
	llm modelProber
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db databaseProber, llm modelProber) *HealthHandler {
	return &HealthHandler{
		db:  db,
		llm: llm,
	}
}

// HealthResponse represents the overall service health
type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	LLM       string    `json:"llm"`
	Timestamp time.Time `json:"timestamp"`
}

// Health godoc
// @Summary Service health
// @Description Probe the database and the model provider and report per-dependency status
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /api/v1/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    statusHealthy,
		Database:  statusHealthy,
		LLM:       statusHealthy,
		Timestamp: time.Now().UTC(),
	}

	if err := h.db.HealthCheck(); err != nil {
		resp.Database = statusUnhealthy
		resp.Status = statusUnhealthy
	}
	if !h.llm.HealthCheck(c.Request.Context()) {
		resp.LLM = statusUnhealthy
		resp.Status = statusUnhealthy
	}

	c.JSON(http.StatusOK, resp)
}

// RegisterHealthRoutes registers the health probe route
func RegisterHealthRoutes(r *gin.RouterGroup, h *HealthHandler) {
	r.GET("/health", h.Health)
}
