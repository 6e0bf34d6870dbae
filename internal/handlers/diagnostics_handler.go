package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dev.manna.backend/internal/middleware"
)

// DiagnosticsHandler handles connectivity test requests used by the clients
// during setup
type DiagnosticsHandler struct{}

// NewDiagnosticsHandler creates a new diagnostics handler
func NewDiagnosticsHandler() *DiagnosticsHandler {
	return &DiagnosticsHandler{}
}

// Test godoc
// @Summary Reachability test
// @Description Confirm the backend answers without requiring authentication
// @Tags diagnostics
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/test [get]
func (h *DiagnosticsHandler) Test(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "Backend is reachable",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"status":    "ok",
	})
}

// TestAuth godoc
// @Summary Authentication test
// @Description Confirm the caller's bearer token is accepted and report the resolved user
// @Tags diagnostics
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/test-auth [get]
func (h *DiagnosticsHandler) TestAuth(c *gin.Context) {
	// Mobile clients embed a marker in their tokens so support can tell the
	// two app builds apart.
	platform := "web"
	if strings.Contains(strings.ToLower(c.GetString(middleware.ContextToken)), "mobile") {
		platform = "mobile"
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Authentication successful",
		"user_id":   c.GetString(middleware.ContextUserID),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"status":    "authenticated",
		"platform":  platform,
	})
}

// RegisterDiagnosticsRoutes registers the unauthenticated reachability route
func RegisterDiagnosticsRoutes(r *gin.RouterGroup, h *DiagnosticsHandler) {
	r.GET("/test", h.Test)
}

// RegisterAuthedDiagnosticsRoutes registers the authenticated token test route
func RegisterAuthedDiagnosticsRoutes(r *gin.RouterGroup, h *DiagnosticsHandler) {
	r.GET("/test-auth", h.TestAuth)
}
