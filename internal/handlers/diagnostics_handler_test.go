package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.manna.backend/internal/middleware"
)

// =============================================================================
// Test Helper Functions
// =============================================================================

func newDiagnosticsTestRouter(userID, token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewDiagnosticsHandler()

	api := r.Group("/api/v1")
	RegisterDiagnosticsRoutes(api, h)

	authed := api.Group("", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextToken, token)
	})
	RegisterAuthedDiagnosticsRoutes(authed, h)

	return r
}

func decodeDiagnostics(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

// =============================================================================
// Unit Tests (No Database Required)
// =============================================================================

func TestDiagnosticsHandler(t *testing.T) {
	t.Run("reachability test answers without identity", func(t *testing.T) {
		r := newDiagnosticsTestRouter("", "")

		w := performRequest(r, "GET", "/api/v1/test", "")

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeDiagnostics(t, w.Body.Bytes())
		assert.Equal(t, "Backend is reachable", resp["message"])
		assert.Equal(t, "ok", resp["status"])

		_, err := time.Parse(time.RFC3339, resp["timestamp"].(string))
		assert.NoError(t, err)
	})

	t.Run("auth test echoes the resolved user", func(t *testing.T) {
		r := newDiagnosticsTestRouter(testUserID, "eyJ.header.payload")

		w := performRequest(r, "GET", "/api/v1/test-auth", "")

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeDiagnostics(t, w.Body.Bytes())
		assert.Equal(t, "Authentication successful", resp["message"])
		assert.Equal(t, "authenticated", resp["status"])
		assert.Equal(t, testUserID, resp["user_id"])
	})

	t.Run("plain tokens report the web platform", func(t *testing.T) {
		r := newDiagnosticsTestRouter(testUserID, "eyJ.header.payload")

		w := performRequest(r, "GET", "/api/v1/test-auth", "")

		resp := decodeDiagnostics(t, w.Body.Bytes())
		assert.Equal(t, "web", resp["platform"])
	})

	t.Run("mobile marker reports the mobile platform", func(t *testing.T) {
		r := newDiagnosticsTestRouter(testUserID, "eyJ.MOBILE-build.payload")

		w := performRequest(r, "GET", "/api/v1/test-auth", "")

		resp := decodeDiagnostics(t, w.Body.Bytes())
		assert.Equal(t, "mobile", resp["platform"])
	})
}
