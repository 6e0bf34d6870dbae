package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.manna.backend/internal/database"
	"dev.manna.backend/internal/middleware"
	"dev.manna.backend/internal/services"
)

// =============================================================================
// Test Helper Functions
// =============================================================================

const testUserID = "9b1e6b54-7a20-4b7e-8f3d-2c5a8e0d1f42"

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

// performRequest drives the router with an optional JSON body
func performRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, path, nil)
	} else {
		req, _ = http.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// testIdentity injects the resolved user the way the auth middleware would
func testIdentity(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Next()
	}
}

type fakeChatRunner struct {
	resp *services.ChatResponse
	err  error

	gotUserID string
	gotReq    *services.ChatRequest
}

func (f *fakeChatRunner) Chat(ctx context.Context, userID string, req *services.ChatRequest) (*services.ChatResponse, error) {
	f.gotUserID = userID
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func newChatTestRouter(runner *fakeChatRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1", testIdentity(testUserID))
	RegisterChatRoutes(api, &ChatHandler{chat: runner, log: quietLogger()})
	return r
}

func chatFixtureResponse() *services.ChatResponse {
	return &services.ChatResponse{
		ConversationID: "conv-1",
		Message: &database.Message{
			ID:             "msg-1",
			ConversationID: "conv-1",
			Role:           database.MessageRoleUser,
			Content:        "Hi",
		},
		Response: &database.Message{
			ID:             "msg-2",
			ConversationID: "conv-1",
			Role:           database.MessageRoleAssistant,
			Content:        "Hello! How can I help?",
		},
	}
}

// =============================================================================
// Unit Tests (No Database Required)
// =============================================================================

func TestChatHandler(t *testing.T) {
	t.Run("message is forwarded with the caller's identity", func(t *testing.T) {
		runner := &fakeChatRunner{resp: chatFixtureResponse()}
		r := newChatTestRouter(runner)

		w := performRequest(r, "POST", "/api/v1/chat", `{"message": "Hi"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, testUserID, runner.gotUserID)
		require.NotNil(t, runner.gotReq)
		assert.Equal(t, "Hi", runner.gotReq.Message)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "conv-1", body["conversation_id"])
		assert.NotNil(t, body["message"])
		assert.NotNil(t, body["response"])
	})

	t.Run("conversation id and title pass through", func(t *testing.T) {
		runner := &fakeChatRunner{resp: chatFixtureResponse()}
		r := newChatTestRouter(runner)

		w := performRequest(r, "POST", "/api/v1/chat",
			`{"message": "continue", "conversation_id": "conv-1", "title": "Trip planning"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, runner.gotReq)
		require.NotNil(t, runner.gotReq.ConversationID)
		assert.Equal(t, "conv-1", *runner.gotReq.ConversationID)
		require.NotNil(t, runner.gotReq.Title)
		assert.Equal(t, "Trip planning", *runner.gotReq.Title)
	})

	t.Run("missing message is rejected", func(t *testing.T) {
		runner := &fakeChatRunner{resp: chatFixtureResponse()}
		r := newChatTestRouter(runner)

		w := performRequest(r, "POST", "/api/v1/chat", `{}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, runner.gotReq)
	})

	t.Run("malformed json is rejected", func(t *testing.T) {
		runner := &fakeChatRunner{resp: chatFixtureResponse()}
		r := newChatTestRouter(runner)

		w := performRequest(r, "POST", "/api/v1/chat", `{"message":`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, runner.gotReq)
	})

	t.Run("pipeline failure returns a chat error", func(t *testing.T) {
		runner := &fakeChatRunner{err: errors.New("model api error: upstream unavailable")}
		r := newChatTestRouter(runner)

		w := performRequest(r, "POST", "/api/v1/chat", `{"message": "Hi"}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Chat failed: model api error: upstream unavailable", body.Error)
	})
}
