package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dev.manna.backend/internal/middleware"
	"dev.manna.backend/internal/services"
)

// chatRunner runs one turn of the chat pipeline
type chatRunner interface {
	Chat(ctx context.Context, userID string, req *services.ChatRequest) (*services.ChatResponse, error)
}

// ChatHandler handles chat HTTP requests
type ChatHandler struct {
	chat chatRunner
	log  *logrus.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat *services.ChatService, log *logrus.Logger) *ChatHandler {
	return &ChatHandler{
		chat: chat,
		log:  log,
	}
}

// Chat godoc
// @Summary Send a chat message
// @Description Append the message to a conversation (creating one when needed) and return the model's reply
// @Tags chat
// @Accept json
// @Produce json
// @Param request body services.ChatRequest true "Message and optional conversation"
// @Success 200 {object} services.ChatResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	var req services.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	userID := c.GetString(middleware.ContextUserID)
	resp, err := h.chat.Chat(c.Request.Context(), userID, &req)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("Chat request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Chat failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RegisterChatRoutes registers chat routes
func RegisterChatRoutes(r *gin.RouterGroup, h *ChatHandler) {
	r.POST("/chat", h.Chat)
}
