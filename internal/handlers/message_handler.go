package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dev.manna.backend/internal/database"
	"dev.manna.backend/internal/middleware"
)

// messageStore covers the single-message operations the HTTP layer needs
type messageStore interface {
	Get(ctx context.Context, messageID, userID string) (*database.Message, error)
	Update(ctx context.Context, messageID, userID string, update database.MessageUpdate) (*database.Message, error)
	Delete(ctx context.Context, messageID, userID string) error
}

// conversationGetter verifies conversation ownership for the nested read route
type conversationGetter interface {
	Get(ctx context.Context, conversationID, userID string) (*database.Conversation, error)
}

// MessageHandler handles message CRUD HTTP requests
type MessageHandler struct {
	conversations conversationGetter
	messages      messageStore
	log           *logrus.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(conversations *database.ConversationRepository, messages *database.MessageRepository, log *logrus.Logger) *MessageHandler {
	return &MessageHandler{
		conversations: conversations,
		messages:      messages,
		log:           log,
	}
}

// UpdateMessageRequest represents a message patch request
type UpdateMessageRequest struct {
	Content  *string                `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// GetInConversation godoc
// @Summary Fetch a message
// @Description Fetch one message, verifying it belongs to the given conversation
// @Tags messages
// @Produce json
// @Param id path string true "Conversation ID"
// @Param message_id path string true "Message ID"
// @Success 200 {object} database.Message
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/conversations/{id}/messages/{message_id} [get]
func (h *MessageHandler) GetInConversation(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	if _, err := h.conversations.Get(c.Request.Context(), c.Param("id"), userID); err != nil {
		if errors.Is(err, database.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Conversation not found"})
			return
		}
		h.log.WithError(err).Error("Message fetch failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch message: " + err.Error()})
		return
	}

	message, err := h.messages.Get(c.Request.Context(), c.Param("message_id"), userID)
	if err != nil {
		if errors.Is(err, database.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Message not found"})
			return
		}
		h.log.WithError(err).Error("Message fetch failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch message: " + err.Error()})
		return
	}
	if message.ConversationID != c.Param("id") {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Message not found"})
		return
	}

	c.JSON(http.StatusOK, message)
}

// Update godoc
// @Summary Patch a message
// @Description Update the content or metadata of a message owned by the authenticated user
// @Tags messages
// @Accept json
// @Produce json
// @Param id path string true "Message ID"
// @Param request body UpdateMessageRequest true "Fields to change"
// @Success 200 {object} database.Message
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/messages/{id} [put]
func (h *MessageHandler) Update(c *gin.Context) {
	var req UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	userID := c.GetString(middleware.ContextUserID)
	message, err := h.messages.Update(c.Request.Context(), c.Param("id"), userID, database.MessageUpdate{
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		if errors.Is(err, database.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Message not found"})
			return
		}
		h.log.WithError(err).Error("Message update failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to update message: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, message)
}

// Delete godoc
// @Summary Delete a message
// @Description Remove one message owned by the authenticated user
// @Tags messages
// @Produce json
// @Param id path string true "Message ID"
// @Success 200 {object} map[string]string
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/messages/{id} [delete]
func (h *MessageHandler) Delete(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	err := h.messages.Delete(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, database.ErrMessageNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Message not found"})
			return
		}
		h.log.WithError(err).Error("Message delete failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to delete message: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message deleted successfully"})
}

// RegisterMessageRoutes registers message CRUD routes. The read route is
// nested under its conversation; edits address messages directly.
func RegisterMessageRoutes(r *gin.RouterGroup, h *MessageHandler) {
	r.GET("/conversations/:id/messages/:message_id", h.GetInConversation)

	messages := r.Group("/messages")
	{
		messages.PUT("/:id", h.Update)
		messages.DELETE("/:id", h.Delete)
	}
}
