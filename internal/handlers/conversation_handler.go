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

// defaultConversationTitle is used when a creation request omits the title
const defaultConversationTitle = "New Conversation"

// conversationStore covers the conversation operations the HTTP layer needs
type conversationStore interface {
	Create(ctx context.Context, userID string, title *string, status string) (*database.Conversation, error)
	ListByUser(ctx context.Context, userID string) ([]*database.Conversation, error)
	Get(ctx context.Context, conversationID, userID string) (*database.Conversation, error)
	Update(ctx context.Context, conversationID, userID string, update database.ConversationUpdate) (*database.Conversation, error)
	SoftDelete(ctx context.Context, conversationID, userID string) error
}

// messageLister fetches a conversation's message history
type messageLister interface {
	ListByConversation(ctx context.Context, conversationID, userID string, limit int) ([]*database.Message, error)
}

// ConversationHandler handles conversation CRUD HTTP requests
type ConversationHandler struct {
	conversations conversationStore
	messages      messageLister
	log           *logrus.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversations *database.ConversationRepository, messages *database.MessageRepository, log *logrus.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		log:           log,
	}
}

// CreateConversationRequest represents a conversation creation request
type CreateConversationRequest struct {
	Title  *string `json:"title"`
	Status *string `json:"status" binding:"omitempty,oneof=active archived deleted"`
}

// UpdateConversationRequest represents a conversation patch request
type UpdateConversationRequest struct {
	Title        *string                `json:"title"`
	Status       *string                `json:"status" binding:"omitempty,oneof=active archived deleted"`
	Summary      *string                `json:"summary"`
	EntityMemory map[string]interface{} `json:"entity_memory"`
}

// ConversationWithMessages bundles a conversation with its full history
type ConversationWithMessages struct {
	database.Conversation
	Messages []*database.Message `json:"messages"`
}

// Create godoc
// @Summary Create a conversation
// @Description Create an empty conversation for the authenticated user
// @Tags conversations
// @Accept json
// @Produce json
// @Param request body CreateConversationRequest true "Optional title and status"
// @Success 200 {object} database.Conversation
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/conversations [post]
func (h *ConversationHandler) Create(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	title := req.Title
	if title == nil {
		t := defaultConversationTitle
		title = &t
	}
	status := ""
	if req.Status != nil {
		status = *req.Status
	}

	userID := c.GetString(middleware.ContextUserID)
	conversation, err := h.conversations.Create(c.Request.Context(), userID, title, status)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("Conversation create failed")
		resp := ErrorResponse{Error: "Failed to create conversation: " + err.Error()}
		if errors.Is(err, database.ErrConversationLimit) {
			resp.Code = "limit_exceeded"
		}
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	c.JSON(http.StatusOK, conversation)
}

// List godoc
// @Summary List conversations
// @Description List the authenticated user's active conversations, newest first
// @Tags conversations
// @Produce json
// @Success 200 {array} database.Conversation
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/conversations [get]
func (h *ConversationHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	conversations, err := h.conversations.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("Conversation list failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch conversations: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// Get godoc
// @Summary Fetch a conversation
// @Description Fetch one conversation owned by the authenticated user
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} database.Conversation
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/conversations/{id} [get]
func (h *ConversationHandler) Get(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	conversation, err := h.conversations.Get(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, database.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Conversation not found"})
			return
		}
		h.log.WithError(err).Error("Conversation fetch failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch conversation: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, conversation)
}

// Messages godoc
// @Summary Fetch a conversation with its messages
// @Description Fetch one conversation and its full message history in order
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} ConversationWithMessages
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/conversations/{id}/messages [get]
func (h *ConversationHandler) Messages(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	conversationID := c.Param("id")

	conversation, err := h.conversations.Get(c.Request.Context(), conversationID, userID)
	if err != nil {
		if errors.Is(err, database.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Conversation not found"})
			return
		}
		h.log.WithError(err).Error("Conversation fetch failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch conversation with messages: " + err.Error()})
		return
	}

	messages, err := h.messages.ListByConversation(c.Request.Context(), conversationID, userID, 0)
	if err != nil {
		h.log.WithError(err).Error("Message history fetch failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to fetch conversation with messages: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, ConversationWithMessages{
		Conversation: *conversation,
		Messages:     messages,
	})
}

// Update godoc
// @Summary Patch a conversation
// @Description Update the title, status, summary or entity memory of a conversation
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Param request body UpdateConversationRequest true "Fields to change"
// @Success 200 {object} database.Conversation
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/conversations/{id} [put]
func (h *ConversationHandler) Update(c *gin.Context) {
	var req UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	userID := c.GetString(middleware.ContextUserID)
	conversation, err := h.conversations.Update(c.Request.Context(), c.Param("id"), userID, database.ConversationUpdate{
		Title:        req.Title,
		Status:       req.Status,
		Summary:      req.Summary,
		EntityMemory: req.EntityMemory,
	})
	if err != nil {
		if errors.Is(err, database.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Conversation not found"})
			return
		}
		h.log.WithError(err).Error("Conversation update failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to update conversation: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, conversation)
}

// Delete godoc
// @Summary Delete a conversation
// @Description Soft-delete a conversation; its rows are kept but hidden from listings
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} map[string]string
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/conversations/{id} [delete]
func (h *ConversationHandler) Delete(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	err := h.conversations.SoftDelete(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		if errors.Is(err, database.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "Conversation not found"})
			return
		}
		h.log.WithError(err).Error("Conversation delete failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to delete conversation: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted successfully"})
}

// RegisterConversationRoutes registers conversation CRUD routes
func RegisterConversationRoutes(r *gin.RouterGroup, h *ConversationHandler) {
	conversations := r.Group("/conversations")
	{
		conversations.POST("", h.Create)
		conversations.GET("", h.List)
		conversations.GET("/:id", h.Get)
		conversations.GET("/:id/messages", h.Messages)
		conversations.GET("/:id/history", h.Messages)
		conversations.PUT("/:id", h.Update)
		conversations.DELETE("/:id", h.Delete)
	}
}
