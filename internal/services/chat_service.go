package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"dev.manna.backend/internal/config"
	"dev.manna.backend/internal/database"
	"dev.manna.backend/internal/llm"
)

const (
	// defaultConversationTitle is assigned when a chat message starts a
	// conversation without an explicit title.
	defaultConversationTitle = "New Conversation"

	// keepRecentMessages is how many of the newest messages survive a
	// summarization pass verbatim.
	keepRecentMessages = 20

	// minMessagesToFold is the smallest batch worth summarizing.
	minMessagesToFold = 5

	// entityWindow is how many trailing messages feed entity extraction.
	entityWindow = 5

	// minMessagesForEntities skips extraction until there is an actual
	// exchange to mine.
	minMessagesForEntities = 2
)

type conversationStore interface {
	Create(ctx context.Context, userID string, title *string, status string) (*database.Conversation, error)
	Get(ctx context.Context, conversationID, userID string) (*database.Conversation, error)
	SetSummary(ctx context.Context, conversationID, summary string) error
	SetEntityMemory(ctx context.Context, conversationID, userID string, memory map[string]interface{}) error
}

type messageStore interface {
	Create(ctx context.Context, userID string, message *database.Message) error
	ListByConversation(ctx context.Context, conversationID, userID string, limit int) ([]*database.Message, error)
	DeleteByIDs(ctx context.Context, conversationID string, messageIDs []string) error
}

type summaryStore interface {
	Save(ctx context.Context, conversationID, summary string, messagesSummarized int) (*database.ConversationSummary, error)
}

type entityStore interface {
	Upsert(ctx context.Context, conversationID, userID string, entities map[string]interface{}) error
}

type modelClient interface {
	GenerateResponse(ctx context.Context, messages []llm.ChatMessage, summary string, entityMemory map[string]interface{}) (string, int, error)
	SummarizeConversation(ctx context.Context, messages []llm.ChatMessage) string
	ExtractEntities(ctx context.Context, messages []llm.ChatMessage) map[string]interface{}
}

// ChatService runs a full chat turn: it resolves the conversation, persists
// the user message, folds old history into a summary when the conversation
// grows too long, calls the model, persists the reply, and refreshes entity
// memory from the recent exchange.
type ChatService struct {
	conversations conversationStore
	messages      messageStore
	summaries     summaryStore
	entities      entityStore
	model         modelClient

	maxConversationLength int
	log                   *logrus.Logger
}

// ChatRequest represents an incoming chat message
type ChatRequest struct {
	Message        string  `json:"message" binding:"required"`
	ConversationID *string `json:"conversation_id,omitempty"`
	Title          *string `json:"title,omitempty"`
}

// ChatResponse carries the persisted user message and the model's reply
type ChatResponse struct {
	ConversationID string            `json:"conversation_id"`
	Message        *database.Message `json:"message"`
	Response       *database.Message `json:"response"`
}

// NewChatService creates a new chat service
func NewChatService(
	conversations *database.ConversationRepository,
	messages *database.MessageRepository,
	summaries *database.SummaryRepository,
	entities *database.EntityRepository,
	model *llm.Client,
	cfg *config.Config,
	log *logrus.Logger,
) *ChatService {
	return &ChatService{
		conversations:         conversations,
		messages:              messages,
		summaries:             summaries,
		entities:              entities,
		model:                 model,
		maxConversationLength: cfg.Chat.MaxConversationLength,
		log:                   log,
	}
}

// Chat processes one user message and returns the model's reply. The
// conversation is created on the fly when the request does not name one.
// Summarization and entity extraction are best effort: their failures are
// logged but never fail the turn.
func (s *ChatService) Chat(ctx context.Context, userID string, req *ChatRequest) (*ChatResponse, error) {
	conversation, err := s.resolveConversation(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	userMessage := &database.Message{
		ConversationID: conversation.ID,
		Role:           database.MessageRoleUser,
		Content:        req.Message,
	}
	if err := s.messages.Create(ctx, userID, userMessage); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	history, err := s.messages.ListByConversation(ctx, conversation.ID, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	if len(history) > s.maxConversationLength {
		s.foldOldMessages(ctx, conversation, history)

		history, err = s.messages.ListByConversation(ctx, conversation.ID, userID, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to reload conversation history: %w", err)
		}
	}

	// The summary and entity memory come from the conversation as it was
	// loaded at the start of the turn. A summary produced by this turn's
	// fold feeds the next turn, not this one.
	summary := ""
	if conversation.Summary != nil {
		summary = *conversation.Summary
	}
	entityMemory := conversation.EntityMemory
	if entityMemory == nil {
		entityMemory = map[string]interface{}{}
	}

	responseText, tokensUsed, err := s.model.GenerateResponse(ctx, modelMessagesOf(history), summary, entityMemory)
	if err != nil {
		return nil, err
	}

	assistantMessage := &database.Message{
		ConversationID: conversation.ID,
		Role:           database.MessageRoleAssistant,
		Content:        responseText,
		Metadata:       map[string]interface{}{"tokens_used": tokensUsed},
	}
	if err := s.messages.Create(ctx, userID, assistantMessage); err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	s.refreshEntityMemory(ctx, conversation.ID, userID, history)

	return &ChatResponse{
		ConversationID: conversation.ID,
		Message:        userMessage,
		Response:       assistantMessage,
	}, nil
}

// resolveConversation loads the requested conversation or starts a new one.
func (s *ChatService) resolveConversation(ctx context.Context, userID string, req *ChatRequest) (*database.Conversation, error) {
	if req.ConversationID != nil && *req.ConversationID != "" {
		return s.conversations.Get(ctx, *req.ConversationID, userID)
	}

	title := req.Title
	if title == nil || *title == "" {
		t := defaultConversationTitle
		title = &t
	}
	return s.conversations.Create(ctx, userID, title, database.ConversationStatusActive)
}

// foldOldMessages summarizes everything but the newest messages and prunes
// the summarized rows. Any failure leaves the conversation as it was.
func (s *ChatService) foldOldMessages(ctx context.Context, conversation *database.Conversation, history []*database.Message) {
	cut := len(history) - keepRecentMessages
	if cut < minMessagesToFold {
		s.log.WithField("conversation_id", conversation.ID).Debug("Too few messages to fold, skipping summarization")
		return
	}
	toFold := history[:cut]

	summary := s.model.SummarizeConversation(ctx, modelMessagesOf(toFold))

	if _, err := s.summaries.Save(ctx, conversation.ID, summary, len(toFold)); err != nil {
		s.log.WithError(err).WithField("conversation_id", conversation.ID).Warn("Failed to save conversation summary")
		return
	}
	if err := s.conversations.SetSummary(ctx, conversation.ID, summary); err != nil {
		s.log.WithError(err).WithField("conversation_id", conversation.ID).Warn("Failed to update conversation summary")
		return
	}

	ids := make([]string, 0, len(toFold))
	for _, m := range toFold {
		ids = append(ids, m.ID)
	}
	if err := s.messages.DeleteByIDs(ctx, conversation.ID, ids); err != nil {
		s.log.WithError(err).WithField("conversation_id", conversation.ID).Warn("Failed to prune summarized messages")
		return
	}

	s.log.WithFields(logrus.Fields{
		"conversation_id":     conversation.ID,
		"messages_summarized": len(toFold),
	}).Info("Conversation summarized")
}

// refreshEntityMemory extracts entities from the trailing messages and
// stores them both as entity records and on the conversation itself.
func (s *ChatService) refreshEntityMemory(ctx context.Context, conversationID, userID string, history []*database.Message) {
	recent := history
	if len(recent) > entityWindow {
		recent = recent[len(recent)-entityWindow:]
	}
	if len(recent) < minMessagesForEntities {
		return
	}

	entities := s.model.ExtractEntities(ctx, modelMessagesOf(recent))
	if len(entities) == 0 {
		return
	}

	if err := s.entities.Upsert(ctx, conversationID, userID, entities); err != nil {
		s.log.WithError(err).WithField("conversation_id", conversationID).Warn("Failed to save entity records")
		return
	}
	if err := s.conversations.SetEntityMemory(ctx, conversationID, userID, entities); err != nil {
		s.log.WithError(err).WithField("conversation_id", conversationID).Warn("Failed to update conversation entity memory")
	}
}

// modelMessagesOf converts stored messages into the model's wire shape.
// Only user and assistant turns are forwarded.
func modelMessagesOf(messages []*database.Message) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case database.MessageRoleUser, database.MessageRoleAssistant:
			out = append(out, llm.ChatMessage{Role: m.Role, Content: m.Content})
		}
	}
	return out
}
