package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Conversation status values
const (
	ConversationStatusActive   = "active"
	ConversationStatusArchived = "archived"
	ConversationStatusDeleted  = "deleted"
)

// Conversation represents a chat conversation owned by a single user
type Conversation struct {
	ID           string                 `json:"id"`
	UserID       string                 `json:"user_id"`
	Title        *string                `json:"title"`
	Status       string                 `json:"status"`
	Summary      *string                `json:"summary"`
	EntityMemory map[string]interface{} `json:"entity_memory"`
	MessageCount int                    `json:"message_count"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// ConversationUpdate contains the fields that may be changed after creation.
// Nil fields are left untouched.
type ConversationUpdate struct {
	Title        *string
	Status       *string
	Summary      *string
	EntityMemory map[string]interface{}
}

// ConversationRepository handles conversation database operations
type ConversationRepository struct {
	pool       *pgxpool.Pool
	log        *logrus.Logger
	maxPerUser int
}

// NewConversationRepository creates a new ConversationRepository
func NewConversationRepository(pool *pgxpool.Pool, log *logrus.Logger, maxPerUser int) *ConversationRepository {
	return &ConversationRepository{
		pool:       pool,
		log:        log,
		maxPerUser: maxPerUser,
	}
}

// Create creates a new conversation for the user. Users are capped at a fixed
// number of active conversations; at the cap it returns ErrConversationLimit.
// An empty status defaults to active. The cap counts active conversations
// regardless of the status being created.
func (r *ConversationRepository) Create(ctx context.Context, userID string, title *string, status string) (*Conversation, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM conversations WHERE user_id = $1 AND status = $2`,
		userID, ConversationStatusActive,
	).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}
	if count >= r.maxPerUser {
		return nil, fmt.Errorf("%w: limit is %d", ErrConversationLimit, r.maxPerUser)
	}

	if status == "" {
		status = ConversationStatusActive
	}
	conversation := &Conversation{
		ID:           uuid.New().String(),
		UserID:       userID,
		Title:        title,
		Status:       status,
		EntityMemory: map[string]interface{}{},
	}

	query := `
		INSERT INTO conversations (id, user_id, title, status, entity_memory)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err = r.pool.QueryRow(ctx, query,
		conversation.ID, conversation.UserID, conversation.Title,
		conversation.Status, []byte(`{}`),
	).Scan(&conversation.CreatedAt, &conversation.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"conversation_id": conversation.ID,
		"user_id":         userID,
	}).Debug("Conversation created")

	return conversation, nil
}

// ListByUser retrieves the user's active conversations, most recently updated first
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string) ([]*Conversation, error) {
	query := `
		SELECT c.id, c.user_id, c.title, c.status, c.summary, c.entity_memory, c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id) AS message_count
		FROM conversations c
		WHERE c.user_id = $1 AND c.status = $2
		ORDER BY c.updated_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID, ConversationStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []*Conversation{}
	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		conversations = append(conversations, conversation)
	}

	return conversations, nil
}

// Get retrieves a single active conversation owned by the user. A conversation
// that exists but belongs to someone else is reported as not found.
func (r *ConversationRepository) Get(ctx context.Context, conversationID, userID string) (*Conversation, error) {
	query := `
		SELECT c.id, c.user_id, c.title, c.status, c.summary, c.entity_memory, c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id) AS message_count
		FROM conversations c
		WHERE c.id = $1 AND c.user_id = $2 AND c.status = $3
	`

	row := r.pool.QueryRow(ctx, query, conversationID, userID, ConversationStatusActive)
	conversation, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return conversation, nil
}

// Update applies the non-nil fields of the patch and returns the updated row.
// An empty patch returns the current row unchanged.
func (r *ConversationRepository) Update(ctx context.Context, conversationID, userID string, update ConversationUpdate) (*Conversation, error) {
	setParts := []string{}
	args := []interface{}{}
	argCount := 1

	if update.Title != nil {
		setParts = append(setParts, fmt.Sprintf("title = $%d", argCount))
		args = append(args, *update.Title)
		argCount++
	}
	if update.Status != nil {
		setParts = append(setParts, fmt.Sprintf("status = $%d", argCount))
		args = append(args, *update.Status)
		argCount++
	}
	if update.Summary != nil {
		setParts = append(setParts, fmt.Sprintf("summary = $%d", argCount))
		args = append(args, *update.Summary)
		argCount++
	}
	if update.EntityMemory != nil {
		memoryJSON, err := json.Marshal(update.EntityMemory)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal entity memory: %w", err)
		}
		setParts = append(setParts, fmt.Sprintf("entity_memory = $%d", argCount))
		args = append(args, memoryJSON)
		argCount++
	}

	if len(setParts) == 0 {
		return r.Get(ctx, conversationID, userID)
	}

	setParts = append(setParts, "updated_at = NOW()")
	query := fmt.Sprintf(
		"UPDATE conversations SET %s WHERE id = $%d AND user_id = $%d AND status = $%d",
		strings.Join(setParts, ", "), argCount, argCount+1, argCount+2,
	)
	args = append(args, conversationID, userID, ConversationStatusActive)

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}

	return r.Get(ctx, conversationID, userID)
}

// SoftDelete marks the conversation as deleted without removing its rows
func (r *ConversationRepository) SoftDelete(ctx context.Context, conversationID, userID string) error {
	query := `
		UPDATE conversations
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3 AND status = $4
	`

	result, err := r.pool.Exec(ctx, query,
		ConversationStatusDeleted, conversationID, userID, ConversationStatusActive,
	)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}

	return nil
}

// SetSummary overwrites the conversation's rolling summary
func (r *ConversationRepository) SetSummary(ctx context.Context, conversationID, summary string) error {
	query := `
		UPDATE conversations
		SET summary = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, conversationID, summary)
	if err != nil {
		return fmt.Errorf("failed to set conversation summary: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}

	return nil
}

// SetEntityMemory overwrites the conversation's entity memory wholesale
func (r *ConversationRepository) SetEntityMemory(ctx context.Context, conversationID, userID string, memory map[string]interface{}) error {
	memoryJSON, err := json.Marshal(memory)
	if err != nil {
		return fmt.Errorf("failed to marshal entity memory: %w", err)
	}

	query := `
		UPDATE conversations
		SET entity_memory = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.pool.Exec(ctx, query, conversationID, userID, memoryJSON)
	if err != nil {
		return fmt.Errorf("failed to set entity memory: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}

	return nil
}

func scanConversation(row pgx.Row) (*Conversation, error) {
	conversation := &Conversation{}
	var memoryJSON []byte

	err := row.Scan(
		&conversation.ID, &conversation.UserID, &conversation.Title,
		&conversation.Status, &conversation.Summary, &memoryJSON,
		&conversation.CreatedAt, &conversation.UpdatedAt, &conversation.MessageCount,
	)
	if err != nil {
		return nil, err
	}

	conversation.EntityMemory = map[string]interface{}{}
	if len(memoryJSON) > 0 {
		if err := json.Unmarshal(memoryJSON, &conversation.EntityMemory); err != nil {
			conversation.EntityMemory = map[string]interface{}{}
		}
	}

	return conversation, nil
}
