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

// Message role values
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleSystem    = "system"
)

// Message represents a single message within a conversation
type Message struct {
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversation_id"`
	Role           string                 `json:"role"`
	Content        string                 `json:"content"`
	Metadata       map[string]interface{} `json:"metadata"`
	TokensUsed     *int                   `json:"tokens_used"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// MessageUpdate holds the patchable message fields. Nil fields are left
// untouched.
type MessageUpdate struct {
	Content  *string
	Metadata map[string]interface{}
}

// MessageRepository handles message database operations
type MessageRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(pool *pgxpool.Pool, log *logrus.Logger) *MessageRepository {
	return &MessageRepository{
		pool: pool,
		log:  log,
	}
}

// Create persists a new message after verifying the parent conversation is
// owned by the user. The token estimate is filled in when not already set.
func (r *MessageRepository) Create(ctx context.Context, userID string, message *Message) error {
	owned, err := r.conversationOwned(ctx, message.ConversationID, userID)
	if err != nil {
		return err
	}
	if !owned {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, message.ConversationID)
	}

	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.Metadata == nil {
		message.Metadata = map[string]interface{}{}
	}
	if message.TokensUsed == nil {
		tokens := estimateTokens(message.Content)
		message.TokensUsed = &tokens
	}

	metadataJSON, err := json.Marshal(message.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal message metadata: %w", err)
	}

	query := `
		INSERT INTO messages (id, conversation_id, role, content, metadata, tokens_used)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err = r.pool.QueryRow(ctx, query,
		message.ID, message.ConversationID, message.Role,
		message.Content, metadataJSON, message.TokensUsed,
	).Scan(&message.CreatedAt, &message.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// ListByConversation retrieves messages in chronological order. A limit of
// zero or less returns the full history.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID, userID string, limit int) ([]*Message, error) {
	owned, err := r.conversationOwned(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}

	query := `
		SELECT id, conversation_id, role, content, metadata, tokens_used, created_at, updated_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}

	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []*Message{}
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, message)
	}

	return messages, nil
}

// Get retrieves a single message if its conversation is owned by the user
func (r *MessageRepository) Get(ctx context.Context, messageID, userID string) (*Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.role, m.content, m.metadata, m.tokens_used, m.created_at, m.updated_at
		FROM messages m
		JOIN conversations c ON m.conversation_id = c.id
		WHERE m.id = $1 AND c.user_id = $2
	`

	row := r.pool.QueryRow(ctx, query, messageID, userID)
	message, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return message, nil
}

// Update applies the non-nil fields of the patch and returns the updated row.
// An empty patch returns the current row unchanged.
func (r *MessageRepository) Update(ctx context.Context, messageID, userID string, update MessageUpdate) (*Message, error) {
	setParts := []string{}
	args := []interface{}{}
	argCount := 1

	if update.Content != nil {
		setParts = append(setParts, fmt.Sprintf("content = $%d", argCount))
		args = append(args, *update.Content)
		argCount++
	}
	if update.Metadata != nil {
		metadataJSON, err := json.Marshal(update.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message metadata: %w", err)
		}
		setParts = append(setParts, fmt.Sprintf("metadata = $%d", argCount))
		args = append(args, metadataJSON)
		argCount++
	}

	if len(setParts) == 0 {
		return r.Get(ctx, messageID, userID)
	}

	setParts = append(setParts, "updated_at = NOW()")
	query := fmt.Sprintf(
		`UPDATE messages m SET %s FROM conversations c
		WHERE m.id = $%d AND m.conversation_id = c.id AND c.user_id = $%d`,
		strings.Join(setParts, ", "), argCount, argCount+1,
	)
	args = append(args, messageID, userID)

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}

	return r.Get(ctx, messageID, userID)
}

// Delete removes a single message owned by the user
func (r *MessageRepository) Delete(ctx context.Context, messageID, userID string) error {
	query := `
		DELETE FROM messages m
		USING conversations c
		WHERE m.id = $1 AND m.conversation_id = c.id AND c.user_id = $2
	`

	result, err := r.pool.Exec(ctx, query, messageID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}

	return nil
}

// DeleteByIDs removes a batch of messages from one conversation. Used when
// old messages are folded into a summary.
func (r *MessageRepository) DeleteByIDs(ctx context.Context, conversationID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	query := `
		DELETE FROM messages
		WHERE conversation_id = $1 AND id = ANY($2)
	`

	result, err := r.pool.Exec(ctx, query, conversationID, messageIDs)
	if err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"deleted":         result.RowsAffected(),
	}).Debug("Messages pruned")

	return nil
}

func (r *MessageRepository) conversationOwned(ctx context.Context, conversationID, userID string) (bool, error) {
	var owned bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM conversations WHERE id = $1 AND user_id = $2 AND status = $3)`,
		conversationID, userID, ConversationStatusActive,
	).Scan(&owned)
	if err != nil {
		return false, fmt.Errorf("failed to check conversation ownership: %w", err)
	}
	return owned, nil
}

func scanMessage(row pgx.Row) (*Message, error) {
	message := &Message{}
	var metadataJSON []byte

	err := row.Scan(
		&message.ID, &message.ConversationID, &message.Role, &message.Content,
		&metadataJSON, &message.TokensUsed, &message.CreatedAt, &message.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	message.Metadata = map[string]interface{}{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &message.Metadata); err != nil {
			message.Metadata = map[string]interface{}{}
		}
	}

	return message, nil
}

// estimateTokens approximates token usage at four characters per token,
// never reporting less than one.
func estimateTokens(content string) int {
	tokens := len(content) / 4
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
