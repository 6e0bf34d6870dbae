package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// ConversationSummary is an archived summary of a block of folded messages
type ConversationSummary struct {
	ID                 string    `json:"id"`
	ConversationID     string    `json:"conversation_id"`
	Summary            string    `json:"summary"`
	MessagesSummarized int       `json:"messages_summarized"`
	CreatedAt          time.Time `json:"created_at"`
}

// SummaryRepository handles conversation summary database operations
type SummaryRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewSummaryRepository creates a new SummaryRepository
func NewSummaryRepository(pool *pgxpool.Pool, log *logrus.Logger) *SummaryRepository {
	return &SummaryRepository{
		pool: pool,
		log:  log,
	}
}

// Save appends a new summary row for the conversation
func (r *SummaryRepository) Save(ctx context.Context, conversationID, summary string, messagesSummarized int) (*ConversationSummary, error) {
	record := &ConversationSummary{
		ID:                 uuid.New().String(),
		ConversationID:     conversationID,
		Summary:            summary,
		MessagesSummarized: messagesSummarized,
	}

	query := `
		INSERT INTO conversation_summaries (id, conversation_id, summary, messages_summarized)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query,
		record.ID, record.ConversationID, record.Summary, record.MessagesSummarized,
	).Scan(&record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save summary: %w", err)
	}

	return record, nil
}

// Latest returns the most recent summary for the conversation, or nil when
// none has been recorded yet.
func (r *SummaryRepository) Latest(ctx context.Context, conversationID string) (*ConversationSummary, error) {
	query := `
		SELECT id, conversation_id, summary, messages_summarized, created_at
		FROM conversation_summaries
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	record := &ConversationSummary{}
	err := r.pool.QueryRow(ctx, query, conversationID).Scan(
		&record.ID, &record.ConversationID, &record.Summary,
		&record.MessagesSummarized, &record.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest summary: %w", err)
	}

	return record, nil
}
