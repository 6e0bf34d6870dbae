package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// EntityRecord is a single remembered fact about a conversation
type EntityRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	EntityName     string    `json:"entity_name"`
	EntityType     string    `json:"entity_type"`
	EntityValue    string    `json:"entity_value"`
	Context        *string   `json:"context"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// EntityRepository handles entity record database operations
type EntityRepository struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

// NewEntityRepository creates a new EntityRepository
func NewEntityRepository(pool *pgxpool.Pool, log *logrus.Logger) *EntityRepository {
	return &EntityRepository{
		pool: pool,
		log:  log,
	}
}

// Upsert flattens an extracted entity map into rows and writes them, updating
// the stored value when a row with the same name and type already exists.
func (r *EntityRepository) Upsert(ctx context.Context, conversationID, userID string, entities map[string]interface{}) error {
	var owned bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM conversations WHERE id = $1 AND user_id = $2)`,
		conversationID, userID,
	).Scan(&owned)
	if err != nil {
		return fmt.Errorf("failed to check conversation ownership: %w", err)
	}
	if !owned {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}

	query := `
		INSERT INTO entity_records (id, conversation_id, entity_name, entity_type, entity_value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (conversation_id, entity_name, entity_type)
		DO UPDATE SET
			entity_value = EXCLUDED.entity_value,
			updated_at = NOW()
	`

	for _, record := range FlattenEntities(conversationID, entities) {
		_, err := r.pool.Exec(ctx, query,
			record.ID, record.ConversationID, record.EntityName,
			record.EntityType, record.EntityValue,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert entity %s/%s: %w", record.EntityType, record.EntityName, err)
		}
	}

	return nil
}

// ListByConversation retrieves all entity records for an owned conversation
func (r *EntityRepository) ListByConversation(ctx context.Context, conversationID, userID string) ([]*EntityRecord, error) {
	query := `
		SELECT e.id, e.conversation_id, e.entity_name, e.entity_type, e.entity_value, e.context, e.created_at, e.updated_at
		FROM entity_records e
		JOIN conversations c ON e.conversation_id = c.id
		WHERE e.conversation_id = $1 AND c.user_id = $2
		ORDER BY e.entity_type, e.entity_name
	`

	rows, err := r.pool.Query(ctx, query, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	records := []*EntityRecord{}
	for rows.Next() {
		record := &EntityRecord{}
		err := rows.Scan(
			&record.ID, &record.ConversationID, &record.EntityName,
			&record.EntityType, &record.EntityValue, &record.Context,
			&record.CreatedAt, &record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity row: %w", err)
		}
		records = append(records, record)
	}

	return records, nil
}

// FlattenEntities converts an extracted entity map into records. Each key is
// an entity type whose value is either one detail or a list of details. The
// record name comes from the detail's name, description or event field, with
// the type itself as the final fallback.
func FlattenEntities(conversationID string, entities map[string]interface{}) []*EntityRecord {
	records := []*EntityRecord{}

	for entityType, details := range entities {
		items, ok := details.([]interface{})
		if !ok {
			items = []interface{}{details}
		}

		for _, item := range items {
			record := &EntityRecord{
				ID:             uuid.New().String(),
				ConversationID: conversationID,
				EntityType:     entityType,
				EntityName:     entityType,
				EntityValue:    stringifyEntity(item),
			}

			if detail, ok := item.(map[string]interface{}); ok {
				for _, field := range []string{"name", "description", "event"} {
					if name, ok := detail[field].(string); ok && name != "" {
						record.EntityName = name
						break
					}
				}
			}

			records = append(records, record)
		}
	}

	return records
}

func stringifyEntity(item interface{}) string {
	switch value := item.(type) {
	case string:
		return value
	default:
		encoded, err := json.Marshal(item)
		if err != nil {
			return fmt.Sprintf("%v", item)
		}
		return string(encoded)
	}
}
