package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dev.manna.backend/internal/config"
)

// PostgresDB wraps a pgx connection pool for the chat store.
type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(cfg *config.Config) (*PostgresDB, error) {
	pool, err := pgxpool.New(context.Background(), cfg.Database.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		log.Printf("Warning: Database connection test failed: %v", err)
	}

	return &PostgresDB{pool: pool}, nil
}

func (p *PostgresDB) Ping() error {
	return p.pool.Ping(context.Background())
}

func (p *PostgresDB) Exec(query string, args ...any) error {
	_, err := p.pool.Exec(context.Background(), query, args...)
	return err
}

func (p *PostgresDB) Close() error {
	p.pool.Close()
	return nil
}

// GetPool returns the underlying connection pool
func (p *PostgresDB) GetPool() *pgxpool.Pool {
	return p.pool
}

// HealthCheck performs a health check on the database.
func (p *PostgresDB) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	return p.pool.Ping(ctx)
}

// RunMigrations executes all schema migrations in order.
func RunMigrations(db *PostgresDB) error {
	for _, migration := range migrations {
		if err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", migration, err)
		}
	}

	log.Printf("All migrations completed successfully")
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		title TEXT,
		status VARCHAR(50) NOT NULL DEFAULT 'active',
		summary TEXT,
		entity_memory JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY,
		conversation_id UUID REFERENCES conversations(id) ON DELETE CASCADE,
		role VARCHAR(50) NOT NULL,
		content TEXT NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}',
		tokens_used INTEGER,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS conversation_summaries (
		id UUID PRIMARY KEY,
		conversation_id UUID REFERENCES conversations(id) ON DELETE CASCADE,
		summary TEXT NOT NULL,
		messages_summarized INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS entity_records (
		id UUID PRIMARY KEY,
		conversation_id UUID REFERENCES conversations(id) ON DELETE CASCADE,
		entity_name TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_value TEXT NOT NULL,
		context TEXT,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE (conversation_id, entity_name, entity_type)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_conversations_user_id ON conversations(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_user_status ON conversations(user_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation_id ON messages(conversation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(conversation_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_summaries_conversation_id ON conversation_summaries(conversation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_entity_records_conversation_id ON entity_records(conversation_id)`,
}
