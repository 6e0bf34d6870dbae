package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSummaryTestDB(t *testing.T) (*pgxpool.Pool, *SummaryRepository) {
	ctx := context.Background()

	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("DB_PORT")
	if port == "" {
		port = "5432"
	}
	user := os.Getenv("DB_USER")
	if user == "" {
		user = "manna"
	}
	password := os.Getenv("DB_PASSWORD")
	if password == "" {
		password = "secret"
	}
	dbname := os.Getenv("DB_NAME")
	if dbname == "" {
		dbname = "manna_db"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, dbname)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Skipf("Skipping test: database not available: %v", err)
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		t.Skipf("Skipping test: database connection failed: %v", err)
		pool.Close()
		return nil, nil
	}

	var tableExists bool
	err = pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = 'conversation_summaries'
		)
	`).Scan(&tableExists)
	if err != nil || !tableExists {
		t.Skipf("Skipping test: conversation_summaries table does not exist (run migrations first)")
		pool.Close()
		return nil, nil
	}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	repo := NewSummaryRepository(pool, logger)

	return pool, repo
}

func cleanupSummaryTestDB(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	// Summaries cascade with their parent conversations
	_, err := pool.Exec(ctx, "DELETE FROM conversations WHERE title LIKE 'test-%'")
	if err != nil {
		t.Logf("Warning: Failed to cleanup conversations: %v", err)
	}
}

func TestSummaryRepository_Save(t *testing.T) {
	pool, repo := setupSummaryTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	defer cleanupSummaryTestDB(t, pool)

	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		conversationID, _ := createTestConversation(t, pool, "sum-save")

		record, err := repo.Save(ctx, conversationID, "Planned a trip to Lisbon.", 31)
		assert.NoError(t, err)
		assert.NotEmpty(t, record.ID)
		assert.Equal(t, conversationID, record.ConversationID)
		assert.Equal(t, 31, record.MessagesSummarized)
		assert.False(t, record.CreatedAt.IsZero())
	})
}

func TestSummaryRepository_Latest(t *testing.T) {
	pool, repo := setupSummaryTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()
	defer cleanupSummaryTestDB(t, pool)

	ctx := context.Background()

	t.Run("NilWhenNone", func(t *testing.T) {
		conversationID, _ := createTestConversation(t, pool, "sum-none")

		record, err := repo.Latest(ctx, conversationID)
		assert.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("NewestWins", func(t *testing.T) {
		conversationID, _ := createTestConversation(t, pool, "sum-newest")

		_, err := repo.Save(ctx, conversationID, "older summary", 25)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		_, err = repo.Save(ctx, conversationID, "newer summary", 30)
		require.NoError(t, err)

		record, err := repo.Latest(ctx, conversationID)
		assert.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, "newer summary", record.Summary)
		assert.Equal(t, 30, record.MessagesSummarized)
	})
}
