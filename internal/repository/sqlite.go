package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/m2tx/agent_chat/internal/model"
	_ "modernc.org/sqlite"
)

// SQLiteConversationRepository stores conversations in a single SQLite table.
type SQLiteConversationRepository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteConversationRepository opens (or creates) the database at path.
// Parent directories are created if needed.
func NewSQLiteConversationRepository(path string, logger *slog.Logger) (*SQLiteConversationRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "repository")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	r := &SQLiteConversationRepository{db: db, logger: logger, now: time.Now}
	if err := r.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite repository initialized", "path", path)
	return r, nil
}

func (r *SQLiteConversationRepository) createSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			messages TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_owner
			ON conversations(owner_id, updated_at);
	`)
	return err
}

// Close closes the database.
func (r *SQLiteConversationRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteConversationRepository) Save(ctx context.Context, conv *model.Conversation) error {
	if conv == nil || conv.ID == "" {
		return fmt.Errorf("repository: conversation id is required")
	}

	messages, err := json.Marshal(conv.Messages)
	if err != nil {
		return fmt.Errorf("repository: marshal messages %q: %w", conv.ID, err)
	}

	now := r.now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, owner_id, messages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			messages = excluded.messages,
			updated_at = excluded.updated_at
	`, conv.ID, conv.OwnerID, string(messages), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("repository: upsert conversation %q: %w", conv.ID, err)
	}
	return nil
}

func (r *SQLiteConversationRepository) Get(ctx context.Context, id string) (*model.Conversation, error) {
	var (
		conv                 model.Conversation
		messages             string
		createdAt, updatedAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, messages, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id).Scan(&conv.ID, &conv.OwnerID, &messages, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: find conversation %q: %w", id, err)
	}

	if err := json.Unmarshal([]byte(messages), &conv.Messages); err != nil {
		return nil, fmt.Errorf("repository: decode messages %q: %w", id, err)
	}
	if conv.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("repository: parse created_at %q: %w", id, err)
	}
	if conv.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("repository: parse updated_at %q: %w", id, err)
	}
	return &conv, nil
}

func (r *SQLiteConversationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("repository: delete conversation %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: delete conversation %q: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
