package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/m2tx/agent_chat/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection settings for conversations.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// RedisConversationRepository stores each conversation as a JSON document.
type RedisConversationRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisConversationRepository connects lazily; the first command dials.
func NewRedisConversationRepository(cfg RedisConfig) *RedisConversationRepository {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "agent_chat:conversation:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisConversationRepository{
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		now:    time.Now,
	}
}

// Ping checks connectivity.
func (r *RedisConversationRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *RedisConversationRepository) Close() error {
	return r.client.Close()
}

func (r *RedisConversationRepository) key(id string) string {
	return r.prefix + id
}

func (r *RedisConversationRepository) Save(ctx context.Context, conv *model.Conversation) error {
	if conv == nil || conv.ID == "" {
		return fmt.Errorf("repository: conversation id is required")
	}

	now := r.now().UTC()
	doc := model.Conversation{
		ID:        conv.ID,
		OwnerID:   conv.OwnerID,
		Messages:  conv.Messages,
		CreatedAt: now,
		UpdatedAt: now,
	}

	existing, err := r.Get(ctx, conv.ID)
	switch {
	case err == nil:
		doc.OwnerID = existing.OwnerID
		doc.CreatedAt = existing.CreatedAt
	case !errors.Is(err, ErrNotFound):
		return err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("repository: marshal conversation %q: %w", conv.ID, err)
	}

	if err := r.client.Set(ctx, r.key(conv.ID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("repository: save conversation %q: %w", conv.ID, err)
	}
	return nil
}

func (r *RedisConversationRepository) Get(ctx context.Context, id string) (*model.Conversation, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: load conversation %q: %w", id, err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, fmt.Errorf("repository: decode conversation %q: %w", id, err)
	}
	return &conv, nil
}

func (r *RedisConversationRepository) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("repository: delete conversation %q: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
