package main

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/m2tx/agent_chat/internal/config"
	"github.com/m2tx/agent_chat/internal/repository"
)

type closeFunc func(context.Context) error

func noopClose(context.Context) error { return nil }

// openStore builds the conversation repository selected by cfg.Driver.
func openStore(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (repository.ConversationRepository, closeFunc, error) {
	log = log.With("store", cfg.Driver)

	switch cfg.Driver {
	case config.StoreDriverMemory:
		log.Warn("Using in-memory conversation store; conversations are lost on restart")
		return repository.NewMemoryConversationRepository(), noopClose, nil

	case config.StoreDriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongodb: %w", err)
		}
		repo := repository.NewMongoConversationRepository(client.Database(cfg.Mongo.Database), cfg.Mongo.Collection)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		log.Info("Conversation store ready", "database", cfg.Mongo.Database, "collection", cfg.Mongo.Collection)
		return repo, client.Disconnect, nil

	case config.StoreDriverRedis:
		ttl, err := config.DurationOrDefault(cfg.Redis.TTL, config.DefaultRedisTTL)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewRedisConversationRepository(repository.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      ttl,
		})
		if err := repo.Ping(ctx); err != nil {
			_ = repo.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info("Conversation store ready", "addr", cfg.Redis.Addr)
		return repo, func(context.Context) error { return repo.Close() }, nil

	case config.StoreDriverSQLite:
		repo, err := repository.NewSQLiteConversationRepository(cfg.SQLite.Path, log)
		if err != nil {
			return nil, nil, err
		}
		return repo, func(context.Context) error { return repo.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
