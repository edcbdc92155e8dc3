package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m2tx/agent_chat/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConversationRepository implements ConversationRepository using MongoDB.
type MongoConversationRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoConversationRepository creates a new MongoConversationRepository.
// collectionName defaults to "conversations" if empty.
func NewMongoConversationRepository(db *mongo.Database, collectionName string) *MongoConversationRepository {
	if collectionName == "" {
		collectionName = "conversations"
	}
	return &MongoConversationRepository{
		collection: db.Collection(collectionName),
		now:        time.Now,
	}
}

// EnsureIndexes creates the owner index used for listing a user's chats.
func (r *MongoConversationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "updated_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("repository: create indexes: %w", err)
	}
	return nil
}

func (r *MongoConversationRepository) Save(ctx context.Context, conv *model.Conversation) error {
	if conv == nil || conv.ID == "" {
		return fmt.Errorf("repository: conversation id is required")
	}

	now := r.now().UTC()
	filter := bson.M{"_id": conv.ID}
	update := bson.M{
		"$set": bson.M{
			"messages":   conv.Messages,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"owner_id":   conv.OwnerID,
			"created_at": now,
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("repository: upsert conversation %q: %w", conv.ID, err)
	}

	return nil
}

func (r *MongoConversationRepository) Get(ctx context.Context, id string) (*model.Conversation, error) {
	filter := bson.M{"_id": id}

	var conv model.Conversation
	err := r.collection.FindOne(ctx, filter).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository: find conversation %q: %w", id, err)
	}

	return &conv, nil
}

func (r *MongoConversationRepository) Delete(ctx context.Context, id string) error {
	filter := bson.M{"_id": id}

	res, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("repository: delete conversation %q: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}

	return nil
}
