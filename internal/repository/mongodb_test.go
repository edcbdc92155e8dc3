package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TestMongoConversationRepository runs the contract against a real server.
// Set MONGODB_URI to enable it.
func TestMongoConversationRepository(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set, skipping MongoDB store tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	if err := client.Ping(ctx, nil); err != nil {
		t.Skipf("MongoDB not reachable: %v", err)
	}

	db := client.Database("agent_chat_test")
	collection := fmt.Sprintf("conversations_%d", time.Now().UnixNano())
	t.Cleanup(func() { _ = db.Collection(collection).Drop(context.Background()) })

	repo := NewMongoConversationRepository(db, collection)
	require.NoError(t, repo.EnsureIndexes(ctx))

	runContract(t, repo)
}
