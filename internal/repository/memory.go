package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/m2tx/agent_chat/internal/model"
)

// MemoryConversationRepository keeps conversations in process memory.
// Meant for local development and tests.
type MemoryConversationRepository struct {
	mu    sync.RWMutex
	convs map[string]model.Conversation
	now   func() time.Time
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{
		convs: make(map[string]model.Conversation),
		now:   time.Now,
	}
}

func (r *MemoryConversationRepository) Save(ctx context.Context, conv *model.Conversation) error {
	if conv == nil || conv.ID == "" {
		return fmt.Errorf("repository: conversation id is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	stored, exists := r.convs[conv.ID]
	if !exists {
		stored = model.Conversation{ID: conv.ID, OwnerID: conv.OwnerID, CreatedAt: now}
	}
	stored.Messages = slices.Clone(conv.Messages)
	stored.UpdatedAt = now
	r.convs[conv.ID] = stored
	return nil
}

func (r *MemoryConversationRepository) Get(ctx context.Context, id string) (*model.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	conv.Messages = slices.Clone(conv.Messages)
	return &conv, nil
}

func (r *MemoryConversationRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.convs[id]; !ok {
		return ErrNotFound
	}
	delete(r.convs, id)
	return nil
}
