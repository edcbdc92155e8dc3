package repository

import (
	"context"
	"fmt"

	apperrors "github.com/m2tx/agent_chat/internal/errors"
	"github.com/m2tx/agent_chat/internal/model"
)

// ErrNotFound is returned by Get and Delete for unknown conversation ids.
var ErrNotFound = fmt.Errorf("repository: conversation %w", apperrors.ErrNotFound)

// ConversationRepository defines persistence operations for conversations.
type ConversationRepository interface {
	// Get loads a conversation. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*model.Conversation, error)

	// Save persists the full message history for a conversation.
	// Replaces any previously stored messages. The owner is only written
	// when the conversation is created.
	Save(ctx context.Context, conv *model.Conversation) error

	// Delete removes a conversation. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error
}
