package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/m2tx/agent_chat/internal/errors"
	"github.com/m2tx/agent_chat/internal/model"
	"github.com/m2tx/agent_chat/internal/repository"
)

const DefaultPersistTimeout = 5 * time.Second

// PersistError reports why a finished turn could not be stored. It never
// affects what the caller already received.
type PersistError struct {
	ConversationID string
	Err            error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist conversation %q: %v", e.ConversationID, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Gate writes finished turns to the conversation store.
type Gate struct {
	repo    repository.ConversationRepository
	timeout time.Duration
	logger  *slog.Logger
}

// NewGate creates a Gate. A non-positive timeout uses DefaultPersistTimeout.
func NewGate(repo repository.ConversationRepository, timeout time.Duration, logger *slog.Logger) *Gate {
	if timeout <= 0 {
		timeout = DefaultPersistTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{repo: repo, timeout: timeout, logger: logger.With("component", "persistence")}
}

// Persist stores the full history under conversationID for ownerID. Without
// an owner nothing is written. An existing conversation owned by someone
// else is never overwritten.
func (g *Gate) Persist(ctx context.Context, conversationID string, history []model.Message, ownerID string) error {
	if ownerID == "" {
		g.logger.Debug("Skipping persistence without owner", "conversation_id", conversationID)
		return nil
	}
	if conversationID == "" {
		return &PersistError{Err: apperrors.InvalidInput("conversation id is empty")}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	existing, err := g.repo.Get(ctx, conversationID)
	switch {
	case err == nil:
		if existing.OwnerID != ownerID {
			return &PersistError{ConversationID: conversationID, Err: apperrors.PermissionDenied("conversation belongs to another user")}
		}
	case errors.Is(err, repository.ErrNotFound):
	default:
		return &PersistError{ConversationID: conversationID, Err: apperrors.FromContext(err, "load")}
	}

	if err := g.repo.Save(ctx, &model.Conversation{
		ID:       conversationID,
		OwnerID:  ownerID,
		Messages: history,
	}); err != nil {
		return &PersistError{ConversationID: conversationID, Err: apperrors.FromContext(err, "save")}
	}

	g.logger.Debug("Conversation persisted", "conversation_id", conversationID, "messages", len(history))
	return nil
}
