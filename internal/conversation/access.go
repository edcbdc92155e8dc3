package conversation

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/m2tx/agent_chat/internal/errors"
	"github.com/m2tx/agent_chat/internal/repository"
)

// Decision is the outcome of an ownership check.
type Decision int

const (
	Authorized Decision = iota
	Forbidden
	NotFound
)

func (d Decision) String() string {
	switch d {
	case Authorized:
		return "authorized"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// AccessController guards conversation deletion.
type AccessController struct {
	repo repository.ConversationRepository
}

func NewAccessController(repo repository.ConversationRepository) *AccessController {
	return &AccessController{repo: repo}
}

// AuthorizeDelete decides whether requesterID may delete conversationID.
// A non-nil error means the store itself failed.
func (a *AccessController) AuthorizeDelete(ctx context.Context, conversationID, requesterID string) (Decision, error) {
	conv, err := a.repo.Get(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return NotFound, nil
	}
	if err != nil {
		return Forbidden, apperrors.Wrap(err, fmt.Sprintf("authorize delete %q", conversationID))
	}

	if requesterID == "" || conv.OwnerID != requesterID {
		return Forbidden, nil
	}
	return Authorized, nil
}

// Delete removes the conversation after AuthorizeDelete allows it. It
// returns errors wrapping ErrNotFound or ErrPermissionDenied for refused
// requests; anything else is a store failure.
func (a *AccessController) Delete(ctx context.Context, conversationID, requesterID string) error {
	decision, err := a.AuthorizeDelete(ctx, conversationID, requesterID)
	if err != nil {
		return err
	}

	switch decision {
	case NotFound:
		return apperrors.NotFound(fmt.Sprintf("conversation %q", conversationID))
	case Forbidden:
		return apperrors.PermissionDenied(fmt.Sprintf("conversation %q", conversationID))
	}

	if err := a.repo.Delete(ctx, conversationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound(fmt.Sprintf("conversation %q", conversationID))
		}
		return apperrors.Wrap(err, fmt.Sprintf("delete %q", conversationID))
	}
	return nil
}
