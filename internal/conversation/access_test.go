package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/m2tx/agent_chat/internal/errors"
	"github.com/m2tx/agent_chat/internal/model"
	"github.com/m2tx/agent_chat/internal/repository"
)

func seeded(t *testing.T) *repository.MemoryConversationRepository {
	t.Helper()
	repo := repository.NewMemoryConversationRepository()
	require.NoError(t, repo.Save(context.Background(), &model.Conversation{ID: "c1", OwnerID: "u1", Messages: history}))
	return repo
}

func TestAccessController_AuthorizeDelete(t *testing.T) {
	ac := NewAccessController(seeded(t))

	tests := []struct {
		name      string
		id        string
		requester string
		want      Decision
	}{
		{"owner", "c1", "u1", Authorized},
		{"other user", "c1", "u2", Forbidden},
		{"anonymous", "c1", "", Forbidden},
		{"missing", "nope", "u1", NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ac.AuthorizeDelete(context.Background(), tt.id, tt.requester)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAccessController_Delete(t *testing.T) {
	repo := seeded(t)
	ac := NewAccessController(repo)

	require.NoError(t, ac.Delete(context.Background(), "c1", "u1"))

	_, err := repo.Get(context.Background(), "c1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, ac.Delete(context.Background(), "c1", "u1"), apperrors.ErrNotFound)
}

func TestAccessController_DeleteForbiddenKeepsConversation(t *testing.T) {
	repo := seeded(t)
	ac := NewAccessController(repo)

	err := ac.Delete(context.Background(), "c1", "u2")
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	_, getErr := repo.Get(context.Background(), "c1")
	assert.NoError(t, getErr)
}

func TestAccessController_StoreFailure(t *testing.T) {
	repo := &failingRepository{ConversationRepository: seeded(t), delErr: errors.New("connection reset")}
	ac := NewAccessController(repo)

	err := ac.Delete(context.Background(), "c1", "u1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.NotErrorIs(t, err, apperrors.ErrPermissionDenied)

	repo.getErr = errors.New("connection reset")
	_, err = ac.AuthorizeDelete(context.Background(), "c1", "u1")
	assert.Error(t, err)
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "authorized", Authorized.String())
	assert.Equal(t, "forbidden", Forbidden.String())
	assert.Equal(t, "not_found", NotFound.String())
}
