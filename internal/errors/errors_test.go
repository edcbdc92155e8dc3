package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext_DeadlineBecomesTimeout(t *testing.T) {
	err := FromContext(context.DeadlineExceeded, "generation pass")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "timeout", Category(err))
}

func TestFromContext_CancelStaysCanceled(t *testing.T) {
	err := FromContext(context.Canceled, "generation pass")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "canceled", Category(err))
}

func TestCategory(t *testing.T) {
	cases := map[error]string{
		NotFound("conversation c1"):          "not_found",
		PermissionDenied("owner mismatch"):   "permission_denied",
		InvalidInput("missing id"):           "invalid_input",
		fmt.Errorf("x: %w", ErrToolLoop):     "tool_loop",
		fmt.Errorf("x: %w", ErrUnauthorized): "unauthorized",
		errors.New("boom"):                   "internal",
	}
	for err, want := range cases {
		assert.Equal(t, want, Category(err), err.Error())
	}
	assert.Empty(t, Category(nil))
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ignored"))
	inner := errors.New("inner")
	err := Wrap(inner, "outer")
	assert.EqualError(t, err, "outer: inner")
	assert.ErrorIs(t, err, inner)
}
