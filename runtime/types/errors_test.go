package types

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Methods(t *testing.T) {
	t.Run("code follows kind", func(t *testing.T) {
		err := NewError(ErrNotFound, "no %s", "user")
		assert.Equal(t, "P2025", err.Code)
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.False(t, errors.Is(err, ErrUniqueConstraint))
	})

	t.Run("builders fill context", func(t *testing.T) {
		cause := errors.New("UNIQUE constraint failed: User.email")
		err := NewError(ErrUniqueConstraint, "duplicate").
			WithModel("User").
			WithField("email").
			WithMeta("target", "email").
			WithCause(cause)

		assert.Equal(t, "User", err.Model)
		assert.Equal(t, "email", err.Field)
		assert.Equal(t, "email", err.Meta["target"])
		assert.True(t, errors.Is(err, cause))
		assert.Equal(t, "[P2002] unique constraint violation on User.email: duplicate target=email: UNIQUE constraint failed: User.email", err.Error())
	})

	t.Run("survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("update wallet: %w", NewError(ErrForeignKeyConstraint, ""))
		assert.True(t, IsForeignKeyConstraint(err))

		var typed *Error
		require.True(t, errors.As(err, &typed))
		assert.Equal(t, "P2003", typed.Code)
	})
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind error
	}{
		{"nil", nil, nil},
		{"deadline", context.DeadlineExceeded, ErrTransactionTimeout},
		{"canceled", context.Canceled, ErrTransactionTimeout},
		{"plain", errors.New("disk I/O error"), ErrEngine},
		{"already typed", NewError(ErrNotFound, ""), ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.err, "Order")
			if tt.wantKind == nil {
				assert.Nil(t, got)
				return
			}
			assert.True(t, errors.Is(got, tt.wantKind))
			var typed *Error
			require.True(t, errors.As(got, &typed))
			assert.Equal(t, "Order", typed.Model)
		})
	}
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsNotFound(NewError(ErrNotFound, "")))
	assert.True(t, IsUniqueConstraint(NewError(ErrUniqueConstraint, "")))
	assert.True(t, IsInvalidArgument(NewError(ErrInvalidGroupBy, "")))
	assert.True(t, IsInvalidArgument(NewError(ErrExclusiveSelectInclude, "")))
	assert.False(t, IsInvalidArgument(NewError(ErrNotFound, "")))
	assert.True(t, IsTimeout(NewError(ErrTransactionMaxWait, "")))
	assert.Equal(t, ErrEngine, KindOf(errors.New("boom")))
	assert.Equal(t, ErrInvalidGroupBy, KindOf(fmt.Errorf("x: %w", ErrInvalidGroupBy)))
}
