package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, ErrCodeInternal, "saving profile")

	assert.Equal(t, "saving profile: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "no profile", NotFound("no profile").Error())
}

func TestCredential_KeepsCauseOutOfMessage(t *testing.T) {
	cause := errors.New("password hash mismatch for user jane@school.org")
	err := Credential("invalid email or password", cause)

	assert.True(t, IsCredential(err))
	assert.Equal(t, "invalid email or password", err.Message)
	assert.ErrorIs(t, err, cause)
}

func TestOrphanedIdentity_IsDistinctFromCredential(t *testing.T) {
	err := OrphanedIdentity("id-42", errors.New("profile insert failed"))

	assert.True(t, IsOrphanedIdentity(err))
	assert.False(t, IsCredential(err))
	assert.Contains(t, err.Message, "id-42")
}

func TestCodePredicates(t *testing.T) {
	assert.True(t, IsNotFound(NotFoundf("profile %s", "p1")))
	assert.True(t, IsConflict(Conflict("email taken")))
	assert.True(t, IsValidation(ValidationField("email", "invalid")))
	assert.True(t, IsProfileInconsistency(ProfileInconsistency("id-1")))

	assert.False(t, IsNotFound(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), GetCode(errors.New("plain")))
	assert.Equal(t, "email", GetField(ValidationField("email", "invalid")))
}

func TestCodePredicates_WrappedChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFound("profile not found"))
	assert.True(t, IsNotFound(err))
}

func TestMapDBError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		require.NoError(t, MapDBError(nil))
	})

	t.Run("no rows becomes not found", func(t *testing.T) {
		err := MapDBError(fmt.Errorf("query: %w", pgx.ErrNoRows))
		assert.True(t, IsNotFound(err))
	})

	t.Run("context deadline becomes timeout", func(t *testing.T) {
		err := MapDBError(context.DeadlineExceeded)
		assert.Equal(t, ErrCodeTimeout, GetCode(err))
	})

	t.Run("unique violation becomes conflict with field", func(t *testing.T) {
		pgErr := &pgconn.PgError{
			Code:   pgerrcode.UniqueViolation,
			Detail: "Key (email)=(jane@school.org) already exists.",
		}
		err := MapDBError(pgErr)
		assert.True(t, IsConflict(err))
		assert.Equal(t, "email", GetField(err))
	})

	t.Run("not null violation becomes validation", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: pgerrcode.NotNullViolation, ColumnName: "role"}
		err := MapDBError(pgErr)
		assert.True(t, IsValidation(err))
		assert.Equal(t, "role", GetField(err))
	})

	t.Run("unknown pg error becomes internal", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: pgerrcode.SerializationFailure}
		assert.Equal(t, ErrCodeInternal, GetCode(MapDBError(pgErr)))
	})

	t.Run("unrecognized error is returned unchanged", func(t *testing.T) {
		plain := errors.New("dial tcp: connection refused")
		assert.Same(t, plain, MapDBError(plain))
	})
}
