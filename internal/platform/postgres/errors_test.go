package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/scry-vocab/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		err      error
		expected error
	}{
		{
			name:     "no rows",
			err:      sql.ErrNoRows,
			expected: store.ErrNotFound,
		},
		{
			name:     "unique violation",
			err:      &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "cards_pkey"},
			expected: store.ErrDuplicate,
		},
		{
			name:     "check violation",
			err:      &pgconn.PgError{Code: checkViolationCode, ConstraintName: "learning_states_ease_factor_check"},
			expected: store.ErrInvalidEntity,
		},
		{
			name:     "foreign key violation",
			err:      &pgconn.PgError{Code: foreignKeyViolationCode},
			expected: store.ErrInvalidEntity,
		},
		{
			name:     "not null violation",
			err:      fmt.Errorf("insert: %w", &pgconn.PgError{Code: notNullViolationCode, ColumnName: "prompt"}),
			expected: store.ErrInvalidEntity,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := MapError(tc.err)
			assert.ErrorIs(t, mapped, tc.expected)
		})
	}

	assert.NoError(t, MapError(nil))

	plain := errors.New("connection reset")
	assert.Equal(t, plain, MapError(plain), "unmapped errors pass through")
}

func TestMapUniqueViolation(t *testing.T) {
	t.Parallel()

	dup := &pgconn.PgError{Code: uniqueViolationCode}
	assert.True(t, IsUniqueViolation(dup))
	assert.ErrorIs(t, MapUniqueViolation(dup, store.ErrCardExists), store.ErrCardExists)
	assert.ErrorIs(t, MapUniqueViolation(dup, store.ErrCardExists), store.ErrDuplicate)

	check := &pgconn.PgError{Code: checkViolationCode}
	assert.False(t, IsUniqueViolation(check))
	assert.True(t, IsCheckConstraintViolation(check))
	assert.ErrorIs(t, MapUniqueViolation(check, store.ErrCardExists), store.ErrInvalidEntity)
}
