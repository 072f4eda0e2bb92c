//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTimeout bounds every database operation in these tests.
const testTimeout = 10 * time.Second

// openIntegrationDB connects to DATABASE_URL and applies migrations.
func openIntegrationDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping PostgreSQL integration tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	db, err := Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(ctx, db, nil))
	return db
}

// withTx runs fn in a transaction that is always rolled back.
func withTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()
	tx, err := db.Begin()
	require.NoError(t, err)
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Errorf("failed to roll back transaction: %v", err)
		}
	}()
	fn(t, tx)
}

func TestPostgresStores_Integration(t *testing.T) {
	db := openIntegrationDB(t)

	withTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()

		cards := NewPostgresCardStore(tx, nil)
		states := NewPostgresLearningStateStore(tx, nil)

		created := time.Now().UTC().Truncate(time.Microsecond)
		a := domain.Card{
			ID: uuid.New(), Prompt: "abate", Definition: "to lessen",
			Difficulty: domain.DifficultyMedium, Subject: "ENGLISH", CreatedAt: created,
		}
		b := domain.Card{
			ID: uuid.New(), Prompt: "sine", Definition: "a trig ratio",
			Difficulty: domain.DifficultyEasy, Subject: "MATH", CreatedAt: created,
		}
		require.NoError(t, cards.CreateMultiple(ctx, []domain.Card{a, b}))

		got, err := cards.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "sine", got.Prompt)
		assert.True(t, created.Equal(got.CreatedAt))

		_, err = cards.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrCardNotFound)

		userID := uuid.New()
		reviewed := created.Add(time.Minute)
		state := &domain.LearningState{
			UserID:          userID,
			CardID:          a.ID,
			EaseFactor:      2.5,
			RepetitionCount: 1,
			IntervalDays:    1,
			LastReviewedAt:  &reviewed,
			NextReviewAt:    reviewed.AddDate(0, 0, 1),
		}
		require.NoError(t, states.Upsert(ctx, state))

		state.RepetitionCount = 2
		state.IntervalDays = 6
		state.NextReviewAt = reviewed.AddDate(0, 0, 6)
		require.NoError(t, states.Upsert(ctx, state))

		all, err := states.ListByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, 6, all[a.ID].IntervalDays)
		require.NotNil(t, all[a.ID].LastReviewedAt)
		assert.True(t, reviewed.Equal(*all[a.ID].LastReviewedAt))

		_, err = states.Get(ctx, userID, b.ID)
		assert.ErrorIs(t, err, store.ErrLearningStateNotFound)

		// Last, since a failed statement aborts the transaction
		err = cards.CreateMultiple(ctx, []domain.Card{a})
		assert.ErrorIs(t, err, store.ErrCardExists)
	})
}
