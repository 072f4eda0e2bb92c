package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/redact"
	"github.com/phrazzld/scry-vocab/internal/store"
)

const stateColumns = `user_id, card_id, ease_factor, repetition_count, interval_days,
	next_review_at, last_reviewed_at, is_mastered`

// PostgresLearningStateStore implements store.LearningStateStore on PostgreSQL.
type PostgresLearningStateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresLearningStateStore creates a learning state store over db.
// If logger is nil, a default logger will be used.
func NewPostgresLearningStateStore(db store.DBTX, logger *slog.Logger) *PostgresLearningStateStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresLearningStateStore{
		db:     db,
		logger: logger.With(slog.String("component", "learning_state_store")),
	}
}

// Ensure PostgresLearningStateStore implements store.LearningStateStore interface
var _ store.LearningStateStore = (*PostgresLearningStateStore)(nil)

// Get implements store.LearningStateStore.Get
func (s *PostgresLearningStateStore) Get(
	ctx context.Context,
	userID, cardID uuid.UUID,
) (*domain.LearningState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+stateColumns+` FROM learning_states WHERE user_id = $1 AND card_id = $2`,
		userID, cardID)

	state, err := scanLearningState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrLearningStateNotFound
	}
	if err != nil {
		return nil, s.loadError("get", err)
	}
	return state, nil
}

// ListByUser implements store.LearningStateStore.ListByUser
func (s *PostgresLearningStateStore) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
) (map[uuid.UUID]*domain.LearningState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stateColumns+` FROM learning_states WHERE user_id = $1`, userID)
	if err != nil {
		s.logger.Error("failed to list learning states",
			slog.String("user_id", userID.String()),
			slog.String("error", redact.Error(err)))
		return nil, store.NewStoreError("learning_state", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	states := make(map[uuid.UUID]*domain.LearningState)
	for rows.Next() {
		state, err := scanLearningState(rows)
		if err != nil {
			return nil, s.loadError("list", err)
		}
		states[state.CardID] = state
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("learning_state", "list", "iteration failed", MapError(err))
	}
	return states, nil
}

// Upsert implements store.LearningStateStore.Upsert
func (s *PostgresLearningStateStore) Upsert(ctx context.Context, state *domain.LearningState) error {
	if state == nil {
		return fmt.Errorf("%w: nil learning state", store.ErrInvalidEntity)
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	var lastReviewed *time.Time
	if state.LastReviewedAt != nil {
		t := state.LastReviewedAt.UTC()
		lastReviewed = &t
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learning_states (`+stateColumns+`, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (user_id, card_id) DO UPDATE SET
			ease_factor      = EXCLUDED.ease_factor,
			repetition_count = EXCLUDED.repetition_count,
			interval_days    = EXCLUDED.interval_days,
			next_review_at   = EXCLUDED.next_review_at,
			last_reviewed_at = EXCLUDED.last_reviewed_at,
			is_mastered      = EXCLUDED.is_mastered,
			updated_at       = NOW()`,
		state.UserID, state.CardID, state.EaseFactor, state.RepetitionCount,
		state.IntervalDays, state.NextReviewAt.UTC(), lastReviewed, state.IsMastered,
	)
	if err != nil {
		s.logger.Error("failed to upsert learning state",
			slog.String("user_id", state.UserID.String()),
			slog.String("card_id", state.CardID.String()),
			slog.String("error", redact.Error(err)))
		return store.NewStoreError("learning_state", "upsert", "exec failed", MapError(err))
	}
	return nil
}

func (s *PostgresLearningStateStore) loadError(op string, err error) error {
	if errors.Is(err, store.ErrInvalidEntity) {
		s.logger.Warn("rejected corrupt learning state row", slog.String("error", redact.Error(err)))
		return err
	}
	s.logger.Error("failed to load learning state", slog.String("error", redact.Error(err)))
	return store.NewStoreError("learning_state", op, "query failed", MapError(err))
}

// scanLearningState reads one row and validates it so corrupt values never
// reach the scheduler.
func scanLearningState(r rowScanner) (*domain.LearningState, error) {
	var st domain.LearningState
	var lastReviewed sql.NullTime
	if err := r.Scan(
		&st.UserID, &st.CardID, &st.EaseFactor, &st.RepetitionCount, &st.IntervalDays,
		&st.NextReviewAt, &lastReviewed, &st.IsMastered,
	); err != nil {
		return nil, err
	}
	if lastReviewed.Valid {
		t := lastReviewed.Time
		st.LastReviewedAt = &t
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	return &st, nil
}
