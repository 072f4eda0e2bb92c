package sqlite

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

// LearningStateStore implements store.LearningStateStore on SQLite.
type LearningStateStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

// NewLearningStateStore creates a learning state tracker over db.
// If logger is nil, a default logger will be used.
func NewLearningStateStore(db store.DBTX, logger *slog.Logger) *LearningStateStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LearningStateStore{
		db:     db,
		logger: logger.With(slog.String("component", "learning_state_store")),
		now:    time.Now,
	}
}

// Ensure LearningStateStore implements store.LearningStateStore interface
var _ store.LearningStateStore = (*LearningStateStore)(nil)

// Get implements store.LearningStateStore.Get
func (s *LearningStateStore) Get(
	ctx context.Context,
	userID, cardID uuid.UUID,
) (*domain.LearningState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+stateColumns+` FROM learning_states WHERE user_id = ? AND card_id = ?`,
		userID.String(), cardID.String())

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
func (s *LearningStateStore) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
) (map[uuid.UUID]*domain.LearningState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stateColumns+` FROM learning_states WHERE user_id = ?`, userID.String())
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
func (s *LearningStateStore) Upsert(ctx context.Context, state *domain.LearningState) error {
	if state == nil {
		return fmt.Errorf("%w: nil learning state", store.ErrInvalidEntity)
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	var lastReviewed sql.NullInt64
	if state.LastReviewedAt != nil {
		lastReviewed = sql.NullInt64{Int64: state.LastReviewedAt.UnixNano(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learning_states (`+stateColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, card_id) DO UPDATE SET
			ease_factor      = excluded.ease_factor,
			repetition_count = excluded.repetition_count,
			interval_days    = excluded.interval_days,
			next_review_at   = excluded.next_review_at,
			last_reviewed_at = excluded.last_reviewed_at,
			is_mastered      = excluded.is_mastered,
			updated_at       = excluded.updated_at`,
		state.UserID.String(), state.CardID.String(), state.EaseFactor, state.RepetitionCount,
		state.IntervalDays, state.NextReviewAt.UnixNano(), lastReviewed, state.IsMastered,
		s.now().UnixNano(),
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

func (s *LearningStateStore) loadError(op string, err error) error {
	if errors.Is(err, store.ErrInvalidEntity) {
		s.logger.Warn("rejected corrupt learning state row", slog.String("error", redact.Error(err)))
		return err
	}
	s.logger.Error("failed to load learning state", slog.String("error", redact.Error(err)))
	return store.NewStoreError("learning_state", op, "query failed", MapError(err))
}

func scanLearningState(r rowScanner) (*domain.LearningState, error) {
	var (
		st             domain.LearningState
		userID, cardID string
		next           int64
		lastReviewed   sql.NullInt64
	)
	if err := r.Scan(
		&userID, &cardID, &st.EaseFactor, &st.RepetitionCount, &st.IntervalDays,
		&next, &lastReviewed, &st.IsMastered,
	); err != nil {
		return nil, err
	}

	var err error
	if st.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("%w: user id %q: %v", store.ErrInvalidEntity, userID, err)
	}
	if st.CardID, err = uuid.Parse(cardID); err != nil {
		return nil, fmt.Errorf("%w: card id %q: %v", store.ErrInvalidEntity, cardID, err)
	}
	st.NextReviewAt = fromNanos(next)
	if lastReviewed.Valid {
		t := fromNanos(lastReviewed.Int64)
		st.LastReviewedAt = &t
	}

	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	return &st, nil
}
