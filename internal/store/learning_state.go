package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
)

// LearningStateStore defines the interface for per-user learning state persistence.
// Writes are last-writer-wins per (user, card); no cross-card transaction is required.
type LearningStateStore interface {
	// Get retrieves the learning state of one card for one user.
	// Returns ErrLearningStateNotFound if the user has never reviewed the card.
	// Implementations validate loaded rows and return ErrInvalidEntity for
	// values the scheduler must never see (negative interval, EF below 1.3).
	Get(ctx context.Context, userID, cardID uuid.UUID) (*domain.LearningState, error)

	// ListByUser returns every learning state recorded for a user, keyed by card ID.
	ListByUser(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]*domain.LearningState, error)

	// Upsert inserts or replaces the learning state identified by its user and card IDs.
	// Returns ErrInvalidEntity if the state fails domain validation.
	Upsert(ctx context.Context, state *domain.LearningState) error
}
