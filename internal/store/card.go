package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
)

// CardStore defines the interface for the card catalog.
// The review core only reads from it; cards are authored elsewhere.
type CardStore interface {
	// List returns every card in catalog order.
	// Catalog order is stable: by creation time, then by insertion sequence.
	List(ctx context.Context) ([]domain.Card, error)

	// GetByID retrieves a card by its unique ID.
	// Returns ErrCardNotFound if the card does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error)

	// CreateMultiple saves multiple cards to the store.
	// IMPORTANT: This method MUST be run within a transaction for atomicity.
	// Use WithTx together with RunInTransaction:
	//
	//   err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
	//       return cardStore.WithTx(tx).CreateMultiple(ctx, cards)
	//   })
	//
	// Returns ErrInvalidEntity if any card fails domain validation and
	// ErrCardExists if a card ID is already present.
	CreateMultiple(ctx context.Context, cards []domain.Card) error

	// WithTx returns a new CardStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) CardStore
}
