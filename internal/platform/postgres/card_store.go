package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/redact"
	"github.com/phrazzld/scry-vocab/internal/store"
)

const cardColumns = `id, prompt, definition, pronunciation, example, difficulty, subject, created_at`

// PostgresCardStore implements the store.CardStore interface
// using a PostgreSQL database as the storage backend.
type PostgresCardStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCardStore creates a new PostgreSQL implementation of the CardStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresCardStore(db store.DBTX, logger *slog.Logger) *PostgresCardStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresCardStore{
		db:     db,
		logger: logger.With(slog.String("component", "card_store")),
	}
}

// Ensure PostgresCardStore implements store.CardStore interface
var _ store.CardStore = (*PostgresCardStore)(nil)

// List implements store.CardStore.List
func (s *PostgresCardStore) List(ctx context.Context) ([]domain.Card, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM cards ORDER BY created_at, seq`)
	if err != nil {
		s.logger.Error("failed to list cards", slog.String("error", redact.Error(err)))
		return nil, store.NewStoreError("card", "list", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var cards []domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, store.NewStoreError("card", "list", "scan failed", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("card", "list", "iteration failed", MapError(err))
	}

	s.logger.Debug("listed cards", slog.Int("count", len(cards)))
	return cards, nil
}

// GetByID implements store.CardStore.GetByID
func (s *PostgresCardStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = $1`, id)

	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrCardNotFound
	}
	if err != nil {
		s.logger.Error("failed to get card",
			slog.String("card_id", id.String()),
			slog.String("error", redact.Error(err)))
		return nil, store.NewStoreError("card", "get", "query failed", MapError(err))
	}
	return &card, nil
}

// CreateMultiple implements store.CardStore.CreateMultiple
// The caller provides atomicity by running the store inside a transaction.
func (s *PostgresCardStore) CreateMultiple(ctx context.Context, cards []domain.Card) error {
	for i := range cards {
		if err := cards[i].Validate(); err != nil {
			return fmt.Errorf("%w: card %d: %v", store.ErrInvalidEntity, i, err)
		}
	}

	for i := range cards {
		c := &cards[i]
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO cards (`+cardColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.Prompt, c.Definition, c.Pronunciation, c.Example,
			string(c.Difficulty), c.Subject, c.CreatedAt.UTC(),
		)
		if err != nil {
			s.logger.Error("failed to insert card",
				slog.String("card_id", c.ID.String()),
				slog.String("error", redact.Error(err)))
			return MapUniqueViolation(err, store.ErrCardExists)
		}
	}

	s.logger.Debug("created cards", slog.Int("count", len(cards)))
	return nil
}

// WithTx implements store.CardStore.WithTx
func (s *PostgresCardStore) WithTx(tx *sql.Tx) store.CardStore {
	return &PostgresCardStore{db: tx, logger: s.logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(r rowScanner) (domain.Card, error) {
	var c domain.Card
	var difficulty string
	if err := r.Scan(
		&c.ID, &c.Prompt, &c.Definition, &c.Pronunciation, &c.Example,
		&difficulty, &c.Subject, &c.CreatedAt,
	); err != nil {
		return domain.Card{}, err
	}
	c.Difficulty = domain.Difficulty(difficulty)
	return c, nil
}
