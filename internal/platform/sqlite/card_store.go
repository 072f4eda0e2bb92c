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

const cardColumns = `id, prompt, definition, pronunciation, example, difficulty, subject, created_at`

// CardStore implements store.CardStore on SQLite.
type CardStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewCardStore creates a card catalog over db, which may be a *sql.DB or *sql.Tx.
// If logger is nil, a default logger will be used.
func NewCardStore(db store.DBTX, logger *slog.Logger) *CardStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CardStore{
		db:     db,
		logger: logger.With(slog.String("component", "card_store")),
	}
}

// Ensure CardStore implements store.CardStore interface
var _ store.CardStore = (*CardStore)(nil)

// List implements store.CardStore.List
func (s *CardStore) List(ctx context.Context) ([]domain.Card, error) {
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
	return cards, nil
}

// GetByID implements store.CardStore.GetByID
func (s *CardStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = ?`, id.String())

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
func (s *CardStore) CreateMultiple(ctx context.Context, cards []domain.Card) error {
	for i := range cards {
		if err := cards[i].Validate(); err != nil {
			return fmt.Errorf("%w: card %d: %v", store.ErrInvalidEntity, i, err)
		}
	}

	for i := range cards {
		c := &cards[i]
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO cards (`+cardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID.String(), c.Prompt, c.Definition, c.Pronunciation, c.Example,
			string(c.Difficulty), c.Subject, c.CreatedAt.UnixNano(),
		)
		if err != nil {
			s.logger.Error("failed to insert card",
				slog.String("card_id", c.ID.String()),
				slog.String("error", redact.Error(err)))
			return MapUniqueViolation(err, store.ErrCardExists)
		}
	}
	return nil
}

// WithTx implements store.CardStore.WithTx
func (s *CardStore) WithTx(tx *sql.Tx) store.CardStore {
	return &CardStore{db: tx, logger: s.logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(r rowScanner) (domain.Card, error) {
	var (
		c          domain.Card
		id         string
		difficulty string
		created    int64
	)
	if err := r.Scan(
		&id, &c.Prompt, &c.Definition, &c.Pronunciation, &c.Example,
		&difficulty, &c.Subject, &created,
	); err != nil {
		return domain.Card{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return domain.Card{}, fmt.Errorf("%w: card id %q: %v", store.ErrInvalidEntity, id, err)
	}
	c.ID = parsed
	c.Difficulty = domain.Difficulty(difficulty)
	c.CreatedAt = fromNanos(created)
	return c, nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
