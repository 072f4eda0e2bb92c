package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/store"
)

// CardStore is an in-memory card catalog. Insertion order is catalog order.
type CardStore struct {
	mu    sync.RWMutex
	cards []domain.Card
	index map[uuid.UUID]int
}

// Ensure CardStore implements store.CardStore interface
var _ store.CardStore = (*CardStore)(nil)

// NewCardStore returns a catalog pre-loaded with cards, kept in the given order.
// Cards with an ID already present are ignored.
func NewCardStore(cards ...domain.Card) *CardStore {
	s := &CardStore{index: make(map[uuid.UUID]int, len(cards))}
	for _, c := range cards {
		if _, ok := s.index[c.ID]; ok {
			continue
		}
		s.index[c.ID] = len(s.cards)
		s.cards = append(s.cards, c)
	}
	return s
}

// List implements store.CardStore.List
func (s *CardStore) List(ctx context.Context) ([]domain.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Card, len(s.cards))
	copy(out, s.cards)
	return out, nil
}

// GetByID implements store.CardStore.GetByID
func (s *CardStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return nil, store.ErrCardNotFound
	}
	card := s.cards[i]
	return &card, nil
}

// CreateMultiple implements store.CardStore.CreateMultiple.
// Either every card is added or none is.
func (s *CardStore) CreateMultiple(ctx context.Context, cards []domain.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[uuid.UUID]struct{}, len(cards))
	for i := range cards {
		if err := cards[i].Validate(); err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
		if _, ok := s.index[cards[i].ID]; ok {
			return store.ErrCardExists
		}
		if _, ok := seen[cards[i].ID]; ok {
			return store.ErrCardExists
		}
		seen[cards[i].ID] = struct{}{}
	}

	for _, c := range cards {
		s.index[c.ID] = len(s.cards)
		s.cards = append(s.cards, c)
	}
	return nil
}

// WithTx implements store.CardStore.WithTx.
// The in-memory store has no transactions; CreateMultiple is already atomic.
func (s *CardStore) WithTx(_ *sql.Tx) store.CardStore {
	return s
}
