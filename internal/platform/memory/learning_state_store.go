package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/store"
)

type stateKey struct {
	userID uuid.UUID
	cardID uuid.UUID
}

// LearningStateStore is an in-memory learning state tracker with
// last-writer-wins semantics.
type LearningStateStore struct {
	mu     sync.RWMutex
	states map[stateKey]domain.LearningState
}

// Ensure LearningStateStore implements store.LearningStateStore interface
var _ store.LearningStateStore = (*LearningStateStore)(nil)

// NewLearningStateStore returns an empty tracker.
func NewLearningStateStore() *LearningStateStore {
	return &LearningStateStore{states: make(map[stateKey]domain.LearningState)}
}

// Get implements store.LearningStateStore.Get
func (s *LearningStateStore) Get(
	ctx context.Context,
	userID, cardID uuid.UUID,
) (*domain.LearningState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[stateKey{userID, cardID}]
	if !ok {
		return nil, store.ErrLearningStateNotFound
	}
	return cloneState(st), nil
}

// ListByUser implements store.LearningStateStore.ListByUser
func (s *LearningStateStore) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
) (map[uuid.UUID]*domain.LearningState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uuid.UUID]*domain.LearningState)
	for k, st := range s.states {
		if k.userID == userID {
			out[k.cardID] = cloneState(st)
		}
	}
	return out, nil
}

// Upsert implements store.LearningStateStore.Upsert
func (s *LearningStateStore) Upsert(ctx context.Context, state *domain.LearningState) error {
	if state == nil {
		return fmt.Errorf("%w: nil learning state", store.ErrInvalidEntity)
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[stateKey{state.UserID, state.CardID}] = *cloneState(*state)
	return nil
}

// Len returns the number of stored states.
func (s *LearningStateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// cloneState copies st including the LastReviewedAt pointer target.
func cloneState(st domain.LearningState) *domain.LearningState {
	out := st
	if st.LastReviewedAt != nil {
		t := *st.LastReviewedAt
		out.LastReviewedAt = &t
	}
	return &out
}
