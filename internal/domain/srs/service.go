package srs

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
)

// ErrInvalidOutcome is returned when an outcome is neither mastered nor still learning.
var ErrInvalidOutcome = domain.ErrInvalidOutcome

// Scheduler defines the interface for SRS algorithm operations.
// All methods are pure: they never touch storage and never modify their inputs.
type Scheduler interface {
	// Evaluate computes the learning state that follows a review.
	// prev is nil when the user has never reviewed the card; userID and cardID
	// identify the state in that case and are ignored otherwise.
	Evaluate(
		userID, cardID uuid.UUID,
		prev *domain.LearningState,
		outcome domain.Outcome,
		now time.Time,
	) (domain.LearningState, error)

	// IsDue reports whether a card should be reviewed at now.
	// A nil state (new card) is always due.
	IsDue(state *domain.LearningState, now time.Time) bool

	// Params returns the parameters the scheduler was built with.
	Params() Params
}

// defaultScheduler is the standard implementation of the Scheduler interface
type defaultScheduler struct {
	params *Params
}

// NewSchedulerWithParams creates a new scheduler with custom parameters.
// A nil params selects the defaults. The scheduler keeps its own copy, so
// later changes to params do not affect it.
func NewSchedulerWithParams(params *Params) Scheduler {
	if params == nil {
		params = NewDefaultParams()
	}
	return &defaultScheduler{
		params: params.clone(),
	}
}

// Evaluate implements Scheduler.Evaluate
func (s *defaultScheduler) Evaluate(
	userID, cardID uuid.UUID,
	prev *domain.LearningState,
	outcome domain.Outcome,
	now time.Time,
) (domain.LearningState, error) {
	if !outcome.Valid() {
		return domain.LearningState{}, ErrInvalidOutcome
	}

	return calculateNextState(prev, userID, cardID, outcome, now, s.params), nil
}

// IsDue implements Scheduler.IsDue
func (s *defaultScheduler) IsDue(state *domain.LearningState, now time.Time) bool {
	return IsDue(state, now)
}

// Params implements Scheduler.Params. The result is a copy.
func (s *defaultScheduler) Params() Params {
	return *s.params.clone()
}

// IsDue reports whether a card with the given state is due at now.
func IsDue(state *domain.LearningState, now time.Time) bool {
	if state == nil {
		return true
	}
	return !now.Before(state.NextReviewAt)
}
