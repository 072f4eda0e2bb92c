package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Default values for a card that has never been reviewed.
const (
	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
)

// Outcome is the learner's judgement after seeing the back of a card.
type Outcome string

// Possible outcome values
const (
	OutcomeMastered      Outcome = "mastered"
	OutcomeStillLearning Outcome = "still_learning"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o == OutcomeMastered || o == OutcomeStillLearning
}

// Status is the review status derived from a learning state.
type Status string

// Possible status values
const (
	StatusNew           Status = "new"
	StatusStillLearning Status = "still_learning"
	StatusMastered      Status = "mastered"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusStillLearning, StatusMastered:
		return true
	default:
		return false
	}
}

// Common validation errors for LearningState
var (
	ErrEmptyStateUserID  = errors.New("learning state user ID cannot be empty")
	ErrEmptyStateCardID  = errors.New("learning state card ID cannot be empty")
	ErrInvalidInterval   = errors.New("interval must be greater than or equal to 0")
	ErrInvalidRepetition = errors.New("repetition count must be greater than or equal to 0")
	ErrInvalidEaseFactor = errors.New("ease factor must be at least 1.3")
)

// LearningState is a user's spaced repetition progress on one card.
// A missing state means the card is new to the user.
type LearningState struct {
	UserID          uuid.UUID  `json:"user_id"`
	CardID          uuid.UUID  `json:"card_id"`
	EaseFactor      float64    `json:"ease_factor"`
	RepetitionCount int        `json:"repetition_count"`
	IntervalDays    int        `json:"interval_days"`
	NextReviewAt    time.Time  `json:"next_review_at"`
	LastReviewedAt  *time.Time `json:"last_reviewed_at,omitempty"`
	IsMastered      bool       `json:"is_mastered"`
}

// NewLearningState returns the default state of a card the user has never reviewed.
// The card is due immediately.
func NewLearningState(userID, cardID uuid.UUID, now time.Time) *LearningState {
	return &LearningState{
		UserID:       userID,
		CardID:       cardID,
		EaseFactor:   DefaultEaseFactor,
		NextReviewAt: now,
	}
}

// Validate checks if the LearningState has valid data.
// Stores call it on everything they load so the scheduler never sees bad values.
func (s *LearningState) Validate() error {
	if s.UserID == uuid.Nil {
		return ErrEmptyStateUserID
	}

	if s.CardID == uuid.Nil {
		return ErrEmptyStateCardID
	}

	if s.IntervalDays < 0 {
		return ErrInvalidInterval
	}

	if s.RepetitionCount < 0 {
		return ErrInvalidRepetition
	}

	if s.EaseFactor < MinEaseFactor {
		return ErrInvalidEaseFactor
	}

	return nil
}

// StatusOf derives the review status of a card from its (possibly nil) state.
func StatusOf(state *LearningState) Status {
	switch {
	case state == nil:
		return StatusNew
	case state.IsMastered:
		return StatusMastered
	default:
		return StatusStillLearning
	}
}
