package srs

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
)

// calculateNewEaseFactor determines the new ease factor based on the review outcome.
//
// A brand-new card keeps its initial ease factor on a successful first review.
// Every other review applies the outcome's adjustment from params, and the
// result is clamped between params.MinEaseFactor and params.MaxEaseFactor.
func calculateNewEaseFactor(
	currentEF float64,
	isNew bool,
	outcome domain.Outcome,
	params *Params,
) float64 {
	if isNew && outcome == domain.OutcomeMastered {
		return currentEF
	}

	newEF := currentEF + params.EaseFactorAdjustment[outcome]

	// Ensure ease factor stays within configured limits
	if newEF < params.MinEaseFactor {
		newEF = params.MinEaseFactor
	}
	if newEF > params.MaxEaseFactor {
		newEF = params.MaxEaseFactor
	}

	return newEF
}

// calculateNewInterval determines the new interval in days.
//
// Algorithm behavior:
//   - "still learning" resets the interval to params.LapseIntervalDays
//   - the first success after a reset uses params.FirstIntervalDays
//   - the second consecutive success uses params.SecondIntervalDays
//   - later successes multiply the interval by the ease factor, rounding up,
//     always growing by at least one day
//
// Every result is capped at params.MaxIntervalDays.
func calculateNewInterval(
	currentInterval int,
	repetitionCount int,
	easeFactor float64,
	outcome domain.Outcome,
	params *Params,
) int {
	var next int
	switch {
	case outcome == domain.OutcomeStillLearning:
		next = params.LapseIntervalDays
	case repetitionCount == 0:
		next = params.FirstIntervalDays
	case repetitionCount == 1:
		next = params.SecondIntervalDays
	default:
		next = int(math.Ceil(float64(currentInterval) * easeFactor))
		if next <= currentInterval {
			next = currentInterval + 1
		}
	}

	if next > params.MaxIntervalDays {
		next = params.MaxIntervalDays
	}
	return next
}

// calculateNextState builds the state that follows prev after a review.
// prev is nil for a card the user has never reviewed. The input is not modified.
func calculateNextState(
	prev *domain.LearningState,
	userID, cardID uuid.UUID,
	outcome domain.Outcome,
	now time.Time,
	params *Params,
) domain.LearningState {
	isNew := prev == nil
	current := domain.LearningState{
		UserID:     userID,
		CardID:     cardID,
		EaseFactor: params.InitialEaseFactor,
	}
	if !isNew {
		current = *prev
	}

	next := domain.LearningState{
		UserID:     current.UserID,
		CardID:     current.CardID,
		EaseFactor: calculateNewEaseFactor(current.EaseFactor, isNew, outcome, params),
	}

	next.IntervalDays = calculateNewInterval(
		current.IntervalDays,
		current.RepetitionCount,
		next.EaseFactor,
		outcome,
		params,
	)

	if outcome == domain.OutcomeMastered {
		next.RepetitionCount = current.RepetitionCount + 1
		next.IsMastered = next.IntervalDays >= params.MasteryIntervalDays
	}

	reviewedAt := now
	next.LastReviewedAt = &reviewedAt
	next.NextReviewAt = now.AddDate(0, 0, next.IntervalDays)

	return next
}
