package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
)

// Snapshot is the read model of a session for presentation layers.
type Snapshot struct {
	SessionID      uuid.UUID    `json:"session_id"`
	State          State        `json:"state"`
	CurrentCard    *domain.Card `json:"current_card,omitempty"`
	ShowDefinition bool         `json:"show_definition"`
	Counters       Counters     `json:"counters"`
	RemainingCount int          `json:"remaining_count"`
	Total          int          `json:"total"`
}

// Summary describes a session once it has ended.
type Summary struct {
	SessionID          uuid.UUID     `json:"session_id"`
	UserID             uuid.UUID     `json:"user_id"`
	CardsReviewed      int           `json:"cards_reviewed"`
	MasteredCount      int           `json:"mastered_count"`
	StillLearningCount int           `json:"still_learning_count"`
	StartedAt          time.Time     `json:"started_at"`
	CompletedAt        time.Time     `json:"completed_at"`
	Duration           time.Duration `json:"duration"`
	Terminated         bool          `json:"terminated"`
}

// Snapshot returns the current read model.
func (s Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:      s.id,
		State:          s.State(),
		ShowDefinition: s.face == FaceBack,
		Counters:       s.counters,
		RemainingCount: len(s.queue),
		Total:          s.total,
	}
	if c, ok := s.Current(); ok {
		snap.CurrentCard = &c
	}
	return snap
}

// Summary returns the counters and timing of the session. Duration and
// CompletedAt are zero until the session completes.
func (s Session) Summary() Summary {
	sum := Summary{
		SessionID:          s.id,
		UserID:             s.userID,
		CardsReviewed:      s.counters.CardsReviewed,
		MasteredCount:      s.counters.MasteredCount,
		StillLearningCount: s.counters.StillLearningCount,
		StartedAt:          s.startedAt,
		Terminated:         s.terminated,
	}
	if s.State() == StateCompleted {
		sum.CompletedAt = s.completedAt
		sum.Duration = s.completedAt.Sub(s.startedAt)
	}
	return sum
}
