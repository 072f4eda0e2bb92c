package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/domain/srs"
)

// State is the lifecycle state of a session.
type State string

// Possible session states
const (
	StateIdle      State = "idle"
	StateActive    State = "active"
	StateCompleted State = "completed"
)

// Face is the side of the current card being shown.
type Face string

// Possible faces
const (
	FaceFront Face = "front"
	FaceBack  Face = "back"
)

// Reason explains a Start that did not start anything.
type Reason string

// ReasonNothingToReview means the candidate list was empty.
const ReasonNothingToReview Reason = "nothing_to_review"

// StartResult reports the outcome of Start.
type StartResult struct {
	Started bool   `json:"started"`
	Reason  Reason `json:"reason,omitempty"`
	Total   int    `json:"total"`
}

// Counters track outcomes recorded in a session.
// CardsReviewed always equals MasteredCount + StillLearningCount.
type Counters struct {
	CardsReviewed      int `json:"cards_reviewed"`
	MasteredCount      int `json:"mastered_count"`
	StillLearningCount int `json:"still_learning_count"`
}

// Review is the result of recording one outcome.
type Review struct {
	Card       domain.Card           `json:"card"`
	Outcome    domain.Outcome        `json:"outcome"`
	Previous   *domain.LearningState `json:"previous,omitempty"`
	Next       domain.LearningState  `json:"next"`
	ReviewedAt time.Time             `json:"reviewed_at"`
}

// Session is one pass over a queue of candidate cards. The zero value is an
// idle session with no ID.
type Session struct {
	id          uuid.UUID
	userID      uuid.UUID
	state       State
	queue       []domain.Card
	states      map[uuid.UUID]*domain.LearningState
	face        Face
	counters    Counters
	total       int
	startedAt   time.Time
	completedAt time.Time
	terminated  bool
}

// Start creates a session over candidates. states supplies the learning state of
// each candidate the user has seen before; cards without one are new. Repeated
// card IDs are dropped, first occurrence wins. With no candidates the session
// stays Idle and the result carries ReasonNothingToReview.
func Start(
	id, userID uuid.UUID,
	candidates []domain.Card,
	states map[uuid.UUID]*domain.LearningState,
	now time.Time,
) (Session, StartResult) {
	s := Session{id: id, userID: userID, state: StateIdle}

	seen := make(map[uuid.UUID]struct{}, len(candidates))
	queue := make([]domain.Card, 0, len(candidates))
	known := make(map[uuid.UUID]*domain.LearningState)
	for _, c := range candidates {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		queue = append(queue, c)
		if st, ok := states[c.ID]; ok && st != nil {
			cp := *st
			known[c.ID] = &cp
		}
	}

	if len(queue) == 0 {
		return s, StartResult{Started: false, Reason: ReasonNothingToReview}
	}

	s.state = StateActive
	s.queue = queue
	s.states = known
	s.face = FaceFront
	s.total = len(queue)
	s.startedAt = now
	return s, StartResult{Started: true, Total: len(queue)}
}

// ID returns the session ID.
func (s Session) ID() uuid.UUID { return s.id }

// UserID returns the ID of the reviewing user.
func (s Session) UserID() uuid.UUID { return s.userID }

// State returns the lifecycle state.
func (s Session) State() State {
	if s.state == "" {
		return StateIdle
	}
	return s.state
}

// Face returns the face of the current card.
func (s Session) Face() Face { return s.face }

// Counters returns the outcome counters.
func (s Session) Counters() Counters { return s.counters }

// Remaining returns the number of cards left, the current one included.
func (s Session) Remaining() int { return len(s.queue) }

// Current returns the card at the head of the queue.
func (s Session) Current() (domain.Card, bool) {
	if s.State() != StateActive || len(s.queue) == 0 {
		return domain.Card{}, false
	}
	return s.queue[0], true
}

// Flip toggles the current card between front and back.
func (s Session) Flip() Session {
	s.mustBeActive("flip")
	if s.face == FaceBack {
		s.face = FaceFront
	} else {
		s.face = FaceBack
	}
	return s
}

// Record applies outcome to the current card. It evaluates the card's next
// learning state with scheduler, bumps the counters and moves to the next card.
// When the last card is recorded the session completes. An invalid outcome
// returns domain.ErrInvalidOutcome and leaves the session unchanged.
func (s Session) Record(
	scheduler srs.Scheduler,
	outcome domain.Outcome,
	now time.Time,
) (Session, Review, error) {
	s.mustBeActive("record")
	if !outcome.Valid() {
		return s, Review{}, domain.ErrInvalidOutcome
	}

	card := s.queue[0]
	prev := s.states[card.ID]
	next, err := scheduler.Evaluate(s.userID, card.ID, prev, outcome, now)
	if err != nil {
		return s, Review{}, err
	}

	review := Review{Card: card, Outcome: outcome, Next: next, ReviewedAt: now}
	if prev != nil {
		cp := *prev
		review.Previous = &cp
	}

	s.counters.CardsReviewed++
	if outcome == domain.OutcomeMastered {
		s.counters.MasteredCount++
	} else {
		s.counters.StillLearningCount++
	}

	s.queue = s.queue[1:]
	s.face = FaceFront
	if len(s.queue) == 0 {
		s.queue = nil
		s.state = StateCompleted
		s.completedAt = now
	}
	return s, review, nil
}

// Terminate ends an active session early. Unreviewed cards are discarded and
// not counted. Terminating a completed or idle session returns it unchanged.
func (s Session) Terminate(now time.Time) Session {
	if s.State() != StateActive {
		return s
	}
	s.state = StateCompleted
	s.completedAt = now
	s.terminated = true
	s.queue = nil
	s.face = FaceFront
	return s
}

func (s Session) mustBeActive(op string) {
	if s.State() != StateActive {
		panic(&ProtocolError{Op: op, State: s.State()})
	}
}
