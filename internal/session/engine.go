package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/domain/srs"
	"github.com/phrazzld/scry-vocab/internal/events"
	"github.com/phrazzld/scry-vocab/internal/platform/logger"
	"github.com/phrazzld/scry-vocab/internal/selection"
	"github.com/phrazzld/scry-vocab/internal/store"
)

// StateWriter persists learning states in the background. Write must not block
// on the store and must not report store errors to the caller.
type StateWriter interface {
	Write(ctx context.Context, state domain.LearningState)
	// Pending returns the user's written states the store has not confirmed
	// yet, keyed by card ID.
	Pending(userID uuid.UUID) map[uuid.UUID]domain.LearningState
}

// entry holds one user's session. Its mutex serializes that user's interactions.
// A released entry is no longer in the registry and must not be reused.
type entry struct {
	mu       sync.Mutex
	session  Session
	released bool
}

// Engine runs at most one active review session per user.
type Engine struct {
	cards     store.CardStore
	states    store.LearningStateStore
	scheduler srs.Scheduler
	writer    StateWriter
	emitter   events.EventEmitter
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*entry
}

// NewEngine creates an Engine. emitter may be nil, in which case no events are sent.
// If logger is nil, a default logger will be used.
func NewEngine(
	cards store.CardStore,
	states store.LearningStateStore,
	scheduler srs.Scheduler,
	writer StateWriter,
	emitter events.EventEmitter,
	log *slog.Logger,
) *Engine {
	if cards == nil {
		panic("cards cannot be nil")
	}
	if states == nil {
		panic("states cannot be nil")
	}
	if scheduler == nil {
		panic("scheduler cannot be nil")
	}
	if writer == nil {
		panic("writer cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		cards:     cards,
		states:    states,
		scheduler: scheduler,
		writer:    writer,
		emitter:   emitter,
		logger:    log.With(slog.String("component", "session_engine")),
		now:       time.Now,
		sessions:  make(map[uuid.UUID]*entry),
	}
}

// SetClock replaces the engine's time source. It must be called before use.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// acquire returns the user's entry, creating it if needed, with its mutex held.
func (e *Engine) acquire(userID uuid.UUID) *entry {
	for {
		e.mu.Lock()
		en, ok := e.sessions[userID]
		if !ok {
			en = &entry{}
			e.sessions[userID] = en
		}
		e.mu.Unlock()

		en.mu.Lock()
		if !en.released {
			return en
		}
		en.mu.Unlock()
	}
}

// forget removes en from the registry. en.mu must be held.
func (e *Engine) forget(userID uuid.UUID, en *entry) {
	en.released = true
	e.mu.Lock()
	if e.sessions[userID] == en {
		delete(e.sessions, userID)
	}
	e.mu.Unlock()
}

func (e *Engine) lookup(userID uuid.UUID) (*entry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	en, ok := e.sessions[userID]
	return en, ok
}

// load fetches the catalog and the user's learning states, including writes
// still on their way to the store, and resolves filter against the catalog. Fields reset by the resolution are logged.
func (e *Engine) load(
	ctx context.Context,
	op string,
	userID uuid.UUID,
	filter selection.Filter,
) ([]domain.Card, map[uuid.UUID]*domain.LearningState, selection.Filter, error) {
	log := logger.FromContextOrDefault(ctx, e.logger)

	cards, err := e.cards.List(ctx)
	if err != nil {
		log.Error("failed to load cards", slog.String("error", err.Error()))
		return nil, nil, filter, &EngineError{Operation: op, Message: "failed to load cards", Err: err}
	}

	states, err := e.states.ListByUser(ctx, userID)
	if err != nil {
		log.Error("failed to load learning states",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return nil, nil, filter, &EngineError{Operation: op, Message: "failed to load learning states", Err: err}
	}
	// Unconfirmed writes are newer than anything the store returned
	pending := e.writer.Pending(userID)
	if len(pending) > 0 && states == nil {
		states = make(map[uuid.UUID]*domain.LearningState, len(pending))
	}
	for cardID, st := range pending {
		st := st
		states[cardID] = &st
	}

	resolved, ferr := selection.Resolve(cards, filter)
	var filterErr *selection.FilterError
	if errors.As(ferr, &filterErr) {
		for _, fb := range filterErr.Fallbacks {
			log.Warn("ignoring invalid filter value",
				slog.String("field", fb.Field),
				slog.String("value", fb.Value),
				slog.String("reason", fb.Reason))
		}
	}
	return cards, states, resolved, nil
}

// Start begins a session for userID over the candidates matching filter.
// An empty candidate list is not an error: the result is not started and
// carries ReasonNothingToReview. Returns ErrSessionActive if the user already
// has an active session.
func (e *Engine) Start(
	ctx context.Context,
	userID uuid.UUID,
	filter selection.Filter,
) (Snapshot, StartResult, error) {
	en := e.acquire(userID)
	defer en.mu.Unlock()

	if en.session.State() == StateActive {
		return en.session.Snapshot(), StartResult{}, ErrSessionActive
	}

	cards, states, resolved, err := e.load(ctx, "start", userID, filter)
	if err != nil {
		if en.session.ID() == uuid.Nil {
			e.forget(userID, en)
		}
		return Snapshot{}, StartResult{}, err
	}

	candidates := selection.SelectCandidates(cards, states, resolved)
	sess, result := Start(uuid.New(), userID, candidates, states, e.now())

	log := logger.FromContextOrDefault(ctx, e.logger).With(
		slog.String("user_id", userID.String()),
		slog.String("session_id", sess.ID().String()))

	if !result.Started {
		log.Info("nothing to review", slog.String("reason", string(result.Reason)))
		if en.session.ID() == uuid.Nil {
			e.forget(userID, en)
		}
		return sess.Snapshot(), result, nil
	}

	en.session = sess
	log.Info("review session started",
		slog.Int("cards", result.Total),
		slog.Bool("filtered", !resolved.IsZero()))
	return sess.Snapshot(), result, nil
}

// Flip toggles the current card of the user's active session.
func (e *Engine) Flip(userID uuid.UUID) (Snapshot, error) {
	en, ok := e.lookup(userID)
	if !ok {
		return Snapshot{}, ErrNoActiveSession
	}
	en.mu.Lock()
	defer en.mu.Unlock()

	if en.session.State() != StateActive {
		return en.session.Snapshot(), ErrNoActiveSession
	}
	en.session = en.session.Flip()
	return en.session.Snapshot(), nil
}

// RecordOutcome applies outcome to the current card of the user's active
// session. The new learning state is handed to the StateWriter and the session
// advances without waiting for it to be stored.
func (e *Engine) RecordOutcome(
	ctx context.Context,
	userID uuid.UUID,
	outcome domain.Outcome,
) (Review, Snapshot, error) {
	en, ok := e.lookup(userID)
	if !ok {
		return Review{}, Snapshot{}, ErrNoActiveSession
	}
	en.mu.Lock()
	defer en.mu.Unlock()

	if en.session.State() != StateActive {
		return Review{}, en.session.Snapshot(), ErrNoActiveSession
	}

	log := logger.FromContextOrDefault(ctx, e.logger).With(
		slog.String("user_id", userID.String()),
		slog.String("session_id", en.session.ID().String()))

	next, review, err := en.session.Record(e.scheduler, outcome, e.now())
	if err != nil {
		log.Warn("rejected review outcome",
			slog.String("outcome", string(outcome)),
			slog.String("error", err.Error()))
		return Review{}, en.session.Snapshot(), err
	}
	en.session = next

	e.writer.Write(ctx, review.Next)

	log.Debug("recorded review outcome",
		slog.String("card_id", review.Card.ID.String()),
		slog.String("outcome", string(outcome)),
		slog.Int("interval_days", review.Next.IntervalDays),
		slog.Bool("is_mastered", review.Next.IsMastered))

	if next.State() == StateCompleted {
		e.completed(ctx, log, next)
	}
	return review, next.Snapshot(), nil
}

// Terminate ends the user's active session and returns its summary. It always
// succeeds: with no session ok is false, and a completed session is returned
// unchanged.
func (e *Engine) Terminate(ctx context.Context, userID uuid.UUID) (Summary, bool) {
	en, ok := e.lookup(userID)
	if !ok {
		return Summary{}, false
	}
	en.mu.Lock()
	defer en.mu.Unlock()

	switch en.session.State() {
	case StateActive:
		en.session = en.session.Terminate(e.now())
		log := logger.FromContextOrDefault(ctx, e.logger).With(
			slog.String("user_id", userID.String()),
			slog.String("session_id", en.session.ID().String()))
		e.completed(ctx, log, en.session)
		return en.session.Summary(), true
	case StateCompleted:
		return en.session.Summary(), true
	default:
		return Summary{}, false
	}
}

// Release drops the user's finished session from the engine. It reports false
// if there is nothing to release or the session is still active.
func (e *Engine) Release(userID uuid.UUID) bool {
	en, ok := e.lookup(userID)
	if !ok {
		return false
	}
	en.mu.Lock()
	defer en.mu.Unlock()

	if en.released || en.session.State() == StateActive {
		return false
	}
	e.forget(userID, en)
	return true
}

// Snapshot returns the read model of the user's current or last session.
func (e *Engine) Snapshot(userID uuid.UUID) (Snapshot, bool) {
	en, ok := e.lookup(userID)
	if !ok {
		return Snapshot{}, false
	}
	en.mu.Lock()
	defer en.mu.Unlock()

	if en.session.ID() == uuid.Nil {
		return Snapshot{}, false
	}
	return en.session.Snapshot(), true
}

// Overview returns the annotated catalog for userID and its counts.
func (e *Engine) Overview(
	ctx context.Context,
	userID uuid.UUID,
	filter selection.Filter,
) ([]selection.AnnotatedCard, selection.Counts, error) {
	cards, states, resolved, err := e.load(ctx, "overview", userID, filter)
	if err != nil {
		return nil, selection.Counts{}, err
	}
	annotated := selection.Annotate(cards, states, resolved, e.now())
	return annotated, selection.Count(annotated), nil
}

func (e *Engine) completed(ctx context.Context, log *slog.Logger, s Session) {
	sum := s.Summary()
	log.Info("review session completed",
		slog.Int("cards_reviewed", sum.CardsReviewed),
		slog.Int("mastered_count", sum.MasteredCount),
		slog.Int("still_learning_count", sum.StillLearningCount),
		slog.Duration("duration", sum.Duration),
		slog.Bool("terminated", sum.Terminated))

	if e.emitter == nil {
		return
	}
	ev, err := events.NewEvent(events.TypeSessionCompleted, events.SessionCompletedPayload{
		SessionID:          sum.SessionID,
		UserID:             sum.UserID,
		CardsReviewed:      sum.CardsReviewed,
		MasteredCount:      sum.MasteredCount,
		StillLearningCount: sum.StillLearningCount,
		Duration:           sum.Duration,
		Terminated:         sum.Terminated,
	})
	if err != nil {
		log.Error("failed to build event", slog.String("error", err.Error()))
		return
	}
	if err := e.emitter.EmitEvent(ctx, ev); err != nil {
		log.Error("failed to emit event",
			slog.String("event_type", ev.Type),
			slog.String("error", err.Error()))
	}
}
