package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/events"
	"github.com/phrazzld/scry-vocab/internal/redact"
	"github.com/phrazzld/scry-vocab/internal/store"
)

type stateKey struct {
	userID uuid.UUID
	cardID uuid.UUID
}

// lockStripes bounds the number of per-card write locks.
const lockStripes = 64

func (k stateKey) stripe() int {
	return int(k.userID[15]^k.cardID[15]) % lockStripes
}

// pendingWrite is the newest unconfirmed write for one card.
type pendingWrite struct {
	state  domain.LearningState
	seq    uint64
	parked bool
}

// StateWriteDispatcher turns learning state writes into StateWriteTasks.
// Callers never wait for the store and never see its errors. A write that
// fails after its retries, or that cannot be queued, is reported as a
// state.write_failed event and parked until Sync.
//
// Only the newest write per (user, card) is kept. A task whose write has been
// superseded stops before its next attempt, and attempts for the same card
// never overlap, so an older state cannot land after a newer one. Entries are
// dropped as soon as the newest write for a card is stored.
type StateWriteDispatcher struct {
	queue   TaskQueueWriter
	store   store.LearningStateStore
	emitter events.EventEmitter
	retry   RetryConfig
	logger  *slog.Logger

	locks [lockStripes]sync.Mutex

	mu      sync.Mutex
	seq     uint64
	pending map[stateKey]*pendingWrite
}

// NewStateWriteDispatcher creates a dispatcher that enqueues writes on queue.
// emitter may be nil, in which case failures are only logged.
func NewStateWriteDispatcher(
	queue TaskQueueWriter,
	s store.LearningStateStore,
	emitter events.EventEmitter,
	cfg RetryConfig,
	logger *slog.Logger,
) *StateWriteDispatcher {
	if queue == nil {
		panic("queue cannot be nil")
	}
	if s == nil {
		panic("store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &StateWriteDispatcher{
		queue:   queue,
		store:   s,
		emitter: emitter,
		retry:   cfg,
		logger:  logger.With("component", "state_write_dispatcher"),
		pending: make(map[stateKey]*pendingWrite),
	}
}

// Write schedules state for persistence and returns immediately.
func (d *StateWriteDispatcher) Write(ctx context.Context, state domain.LearningState) {
	if err := state.Validate(); err != nil {
		err = errors.Join(ErrInvalidState, err)
		d.logger.Error("dropping invalid learning state write",
			"user_id", state.UserID,
			"card_id", state.CardID,
			"error", err)
		d.emitFailure(ctx, state, err, d.DeferredCount())
		return
	}

	key := stateKey{state.UserID, state.CardID}

	d.mu.Lock()
	d.seq++
	w := pendingWrite{state: state, seq: d.seq}
	d.pending[key] = &pendingWrite{state: state, seq: w.seq}
	d.mu.Unlock()

	if err := d.submit(w); err != nil {
		d.park(ctx, w, err)
	}
}

// Pending returns the user's writes that have not been confirmed by the store,
// keyed by card ID. This includes queued, retrying and parked writes.
func (d *StateWriteDispatcher) Pending(userID uuid.UUID) map[uuid.UUID]domain.LearningState {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[uuid.UUID]domain.LearningState)
	for key, w := range d.pending {
		if key.userID == userID {
			out[key.cardID] = w.state
		}
	}
	return out
}

// Sync re-enqueues every deferred write and returns how many were queued.
// Writes that still cannot be queued stay deferred and are reported in the error.
func (d *StateWriteDispatcher) Sync(ctx context.Context) (int, error) {
	parked := d.parked()

	queued := 0
	var errs []error
	for _, w := range parked {
		if err := ctx.Err(); err != nil {
			return queued, err
		}
		if err := d.submit(w); err != nil {
			errs = append(errs, err)
			continue
		}
		d.unpark(w)
		queued++
	}

	d.logger.Info("re-enqueued deferred learning state writes",
		"queued", queued,
		"failed", len(errs))
	return queued, errors.Join(errs...)
}

// Deferred returns the parked writes, oldest first.
func (d *StateWriteDispatcher) Deferred() []domain.LearningState {
	parked := d.parked()
	out := make([]domain.LearningState, len(parked))
	for i, w := range parked {
		out[i] = w.state
	}
	return out
}

// DeferredCount returns the number of parked writes.
func (d *StateWriteDispatcher) DeferredCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, w := range d.pending {
		if w.parked {
			n++
		}
	}
	return n
}

func (d *StateWriteDispatcher) parked() []pendingWrite {
	d.mu.Lock()
	out := make([]pendingWrite, 0, len(d.pending))
	for _, w := range d.pending {
		if w.parked {
			out = append(out, *w)
		}
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (d *StateWriteDispatcher) submit(w pendingWrite) error {
	t, err := NewStateWriteTask(w.state, d.store, d.retry, d.logger)
	if err != nil {
		return err
	}
	key := stateKey{w.state.UserID, w.state.CardID}
	t.seq = w.seq
	t.stale = func() bool { return d.isStale(key, w.seq) }
	t.lock = func() func() {
		m := &d.locks[key.stripe()]
		m.Lock()
		return m.Unlock
	}
	t.done = d.onDone

	if err := d.queue.Enqueue(t); err != nil {
		return fmt.Errorf("failed to enqueue learning state write: %w", err)
	}
	return nil
}

func (d *StateWriteDispatcher) onDone(ctx context.Context, t *StateWriteTask, err error) {
	w := pendingWrite{state: t.state, seq: t.seq}
	if err == nil {
		d.release(w)
		return
	}

	if errors.Is(err, store.ErrInvalidEntity) {
		// The store rejected the state itself; replaying it would fail again.
		d.release(w)
		d.emitFailure(ctx, t.state, err, d.DeferredCount())
		return
	}
	d.park(ctx, w, err)
}

// release forgets the card once its newest write is done.
func (d *StateWriteDispatcher) release(w pendingWrite) {
	key := stateKey{w.state.UserID, w.state.CardID}
	d.mu.Lock()
	if cur, ok := d.pending[key]; ok && cur.seq == w.seq {
		delete(d.pending, key)
	}
	d.mu.Unlock()
}

func (d *StateWriteDispatcher) unpark(w pendingWrite) {
	key := stateKey{w.state.UserID, w.state.CardID}
	d.mu.Lock()
	if cur, ok := d.pending[key]; ok && cur.seq == w.seq {
		cur.parked = false
	}
	d.mu.Unlock()
}

// park keeps w for the next Sync unless a newer write for the card exists.
func (d *StateWriteDispatcher) park(ctx context.Context, w pendingWrite, cause error) {
	key := stateKey{w.state.UserID, w.state.CardID}

	d.mu.Lock()
	if cur, ok := d.pending[key]; ok && cur.seq == w.seq {
		cur.parked = true
	}
	d.mu.Unlock()
	count := d.DeferredCount()

	d.logger.Warn("deferred learning state write",
		"user_id", w.state.UserID,
		"card_id", w.state.CardID,
		"deferred", count,
		"error", cause)
	d.emitFailure(ctx, w.state, cause, count)
}

// isStale reports whether seq is no longer the newest write for key. A card
// with no entry has had its newest write stored already.
func (d *StateWriteDispatcher) isStale(key stateKey, seq uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, ok := d.pending[key]
	return !ok || cur.seq > seq
}

func (d *StateWriteDispatcher) emitFailure(
	ctx context.Context,
	state domain.LearningState,
	cause error,
	deferred int,
) {
	if d.emitter == nil {
		return
	}
	ev, err := events.NewEvent(events.TypeStateWriteFailed, events.StateWriteFailedPayload{
		UserID:   state.UserID,
		CardID:   state.CardID,
		Error:    redact.Error(cause),
		Deferred: deferred,
	})
	if err != nil {
		d.logger.Error("failed to build event", "error", err)
		return
	}
	if err := d.emitter.EmitEvent(context.WithoutCancel(ctx), ev); err != nil {
		d.logger.Error("failed to emit event", "event_type", ev.Type, "error", err)
	}
}
