package task

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/store"
	"github.com/sethvargo/go-retry"
)

// Common errors
var (
	ErrNilStateStore = errors.New("learning state store cannot be nil")
	ErrInvalidState  = errors.New("learning state is invalid")
)

// RetryConfig bounds how hard a task tries before giving up.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries uint64
	// Base is the first backoff delay; each retry doubles it.
	Base time.Duration
	// Cap limits a single backoff delay. Zero means 5s.
	Cap time.Duration
}

// DefaultRetryConfig returns the retry policy used when none is configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, Base: 100 * time.Millisecond, Cap: 5 * time.Second}
}

func (c RetryConfig) backoff() retry.Backoff {
	base := c.Base
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	capDelay := c.Cap
	if capDelay <= 0 {
		capDelay = 5 * time.Second
	}
	b := retry.NewExponential(base)
	b = retry.WithCappedDuration(capDelay, b)
	return retry.WithMaxRetries(c.MaxRetries, b)
}

// StateWriteTask persists one learning state through the tracker.
// Transient store errors are retried with exponential backoff; invalid
// entities fail immediately since retrying cannot fix them.
type StateWriteTask struct {
	id     uuid.UUID
	state  domain.LearningState
	seq    uint64
	store  store.LearningStateStore
	retry  RetryConfig
	logger *slog.Logger

	// stale reports whether a newer write for the same card superseded this one
	stale func() bool
	// lock serializes attempts for the same card; it returns the unlock func
	lock func() func()
	// done is called exactly once with the final result
	done func(ctx context.Context, t *StateWriteTask, err error)

	mu     sync.Mutex
	status TaskStatus
}

// NewStateWriteTask creates a task that upserts state into s.
func NewStateWriteTask(
	state domain.LearningState,
	s store.LearningStateStore,
	cfg RetryConfig,
	logger *slog.Logger,
) (*StateWriteTask, error) {
	if s == nil {
		return nil, ErrNilStateStore
	}
	if err := state.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidState, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &StateWriteTask{
		id:    uuid.New(),
		state: state,
		store: s,
		retry: cfg,
		logger: logger.With(
			"task_type", TaskTypeStateWrite,
			"user_id", state.UserID,
			"card_id", state.CardID,
		),
		status: TaskStatusPending,
	}, nil
}

// ID returns the task's unique identifier
func (t *StateWriteTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *StateWriteTask) Type() string {
	return TaskTypeStateWrite
}

// Payload returns the learning state as JSON
func (t *StateWriteTask) Payload() []byte {
	b, err := json.Marshal(t.state)
	if err != nil {
		t.logger.Error("failed to marshal task payload", "error", err)
		return nil
	}
	return b
}

// Status returns the current task status
func (t *StateWriteTask) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// State returns the learning state this task writes.
func (t *StateWriteTask) State() domain.LearningState {
	return t.state
}

func (t *StateWriteTask) setStatus(s TaskStatus) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// Execute upserts the state, retrying transient failures. Every attempt first
// checks whether a newer write for the same card has been issued; if so the
// task stops without touching the store.
func (t *StateWriteTask) Execute(ctx context.Context) error {
	t.setStatus(TaskStatusProcessing)

	attempts := 0
	skipped := false
	err := retry.Do(ctx, t.retry.backoff(), func(ctx context.Context) error {
		if t.lock != nil {
			unlock := t.lock()
			defer unlock()
		}
		if t.stale != nil && t.stale() {
			skipped = true
			return nil
		}

		attempts++
		state := t.state
		err := t.store.Upsert(ctx, &state)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, store.ErrInvalidEntity):
			return err
		default:
			t.logger.Warn("learning state write failed, will retry",
				"attempt", attempts,
				"error", err)
			return retry.RetryableError(err)
		}
	})

	if err != nil {
		t.setStatus(TaskStatusFailed)
		t.logger.Error("learning state write failed",
			"attempts", attempts,
			"error", err)
		t.finish(ctx, err)
		return err
	}

	t.setStatus(TaskStatusCompleted)
	if skipped {
		t.logger.Debug("skipping superseded learning state write", "attempts", attempts)
	} else {
		t.logger.Debug("learning state written", "attempts", attempts)
	}
	t.finish(ctx, nil)
	return nil
}

func (t *StateWriteTask) finish(ctx context.Context, err error) {
	if t.done != nil {
		t.done(ctx, t, err)
	}
}
