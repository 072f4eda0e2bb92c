package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/events"
	"github.com/phrazzld/scry-vocab/internal/platform/memory"
	"github.com/phrazzld/scry-vocab/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type dispatcherFixture struct {
	queue      *TaskQueue
	pool       *WorkerPool
	recorder   *events.Recorder
	dispatcher *StateWriteDispatcher
}

func newDispatcherFixture(
	t *testing.T,
	s store.LearningStateStore,
	queueSize int,
	retryCfg RetryConfig,
) *dispatcherFixture {
	t.Helper()
	return newDispatcherFixtureWithWorkers(t, s, queueSize, retryCfg, 1)
}

func newDispatcherFixtureWithWorkers(
	t *testing.T,
	s store.LearningStateStore,
	queueSize int,
	retryCfg RetryConfig,
	workers int,
) *dispatcherFixture {
	t.Helper()
	logger := setupTestLogger()

	queue := NewTaskQueue(queueSize, logger)
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: workers}, logger)
	recorder := &events.Recorder{}
	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(recorder)

	t.Cleanup(func() {
		queue.Close()
		pool.Stop()
	})
	return &dispatcherFixture{
		queue:      queue,
		pool:       pool,
		recorder:   recorder,
		dispatcher: NewStateWriteDispatcher(queue, s, emitter, retryCfg, logger),
	}
}

// drain processes everything queued and stops the workers.
func (f *dispatcherFixture) drain() {
	f.queue.Close()
	f.pool.Wait()
}

func TestStateWriteDispatcher_WritesInBackground(t *testing.T) {
	s := memory.NewLearningStateStore()
	f := newDispatcherFixture(t, s, 16, fastRetry(2))
	f.pool.Start()

	states := []domain.LearningState{validState(), validState(), validState()}
	for _, st := range states {
		f.dispatcher.Write(context.Background(), st)
	}
	f.drain()

	assert.Equal(t, 3, s.Len())
	for _, st := range states {
		got, err := s.Get(context.Background(), st.UserID, st.CardID)
		require.NoError(t, err)
		assert.Equal(t, st.IntervalDays, got.IntervalDays)
	}
	assert.Zero(t, f.dispatcher.DeferredCount())
	assert.Empty(t, f.recorder.Events())
}

func TestStateWriteDispatcher_FailedWriteIsDeferredUntilSync(t *testing.T) {
	s := &mockStateStore{}
	// first attempt plus two retries fail, the synced attempt succeeds
	s.On("Upsert", mock.Anything, mock.Anything).Return(errStoreDown).Times(3)
	s.On("Upsert", mock.Anything, mock.Anything).Return(nil).Once()

	f := newDispatcherFixture(t, s, 16, fastRetry(2))
	f.pool.Start()

	state := validState()
	f.dispatcher.Write(context.Background(), state)

	require.Eventually(t, func() bool {
		return len(f.recorder.Events(events.TypeStateWriteFailed)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []domain.LearningState{state}, f.dispatcher.Deferred())

	failed := f.recorder.Events(events.TypeStateWriteFailed)
	require.Len(t, failed, 1)
	var payload events.StateWriteFailedPayload
	require.NoError(t, failed[0].UnmarshalPayload(&payload))
	assert.Equal(t, state.CardID, payload.CardID)
	assert.Equal(t, 1, payload.Deferred)
	assert.Contains(t, payload.Error, "connection refused")

	queued, err := f.dispatcher.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	f.drain()
	assert.Zero(t, f.dispatcher.DeferredCount())
	s.AssertNumberOfCalls(t, "Upsert", 4)
}

func TestStateWriteDispatcher_FullQueueDefers(t *testing.T) {
	s := memory.NewLearningStateStore()
	f := newDispatcherFixture(t, s, 1, fastRetry(1))

	first, second := validState(), validState()
	f.dispatcher.Write(context.Background(), first)
	f.dispatcher.Write(context.Background(), second)

	assert.Equal(t, 1, f.dispatcher.DeferredCount())
	assert.Len(t, f.recorder.Events(events.TypeStateWriteFailed), 1)

	// Queue still holds the first write
	_, err := f.dispatcher.Sync(context.Background())
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, f.dispatcher.DeferredCount())

	f.pool.Start()
	require.Eventually(t, func() bool { return s.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	queued, err := f.dispatcher.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	f.drain()
	assert.Equal(t, 2, s.Len())
	assert.Zero(t, f.dispatcher.DeferredCount())
}

func TestStateWriteDispatcher_KeepsNewestDeferredWrite(t *testing.T) {
	s := memory.NewLearningStateStore()
	f := newDispatcherFixture(t, s, 4, fastRetry(1))
	f.queue.Close()

	older := validState()
	newer := older
	newer.RepetitionCount = 2
	newer.IntervalDays = 6

	f.dispatcher.Write(context.Background(), older)
	f.dispatcher.Write(context.Background(), newer)

	assert.Equal(t, []domain.LearningState{newer}, f.dispatcher.Deferred())
	assert.Len(t, f.recorder.Events(events.TypeStateWriteFailed), 2)

	_, err := f.dispatcher.Sync(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestStateWriteDispatcher_SkipsSupersededWrites(t *testing.T) {
	s := memory.NewLearningStateStore()
	f := newDispatcherFixture(t, s, 4, fastRetry(1))

	older := validState()
	newer := older
	newer.RepetitionCount = 2
	newer.IntervalDays = 6

	f.dispatcher.Write(context.Background(), older)
	f.dispatcher.Write(context.Background(), newer)

	f.pool.Start()
	f.drain()

	got, err := s.Get(context.Background(), newer.UserID, newer.CardID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.IntervalDays)
}

func TestStateWriteDispatcher_DropsInvalidState(t *testing.T) {
	s := memory.NewLearningStateStore()
	f := newDispatcherFixture(t, s, 4, fastRetry(1))

	bad := validState()
	bad.IntervalDays = -1
	f.dispatcher.Write(context.Background(), bad)

	assert.Zero(t, f.dispatcher.DeferredCount())
	assert.Len(t, f.recorder.Events(events.TypeStateWriteFailed), 1)
	assert.Zero(t, f.queue.Len())
}

// flakyStateStore fails the first Upsert of a state with the given interval.
type flakyStateStore struct {
	*memory.LearningStateStore
	failInterval int

	mu     sync.Mutex
	failed bool
	hit    chan struct{}
}

func (s *flakyStateStore) Upsert(ctx context.Context, state *domain.LearningState) error {
	s.mu.Lock()
	if state.IntervalDays == s.failInterval && !s.failed {
		s.failed = true
		s.mu.Unlock()
		close(s.hit)
		return errStoreDown
	}
	s.mu.Unlock()
	return s.LearningStateStore.Upsert(ctx, state)
}

func TestStateWriteDispatcher_RetryDoesNotOverwriteNewerWrite(t *testing.T) {
	s := &flakyStateStore{
		LearningStateStore: memory.NewLearningStateStore(),
		failInterval:       1,
		hit:                make(chan struct{}),
	}
	f := newDispatcherFixtureWithWorkers(t, s, 4,
		RetryConfig{MaxRetries: 1, Base: 200 * time.Millisecond, Cap: 200 * time.Millisecond}, 2)
	f.pool.Start()

	older := validState()
	newer := older
	newer.RepetitionCount = 2
	newer.IntervalDays = 6

	f.dispatcher.Write(context.Background(), older)
	select {
	case <-s.hit:
	case <-time.After(2 * time.Second):
		t.Fatal("older write was never attempted")
	}

	// The newer write lands while the older one is backing off
	f.dispatcher.Write(context.Background(), newer)
	require.Eventually(t, func() bool {
		got, err := s.Get(context.Background(), newer.UserID, newer.CardID)
		return err == nil && got.IntervalDays == 6
	}, 150*time.Millisecond, 2*time.Millisecond)

	f.drain()

	got, err := s.Get(context.Background(), newer.UserID, newer.CardID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.IntervalDays)
	assert.Equal(t, 2, got.RepetitionCount)
	assert.Empty(t, f.dispatcher.Pending(newer.UserID))
	assert.Zero(t, f.dispatcher.DeferredCount())
}

func TestStateWriteDispatcher_Pending(t *testing.T) {
	s := memory.NewLearningStateStore()
	f := newDispatcherFixture(t, s, 8, fastRetry(1))

	userID := uuid.New()
	first := validState()
	first.UserID = userID
	second := validState()
	second.UserID = userID
	other := validState()

	f.dispatcher.Write(context.Background(), first)
	f.dispatcher.Write(context.Background(), second)
	f.dispatcher.Write(context.Background(), other)

	updated := first
	updated.RepetitionCount = 2
	updated.IntervalDays = 6
	f.dispatcher.Write(context.Background(), updated)

	pending := f.dispatcher.Pending(userID)
	require.Len(t, pending, 2)
	assert.Equal(t, updated, pending[first.CardID])
	assert.Equal(t, second, pending[second.CardID])
	assert.Len(t, f.dispatcher.Pending(other.UserID), 1)
	assert.Empty(t, f.dispatcher.Pending(uuid.New()))

	// Confirmed writes are forgotten
	f.pool.Start()
	f.drain()
	assert.Empty(t, f.dispatcher.Pending(userID))
	assert.Empty(t, f.dispatcher.Pending(other.UserID))

	got, err := s.Get(context.Background(), userID, first.CardID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.IntervalDays)
}

func TestStateWriteDispatcher_ParkedWritesStayPending(t *testing.T) {
	s := memory.NewLearningStateStore()
	f := newDispatcherFixture(t, s, 4, fastRetry(1))
	f.queue.Close()

	state := validState()
	f.dispatcher.Write(context.Background(), state)

	assert.Equal(t, 1, f.dispatcher.DeferredCount())
	assert.Equal(t, state, f.dispatcher.Pending(state.UserID)[state.CardID])
}
