package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobscoutdev/jobscout/pkg/models"
)

type fakeEnqueuer struct {
	mu      sync.Mutex
	created int
	err     error
	signal  chan struct{}
}

var _ Enqueuer = (*fakeEnqueuer)(nil)

func (f *fakeEnqueuer) CreateRun(context.Context) (*models.Run, error) {
	f.mu.Lock()
	f.created++
	f.mu.Unlock()
	if f.signal != nil {
		select {
		case f.signal <- struct{}{}:
		default:
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.Run{ID: uuid.New(), Status: models.RunStatusQueued}, nil
}

func (f *fakeEnqueuer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func TestScheduler_EmptySpecDisabled(t *testing.T) {
	s := New(&fakeEnqueuer{}, "")

	require.NoError(t, s.Start(context.Background()))
	assert.Empty(t, s.cron.Entries())
	s.Stop()
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := New(&fakeEnqueuer{}, "not a cron spec")

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register schedule")
}

func TestScheduler_StartRegistersEntry(t *testing.T) {
	s := New(&fakeEnqueuer{}, "@every 1h")

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Len(t, s.cron.Entries(), 1)
}

func TestScheduler_EnqueueCreatesRun(t *testing.T) {
	st := &fakeEnqueuer{}
	s := New(st, "@every 1h")

	s.enqueue(context.Background())
	assert.Equal(t, 1, st.count())
}

func TestScheduler_EnqueueErrorDoesNotPanic(t *testing.T) {
	st := &fakeEnqueuer{err: errors.New("db down")}
	s := New(st, "@every 1h")

	s.enqueue(context.Background())
	assert.Equal(t, 1, st.count())
}

func TestScheduler_TickEnqueues(t *testing.T) {
	st := &fakeEnqueuer{signal: make(chan struct{}, 1)}
	s := New(st, "@every 50ms")

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case <-st.signal:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never ticked")
	}
	assert.GreaterOrEqual(t, st.count(), 1)
}
