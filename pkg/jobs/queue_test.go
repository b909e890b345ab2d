package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueRequiresStart(t *testing.T) {
	q := NewQueue("exports", func(context.Context, Job) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{ID: "job-1"}))
}

func TestQueueProcessesAndRetries(t *testing.T) {
	var calls int32
	done := make(chan Job, 1)
	handler := func(_ context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("transient")
		}
		done <- job
		return nil
	}
	q := NewQueue("exports", handler, QueueConfig{Workers: 2, RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1", Type: "teachers"}))

	select {
	case job := <-done:
		require.Equal(t, "job-1", job.ID)
		require.Equal(t, 1, job.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
}

func TestQueueRejectsDuplicatePendingJob(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue("exports", func(ctx context.Context, _ Job) error {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	<-started
	require.ErrorIs(t, q.Enqueue(Job{ID: "job-1"}), ErrDuplicate)
	require.NoError(t, q.Enqueue(Job{ID: "job-2"}))
	close(release)

	require.Eventually(t, func() bool {
		return q.Enqueue(Job{ID: "job-1"}) == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	q := NewQueue("exports", func(context.Context, Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("permanent")
	}, QueueConfig{MaxRetries: 2, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "job-1"}))
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 3
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return q.Enqueue(Job{ID: "job-1"}) == nil
	}, 2*time.Second, 5*time.Millisecond)
}
