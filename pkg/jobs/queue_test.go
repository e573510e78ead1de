package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *outcomeRecorder) record(_ string, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *outcomeRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outcomes...)
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	done := make(chan struct{})
	rec := &outcomeRecorder{}

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("smtp down")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 2, MaxRetries: 3, RetryDelay: time.Millisecond, OnOutcome: rec.record})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "1", Type: "mail"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	assert.Eventually(t, func() bool { return len(rec.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{OutcomeRetried, OutcomeRetried, OutcomeSucceeded}, rec.snapshot())
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	rec := &outcomeRecorder{}
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		return errors.New("permanent")
	}, QueueConfig{MaxRetries: 1, RetryDelay: time.Millisecond, OnOutcome: rec.record})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "1", Type: "mail"}))
	assert.Eventually(t, func() bool {
		out := rec.snapshot()
		return len(out) == 2 && out[1] == OutcomeFailed
	}, time.Second, 5*time.Millisecond)
}

func TestEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(context.Background(), Job{ID: "1"}))
}

func TestEnqueueHonoursCallerContextWhenFull(t *testing.T) {
	q := NewQueue("full", func(ctx context.Context, job Job) error {
		<-ctx.Done()
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "busy"}))
	assert.Eventually(t, func() bool { return len(q.jobs) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "buffered"}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := q.Enqueue(ctx, Job{ID: "overflow"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestStopDiscardsBufferedJobs(t *testing.T) {
	rec := &outcomeRecorder{}
	started := make(chan struct{})
	q := NewQueue("stop", func(ctx context.Context, job Job) error {
		close(started)
		<-ctx.Done()
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 4, OnOutcome: rec.record})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "1", Type: "mail"}))
	<-started
	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "2", Type: "mail"}))
	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "3", Type: "mail"}))

	q.Stop()
	assert.Equal(t, 2, countOutcome(rec.snapshot(), OutcomeDiscarded))
	assert.Error(t, q.Enqueue(context.Background(), Job{ID: "4"}))
}

func countOutcome(outcomes []string, want string) int {
	n := 0
	for _, o := range outcomes {
		if o == want {
			n++
		}
	}
	return n
}
