package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueDispatchesByType(t *testing.T) {
	q := NewQueue("test", QueueConfig{Workers: 2})
	var cleaned atomic.Int32
	q.Handle("cleanup", func(ctx context.Context, job Job) error {
		cleaned.Add(1)
		return nil
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "cleanup"}))
	require.Error(t, q.Enqueue(Job{ID: "2", Type: "unknown"}))
	require.Eventually(t, func() bool { return cleaned.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestQueueRetriesFailures(t *testing.T) {
	q := NewQueue("test", QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond})
	var attempts atomic.Int32
	q.Handle("flaky", func(ctx context.Context, job Job) error {
		if attempts.Add(1) < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "flaky"}))
	require.Eventually(t, func() bool { return attempts.Load() == 3 }, time.Second, 5*time.Millisecond)
}

func TestQueueEvery(t *testing.T) {
	q := NewQueue("test", QueueConfig{Workers: 1})
	var ticks atomic.Int32
	q.Handle("tick", func(ctx context.Context, job Job) error {
		ticks.Add(1)
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	q.Every(ctx, 5*time.Millisecond, "tick")
	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", QueueConfig{})
	q.Handle("x", func(context.Context, Job) error { return nil })
	require.Error(t, q.Enqueue(Job{Type: "x"}))
}
