package matching

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueueRunsSubmittedWork(t *testing.T) {
	q := NewTaskQueue(2, 16, time.Second)

	var ran int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		id, ok := q.Submit("count", func(ctx context.Context) error {
			defer wg.Done()
			atomic.AddInt64(&ran, 1)
			return nil
		})
		require.True(t, ok)
		assert.NotEmpty(t, id)
	}

	wg.Wait()
	q.Close()
	assert.Equal(t, int64(10), atomic.LoadInt64(&ran))
}

func TestTaskQueueDropsWhenFull(t *testing.T) {
	q := NewTaskQueue(1, 1, time.Second)
	defer q.Close()

	release := make(chan struct{})
	started := make(chan struct{})

	// Occupy the single worker.
	_, ok := q.Submit("blocker", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	require.True(t, ok)
	<-started

	// Fill the buffer.
	_, ok = q.Submit("buffered", func(ctx context.Context) error { return nil })
	require.True(t, ok)

	// Queue is now full; the next submit must drop without blocking.
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Submit("dropped", func(ctx context.Context) error { return nil })
		done <- ok
	}()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	close(release)
}

func TestTaskQueueTaskTimeout(t *testing.T) {
	q := NewTaskQueue(1, 4, 20*time.Millisecond)
	defer q.Close()

	expired := make(chan struct{})
	_, ok := q.Submit("slow", func(ctx context.Context) error {
		<-ctx.Done()
		close(expired)
		return ctx.Err()
	})
	require.True(t, ok)

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("task context never expired")
	}
}

func TestTaskQueueCloseWaitsForInflight(t *testing.T) {
	q := NewTaskQueue(2, 16, time.Second)

	var finished int64
	for i := 0; i < 5; i++ {
		_, ok := q.Submit("slow", func(ctx context.Context) error {
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&finished, 1)
			return nil
		})
		require.True(t, ok)
	}

	q.Close()
	assert.Equal(t, int64(5), atomic.LoadInt64(&finished))

	// Close is idempotent.
	q.Close()
}

func TestTaskQueueFailuresDontStopWorkers(t *testing.T) {
	q := NewTaskQueue(1, 16, time.Second)

	_, ok := q.Submit("failing", func(ctx context.Context) error {
		return context.Canceled
	})
	require.True(t, ok)

	ran := make(chan struct{})
	_, ok = q.Submit("after_failure", func(ctx context.Context) error {
		close(ran)
		return nil
	})
	require.True(t, ok)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive a failed task")
	}

	q.Close()
}
