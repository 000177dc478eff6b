package service

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool_RunsQueuedTasks(t *testing.T) {
	pool := NewWorkerPool(3, 10, discardLogger())

	var count atomic.Int64
	for i := 0; i < 10; i++ {
		pool.Submit(func() { count.Add(1) })
	}
	pool.Close()

	assert.Equal(t, int64(10), count.Load())
}

func TestWorkerPool_CallerRunsWhenSaturated(t *testing.T) {
	pool := NewWorkerPool(1, 1, discardLogger())

	release := make(chan struct{})
	started := make(chan struct{})
	assert.True(t, pool.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	// The single worker is busy; the next task fills the queue
	assert.True(t, pool.Submit(func() {}))

	ran := false
	queued := pool.Submit(func() { ran = true })
	assert.False(t, queued)
	assert.True(t, ran, "task runs on the caller")
	assert.Equal(t, int64(1), pool.CallerRuns())

	close(release)
	pool.Close()
}

func TestWorkerPool_ClosedPoolRunsOnCaller(t *testing.T) {
	pool := NewWorkerPool(2, 2, discardLogger())
	pool.Close()
	pool.Close()

	ran := false
	assert.False(t, pool.Submit(func() { ran = true }))
	assert.True(t, ran)
}

func TestWorkerPool_RecoversPanics(t *testing.T) {
	pool := NewWorkerPool(1, 4, discardLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	pool.Submit(func() { panic("boom") })
	pool.Submit(func() { wg.Done() })
	wg.Wait()
	pool.Close()
}
