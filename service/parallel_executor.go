package service

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// WorkerPool runs tasks on a fixed set of workers fed by a bounded queue.
// When the queue is full, or the pool is closed, Submit runs the task on the
// calling goroutine instead of rejecting it.
type WorkerPool struct {
	queue  chan func()
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	logger *slog.Logger

	callerRuns atomic.Int64
}

// NewWorkerPool starts workers goroutines with a queue of the given capacity
func NewWorkerPool(workers, capacity int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if capacity < 0 {
		capacity = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &WorkerPool{
		queue:  make(chan func(), capacity),
		logger: logger,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

func (p *WorkerPool) work() {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(task)
	}
}

func (p *WorkerPool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", slog.Any("panic", r))
		}
	}()
	task()
}

// Submit queues task and reports true, or runs it on the caller and
// reports false when no queue slot is free.
func (p *WorkerPool) Submit(task func()) bool {
	p.mu.RLock()
	if !p.closed {
		select {
		case p.queue <- task:
			p.mu.RUnlock()
			return true
		default:
		}
	}
	p.mu.RUnlock()

	p.callerRuns.Add(1)
	p.run(task)
	return false
}

// CallerRuns returns how many tasks ran on the submitting goroutine
func (p *WorkerPool) CallerRuns() int64 {
	return p.callerRuns.Load()
}

// Close stops accepting queued work, drains the queue and waits for the
// workers. Safe to call more than once.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}
