// Package worker provides a bounded pool for background tasks.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Pool runs submitted functions on a fixed set of workers. Submission is
// non-blocking: when the queue is full the task is dropped and the caller
// told so.
type Pool struct {
	tasks  chan func()
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger

	mu      sync.Mutex
	stopped bool
}

// NewPool starts workers goroutines draining a queue of queueCap tasks.
func NewPool(workers, queueCap int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueCap <= 0 {
		queueCap = workers
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:  make(chan func(), queueCap),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work(i)
	}
	return p
}

func (p *Pool) work(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case fn := <-p.tasks:
			p.run(id, fn)
		}
	}
}

func (p *Pool) run(id int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker task panicked",
				zap.Int("worker", id),
				zap.Any("panic", r))
		}
	}()
	fn()
}

// Submit enqueues fn if there is room. Returns false when the queue is full
// or the pool has stopped; the task is simply not run.
func (p *Pool) Submit(fn func()) bool {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()

	select {
	case p.tasks <- fn:
		return true
	default:
		return false
	}
}

// Stop prevents further submissions and waits for running tasks to finish.
// Queued but unstarted tasks are abandoned.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

// Queued reports how many tasks are waiting.
func (p *Pool) Queued() int {
	return len(p.tasks)
}
