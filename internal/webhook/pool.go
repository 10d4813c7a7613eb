package webhook

import (
	"context"
	"sync"

	"rollouthq/pkg/logger"

	"go.uber.org/zap"
)

// Job is a unit of dispatch work.
type Job func(ctx context.Context)

// Pool runs jobs on a fixed number of workers fed by a bounded queue.
// Submit never blocks: when the queue is full the job is rejected.
type Pool struct {
	size int
	jobs chan Job

	mu     sync.RWMutex
	closed bool
}

func NewPool(size, queueSize int) *Pool {
	if size <= 0 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		size: size,
		jobs: make(chan Job, queueSize),
	}
}

// Submit enqueues job and reports whether it was accepted.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Run starts the workers and blocks until ctx is done. Queued jobs are drained
// before it returns; they run with a context that is no longer cancelled.
func (p *Pool) Run(ctx context.Context) error {
	jobCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range p.jobs {
				p.runJob(jobCtx, job)
			}
		}()
	}
	logger.Info("dispatch pool started", zap.Int("workers", p.size), zap.Int("queue", cap(p.jobs)))

	<-ctx.Done()

	p.mu.Lock()
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	wg.Wait()
	logger.Info("dispatch pool drained")
	return nil
}

func (p *Pool) runJob(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("dispatch job panicked", zap.Any("panic", r))
		}
	}()
	job(ctx)
}
