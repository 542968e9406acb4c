package processing

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	MinWorkers = 1
	MaxWorkers = 4

	// Each render may hold a Chromium tab, so leave CPU headroom for it.
	cpuDivisor = 2

	DefaultQueueSize = 64
)

// Job is one unit of background work.
type Job func(ctx context.Context)

// WorkerPool runs jobs on a fixed number of goroutines fed by a bounded queue.
type WorkerPool struct {
	workers int
	jobs    chan Job

	mu      sync.Mutex
	started bool
	closed  bool
	group   *errgroup.Group
}

func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &WorkerPool{
		workers: ResolveWorkers(workers),
		jobs:    make(chan Job, queueSize),
	}
}

// ResolveWorkers returns workers when positive, otherwise a count derived from
// GOMAXPROCS.
func ResolveWorkers(workers int) int {
	if workers > 0 {
		return workers
	}
	n := runtime.GOMAXPROCS(0) / cpuDivisor
	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}

func (p *WorkerPool) Workers() int { return p.workers }

// Start launches the workers. Jobs receive ctx; cancelling it does not drop
// queued jobs, Stop does.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	p.group = &errgroup.Group{}
	for i := 0; i < p.workers; i++ {
		worker := i
		p.group.Go(func() error {
			for job := range p.jobs {
				p.run(ctx, worker, job)
			}
			return nil
		})
	}
	slog.Info("generation workers started", "workers", p.workers, "queue", cap(p.jobs))
}

func (p *WorkerPool) run(ctx context.Context, worker int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("generation job panicked", "worker", worker, "panic", r)
		}
	}()
	job(ctx)
}

// Submit queues a job without blocking. It returns ErrQueueFull when the
// queue has no room or the pool is stopped.
func (p *WorkerPool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrQueueFull
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new jobs and waits for queued ones to finish.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	group := p.group
	p.mu.Unlock()

	if group != nil {
		_ = group.Wait()
	}
}
