package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// Pool runs jobs on a fixed number of workers. Results are drained by a
// single collector goroutine, so job code never shares an accumulator.
type Pool struct {
	workers     int
	stopOnError bool
	jobQueue    chan Job
	results     chan Result
	collected   []Result
	wg          sync.WaitGroup
	collectDone chan struct{}
	ctx         context.Context
	cancelFunc  context.CancelFunc
	closeOnce   sync.Once
}

// Option configures a Pool
type Option func(*Pool)

// WithStopOnError cancels the pool context as soon as a job returns an
// error. Jobs still queued are skipped and in-flight jobs see a
// cancelled context.
func WithStopOnError() Option {
	return func(p *Pool) {
		p.stopOnError = true
	}
}

// NewPool creates a pool with the given number of workers whose jobs run
// under a child of parent.
func NewPool(parent context.Context, workers int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(parent)

	p := &Pool{
		workers:     workers,
		jobQueue:    make(chan Job, workers*2),
		results:     make(chan Result, workers*2),
		collectDone: make(chan struct{}),
		ctx:         ctx,
		cancelFunc:  cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start starts the workers and the result collector
func (p *Pool) Start() {
	go p.collect()
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := job.Execute(p.ctx)
			// The collector drains until close, so this send never blocks for long.
			p.results <- result
			if p.stopOnError && result.GetError() != nil {
				p.cancelFunc()
			}
		}
	}
}

func (p *Pool) collect() {
	defer close(p.collectDone)
	for result := range p.results {
		p.collected = append(p.collected, result)
	}
}

// Submit queues a job. It is a no-op once the pool has been cancelled.
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
		return
	case p.jobQueue <- job:
	}
}

// Wait closes the queue, waits for the workers and returns every result
// in completion order.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()
	<-p.collectDone
	p.cancelFunc()
	return p.collected
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
