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

type task struct {
	seq int
	job Job
}

type outcome struct {
	seq    int
	result Result
}

// Pool runs submitted jobs on a fixed number of workers.
// Wait returns results in submission order regardless of completion order.
type Pool struct {
	workers       int
	jobQueue      chan task
	results       chan outcome
	wg            sync.WaitGroup
	ctx           context.Context
	cancelFunc    context.CancelFunc
	closeOnce     sync.Once
	submitted     int
	collected     []outcome
	collectorDone chan struct{}
}

// NewPool creates a pool bound to ctx; canceling ctx stops the workers
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:       workers,
		jobQueue:      make(chan task, workers*2),
		results:       make(chan outcome, workers*2),
		ctx:           ctx,
		cancelFunc:    cancel,
		collectorDone: make(chan struct{}),
	}
}

// Start starts the worker goroutines and the result collector
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	go p.collect()
}

// collect drains results as they arrive so workers never block on a full
// results channel while Submit is still queueing
func (p *Pool) collect() {
	defer close(p.collectorDone)
	for o := range p.results {
		p.collected = append(p.collected, o)
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case t, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := t.job.Execute(p.ctx)
			select {
			case p.results <- outcome{seq: t.seq, result: result}:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. It is a no-op once the pool is shut down.
// Submit must not be called concurrently with itself or after Wait.
func (p *Pool) Submit(job Job) {
	t := task{seq: p.submitted, job: job}
	select {
	case <-p.ctx.Done():
		return
	case p.jobQueue <- t:
		p.submitted++
	}
}

// Wait waits for all submitted jobs and returns their results in submission
// order. Jobs dropped by cancellation leave a nil entry. Start must have
// been called.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)

	p.wg.Wait()
	p.closeResults()
	<-p.collectorDone
	p.cancelFunc()

	results := make([]Result, p.submitted)
	for _, o := range p.collected {
		results[o.seq] = o.result
	}

	return results
}

// Shutdown cancels the pool and waits for workers and the collector to exit
func (p *Pool) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
	<-p.collectorDone
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
