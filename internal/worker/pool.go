// Package worker provides the two dispatch backends the engine schedules
// plugin invocations onto: an in-process goroutine pool with a bounded
// queue, and a launcher for isolated worker processes.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// ErrQueueFull is returned by Submit when the pool's backlog is at capacity.
var ErrQueueFull = errors.New("worker queue full")

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Job states. Transitions are one-way: queued moves to running or cancelled,
// never back.
const (
	jobQueued int32 = iota
	jobRunning
	jobCancelled
)

// Task is the unit of work a pool worker runs. The context is cancelled when
// the job is cancelled mid-flight or the pool shuts down.
type Task func(ctx context.Context)

// Job tracks one submitted task through its lifecycle.
type Job struct {
	task   Task
	state  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc
}

// Cancel stops the job. A job still in the queue is marked so workers skip
// it and Cancel reports true; a job that already started has its context
// cancelled and Cancel reports false.
func (j *Job) Cancel() (preStart bool) {
	if j.state.CompareAndSwap(jobQueued, jobCancelled) {
		j.cancel()
		return true
	}
	j.cancel()
	return false
}

// Pool runs tasks on a fixed set of goroutines with a bounded backlog.
// Modeled as a channel of jobs rather than per-task goroutines so a burst
// of submissions cannot exhaust the scheduler.
type Pool struct {
	queue chan *Job
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool starts size worker goroutines sharing a queue of depth queueDepth.
func NewPool(size, queueDepth int) *Pool {
	if size < 1 {
		size = 1
	}
	if queueDepth < 1 {
		queueDepth = 1
	}
	p := &Pool{queue: make(chan *Job, queueDepth)}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	log.Debug().Int("workers", size).Int("queue_depth", queueDepth).Msg("worker pool started")
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.queue {
		if !job.state.CompareAndSwap(jobQueued, jobRunning) {
			// Cancelled while queued.
			continue
		}
		job.task(job.ctx)
		job.cancel()
	}
}

// Submit enqueues task for execution. It never blocks: a full queue is
// reported as ErrQueueFull so the caller can fail the request instead of
// stalling.
func (p *Pool) Submit(ctx context.Context, task Task) (*Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{task: task, ctx: jobCtx, cancel: cancel}
	select {
	case p.queue <- job:
		return job, nil
	default:
		cancel()
		return nil, ErrQueueFull
	}
}

// Close stops accepting work and waits for in-flight tasks to finish.
// Queued jobs still run; callers wanting them dropped should cancel their
// jobs first.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	log.Debug().Msg("worker pool drained")
}
