// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package pool provides a bounded worker pool for fanning out concurrent
// jobs without spawning one goroutine per unit of work. The refresh
// daemon (§4.6) is the only caller: each tick discovers every OAuth-backed
// token target and submits one refresh job per target, and the pool caps
// how many of those refreshes run at once so a slow or hung upstream
// token endpoint can't starve the others.
package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrPoolClosed is returned by Submit/SubmitWait once Close has run.
	ErrPoolClosed = errors.New("pool is closed")
	// ErrPoolFull is returned when the job queue is saturated and no more
	// worker goroutines can be spawned to relieve it.
	ErrPoolFull = errors.New("pool is full")
)

// Job is a unit of work submitted to a Pool. The context it receives
// carries the submitter's deadline/cancellation, not the pool's own.
type Job func(ctx context.Context) error

// Pool runs Jobs across a bounded set of worker goroutines, growing the
// worker count lazily up to MaxWorkers and shrinking idle workers back
// down after IdleTimeout.
type Pool struct {
	maxWorkers  int
	jobs        chan jobEntry
	workerCount atomic.Int32
	activeCount atomic.Int32
	closed      atomic.Bool
	wg          sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64

	idleTimeout  time.Duration
	panicHandler func(any)
}

type jobEntry struct {
	job    Job
	ctx    context.Context
	result chan error
}

// Config configures a Pool.
type Config struct {
	// MaxWorkers bounds how many jobs run concurrently.
	MaxWorkers int
	// QueueSize bounds how many submitted jobs may wait for a free worker
	// before Submit starts rejecting with ErrPoolFull.
	QueueSize int
	// IdleTimeout is how long a worker waits without a job before exiting,
	// down to a floor of one live worker.
	IdleTimeout time.Duration
	// PanicHandler, if set, receives the recovered value when a Job
	// panics; the worker survives and the submission fails instead.
	PanicHandler func(any)
}

func (c Config) withDefaults() Config {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 6
	}
	if c.QueueSize <= 0 {
		c.QueueSize = c.MaxWorkers * 4
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	return c
}

// New builds a Pool. No workers are spawned until the first job arrives.
func New(cfg Config) *Pool {
	cfg = cfg.withDefaults()
	return &Pool{
		maxWorkers:   cfg.MaxWorkers,
		jobs:         make(chan jobEntry, cfg.QueueSize),
		idleTimeout:  cfg.IdleTimeout,
		panicHandler: cfg.PanicHandler,
	}
}

// Submit enqueues job without waiting for it to finish. It returns
// ErrPoolFull if the queue is saturated and the worker ceiling is
// already reached, and ErrPoolClosed once Close has run.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)

	entry := jobEntry{job: job, ctx: ctx, result: make(chan error, 1)}

	select {
	case p.jobs <- entry:
		p.ensureWorker()
		return nil
	default:
		if p.trySpawnWorker() {
			select {
			case p.jobs <- entry:
				return nil
			default:
			}
		}
		p.rejected.Add(1)
		return ErrPoolFull
	}
}

// SubmitWait enqueues job and blocks until it completes or ctx is done.
func (p *Pool) SubmitWait(ctx context.Context, job Job) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)

	entry := jobEntry{job: job, ctx: ctx, result: make(chan error, 1)}

	select {
	case p.jobs <- entry:
		p.ensureWorker()
	case <-ctx.Done():
		p.rejected.Add(1)
		return ctx.Err()
	}

	select {
	case err := <-entry.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) ensureWorker() {
	if p.workerCount.Load() < int32(p.maxWorkers) {
		p.trySpawnWorker()
	}
}

func (p *Pool) trySpawnWorker() bool {
	for {
		current := p.workerCount.Load()
		if current >= int32(p.maxWorkers) {
			return false
		}
		if p.workerCount.CompareAndSwap(current, current+1) {
			p.wg.Add(1)
			go p.worker()
			return true
		}
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	defer p.workerCount.Add(-1)

	idle := time.NewTimer(p.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case entry, ok := <-p.jobs:
			if !ok {
				return
			}

			p.activeCount.Add(1)
			err := p.run(entry)
			p.activeCount.Add(-1)

			if entry.result != nil {
				entry.result <- err
				close(entry.result)
			}
			if err != nil {
				p.failed.Add(1)
			} else {
				p.completed.Add(1)
			}

			idle.Reset(p.idleTimeout)

		case <-idle.C:
			// Shrink back toward a single standing worker once a tick's
			// burst of refresh jobs has drained.
			if p.workerCount.Load() > 1 {
				return
			}
			idle.Reset(p.idleTimeout)
		}
	}
}

func (p *Pool) run(entry jobEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if p.panicHandler != nil {
				p.panicHandler(r)
			}
			err = errors.New("job panicked")
		}
	}()
	return entry.job(entry.ctx)
}

// Close stops accepting new jobs and blocks until every in-flight job and
// worker goroutine has exited.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	close(p.jobs)
	p.wg.Wait()
}

// Stats reports the pool's current load, useful for surfacing the
// refresh daemon's fan-out width in logs or metrics.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   int(p.workerCount.Load()),
		Active:    int(p.activeCount.Load()),
		Queued:    len(p.jobs),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// Stats is a point-in-time snapshot of a Pool's counters.
type Stats struct {
	Workers   int
	Active    int
	Queued    int
	Submitted int64
	Completed int64
	Failed    int64
	Rejected  int64
}
