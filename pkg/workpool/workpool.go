// Package workpool implements bounded-concurrency job processing: a
// fixed number of named workers draining a queue of jobs, with a Wrap
// form that blocks until everything queued has finished and re-raises
// the first error.
//
// The shape is N persistent worker goroutines consuming from a channel,
// torn down with a WaitGroup once the channel is closed. Each submitted
// job carries its own name and closure, so a slow or failing worker is
// identifiable in logs by which job it was running.
package workpool

import (
	"fmt"
	"sync"

	"gopkg.in/inconshreveable/log15.v2"

	"github.com/vvelazquez/bosh/pkg/directorlog"
)

// Job is one unit of work submitted to a Pool.
type Job struct {
	// Name identifies the job for diagnostics, e.g. "job/2/5".
	Name string
	Run  func() error
}

// Pool is a fixed-size set of named workers draining a job queue.
type Pool struct {
	log log15.Logger

	jobs chan Job
	wg   sync.WaitGroup

	mu       sync.Mutex
	firstErr error
}

// New starts size workers waiting for jobs. size must be >= 1.
func New(size int) *Pool {
	if size < 1 {
		panic("workpool: size must be at least 1")
	}

	p := &Pool{
		log:  directorlog.New("module", "workpool"),
		jobs: make(chan Job),
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.work(fmt.Sprintf("worker-%d", i))
	}

	return p
}

func (p *Pool) work(workerName string) {
	defer p.wg.Done()

	log := p.log.New("worker", workerName)
	for job := range p.jobs {
		jobName := job.Name
		if jobName == "" {
			jobName = workerName
		}
		log.Debug("processing", "job", jobName)

		if err := job.Run(); err != nil {
			log.Error("job failed", "job", jobName, "err", err)
			p.recordError(err)
		}
	}
}

func (p *Pool) recordError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.firstErr == nil {
		p.firstErr = err
	}
}

// Process enqueues job, blocking until a worker slot is free. Calling
// Process after Stop has been called panics on a closed channel: Process
// and Stop are not meant to race, and the queue is only closed once the
// caller is done submitting.
func (p *Pool) Process(job Job) {
	p.jobs <- job
}

// Stop closes the queue and blocks until all submitted jobs have finished,
// success or failure, returning the first error any job raised. Further
// errors are already logged by the worker that hit them.
func (p *Pool) Stop() error {
	close(p.jobs)
	p.wg.Wait()
	return p.firstErr
}

// Wrap runs fn against a fresh size-worker Pool, guarantees the pool is
// fully drained before returning, and surfaces the first error: fn's own
// return value takes precedence (it usually means submission itself
// failed), otherwise the first error any submitted job raised.
func Wrap(size int, fn func(p *Pool) error) error {
	p := New(size)

	submitErr := fn(p)
	drainErr := p.Stop()

	if submitErr != nil {
		return submitErr
	}
	return drainErr
}
