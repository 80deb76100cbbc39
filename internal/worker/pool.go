// Package worker runs bounded-concurrency jobs with per-key rate limiting.
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

// Pool runs jobs on a fixed number of workers
type Pool struct {
	workers int
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Workers returns the configured worker count.
func (p *Pool) Workers() int {
	return p.workers
}

type indexedJob struct {
	index int
	job   Job
}

// Run executes jobs and returns their results in job order. Once ctx is
// cancelled, jobs that have not started report the context error.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	queue := make(chan indexedJob)
	var wg sync.WaitGroup
	for i := 0; i < p.workers && i < len(jobs); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ij := range queue {
				if err := ctx.Err(); err != nil {
					results[ij.index] = canceled{err: err}
					continue
				}
				results[ij.index] = ij.job.Execute(ctx)
			}
		}()
	}

	for i, job := range jobs {
		queue <- indexedJob{index: i, job: job}
	}
	close(queue)
	wg.Wait()
	return results
}

// canceled is reported for jobs skipped after cancellation
type canceled struct {
	err error
}

func (c canceled) GetError() error { return c.err }

// Errors returns the non-nil errors of results.
func Errors(results []Result) []error {
	var errs []error
	for _, r := range results {
		if r == nil {
			continue
		}
		if err := r.GetError(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
