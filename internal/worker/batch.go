package worker

import "context"

// Outcome pairs an input item with the value or error produced for it
type Outcome[T, R any] struct {
	Item  T
	Value R
	Err   error
}

// GetError returns the error of the outcome
func (o *Outcome[T, R]) GetError() error {
	return o.Err
}

type funcJob[T, R any] struct {
	item T
	fn   func(context.Context, T) (R, error)
}

func (j *funcJob[T, R]) Execute(ctx context.Context) Result {
	v, err := j.fn(ctx, j.item)
	return &Outcome[T, R]{Item: j.item, Value: v, Err: err}
}

// Map applies fn to every item on the pool and returns outcomes in item order.
func Map[T, R any](ctx context.Context, pool *Pool, items []T, fn func(context.Context, T) (R, error)) []*Outcome[T, R] {
	jobs := make([]Job, len(items))
	for i, item := range items {
		jobs[i] = &funcJob[T, R]{item: item, fn: fn}
	}

	results := pool.Run(ctx, jobs)
	outcomes := make([]*Outcome[T, R], len(results))
	for i, r := range results {
		if o, ok := r.(*Outcome[T, R]); ok {
			outcomes[i] = o
			continue
		}
		outcomes[i] = &Outcome[T, R]{Item: items[i], Err: r.GetError()}
	}
	return outcomes
}
