package device

import (
	"context"
	"runtime"
	"sync"
)

// TaskFunc is executed once per key: a device serial or a path to push.
type TaskFunc[T any] func(ctx context.Context, key string) (T, error)

// Result contains the outcome of a task for a key.
type Result[T any] struct {
	Key   string
	Value T
	Err   error
}

// Manager runs key-scoped tasks on a fixed number of workers.
type Manager[T any] struct {
	workerLimit int
	onResult    func(Result[T])
}

// Option configures a Manager.
type Option[T any] func(*Manager[T])

// WithWorkerLimit sets the maximum number of concurrent workers.
func WithWorkerLimit[T any](limit int) Option[T] {
	return func(m *Manager[T]) {
		m.workerLimit = limit
	}
}

// WithResultHook is called from the collecting goroutine as each task finishes.
func WithResultHook[T any](fn func(Result[T])) Option[T] {
	return func(m *Manager[T]) {
		m.onResult = fn
	}
}

// NewManager creates a Manager with optional configuration.
func NewManager[T any](opts ...Option[T]) *Manager[T] {
	m := &Manager[T]{
		workerLimit: runtime.NumCPU(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.workerLimit <= 0 {
		m.workerLimit = runtime.NumCPU()
	}

	return m
}

// WorkerLimit returns the configured concurrency cap.
func (m *Manager[T]) WorkerLimit() int {
	return m.workerLimit
}

// Run executes task for each key with at most WorkerLimit tasks in flight and
// returns one result per started task, in key order. A failing task does not
// stop the others. Keys not yet started when ctx is cancelled are skipped.
func (m *Manager[T]) Run(ctx context.Context, keys []string, task TaskFunc[T]) []Result[T] {
	if len(keys) == 0 {
		return []Result[T]{}
	}

	workerCount := m.workerLimit
	if workerCount > len(keys) {
		workerCount = len(keys)
	}

	type indexed struct {
		idx int
		res Result[T]
	}

	idxCh := make(chan int)
	resCh := make(chan indexed, len(keys))

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range idxCh {
				value, err := task(ctx, keys[idx])
				resCh <- indexed{idx: idx, res: Result[T]{Key: keys[idx], Value: value, Err: err}}
			}
		}()
	}

	go func() {
		defer func() {
			close(idxCh)
			wg.Wait()
			close(resCh)
		}()
		for idx := range keys {
			select {
			case <-ctx.Done():
				return
			case idxCh <- idx:
			}
		}
	}()

	slots := make([]*Result[T], len(keys))
	for r := range resCh {
		res := r.res
		slots[r.idx] = &res
		if m.onResult != nil {
			m.onResult(res)
		}
	}

	results := make([]Result[T], 0, len(keys))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results
}
