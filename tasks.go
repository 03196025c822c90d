package yachu

import (
	"context"
	"sync"
)

// taskQueue carries closures from other goroutines into the game loop.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
}

// post queues fn for the next tick. It reports false once the queue has
// been closed, in which case fn will never run.
func (q *taskQueue) post(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, fn)
	return true
}

func (q *taskQueue) drain() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	tasks := q.tasks
	q.tasks = nil
	return tasks
}

// close refuses further posts and returns what was still queued.
func (q *taskQueue) close() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	tasks := q.tasks
	q.tasks = nil
	return tasks
}

// runAsync calls work on its own goroutine and hands the result to done on
// the game loop.
func runAsync[T any](s *Server, work func(ctx context.Context) (T, error), done func(T, error)) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(s.baseCtx, STORAGE_TIMEOUT)
		v, err := work(ctx)
		cancel()

		if !s.tasks.post(func() { done(v, err) }) {
			s.logger.Debug("dropping async result after shutdown")
		}
	}()
}
