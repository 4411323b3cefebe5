package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	loggerMu sync.RWMutex
	logger   = logrus.StandardLogger()
)

// SetLogger replaces the logger used to report task failures and panics
func SetLogger(l *logrus.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

func taskLogger(taskName string) *logrus.Entry {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger.WithField("task", taskName)
}

// SafeGo executes a function in a goroutine with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement
// - Error logging
//
// Use this instead of bare `go func()` to prevent goroutine leaks and crashes.
//
// Example:
//
//	SafeGo(context.WithoutCancel(ctx), 10*time.Second, "notify enrollment", func(ctx context.Context) error {
//	    return notifier.NotifyTransition(ctx, e, from)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				taskLogger(taskName).WithField("stack", string(debug.Stack())).Errorf("panic in background task: %v", r)
			}
		}()

		if err := fn(ctx); err != nil {
			taskLogger(taskName).WithError(err).Warn("background task failed")
		}
	}()
}

// WorkerPool manages a pool of workers that process tasks from a channel.
// Provides graceful shutdown and error collection.
type WorkerPool struct {
	taskName     string
	timeout      time.Duration
	workCh       chan func(context.Context) error
	doneCh       chan struct{}
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once

	mu   sync.Mutex
	errs []error
}

// NewWorkerPool creates a new worker pool.
//
// Example:
//
//	pool := NewWorkerPool(ctx, 4, "expire enrollments", 30*time.Second)
//	defer pool.Shutdown(5 * time.Second)
//
//	pool.Submit(func(ctx context.Context) error {
//	    return ledger.Fail(ctx, id, "expired")
//	})
func NewWorkerPool(ctx context.Context, workers int, taskName string, timeout time.Duration) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		taskName: taskName,
		timeout:  timeout,
		workCh:   make(chan func(context.Context) error, workers*2),
		doneCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.worker()
		}()
	}
	go func() {
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// Submit adds a task to the worker pool.
// Returns error if pool is shut down.
func (p *WorkerPool) Submit(fn func(context.Context) error) (err error) {
	defer func() {
		// Send on a channel closed by a concurrent Shutdown
		if recover() != nil {
			err = fmt.Errorf("worker pool %s shut down", p.taskName)
		}
	}()

	select {
	case <-p.doneCh:
		return fmt.Errorf("worker pool %s shut down", p.taskName)
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.workCh <- fn:
		return nil
	}
}

// Shutdown stops accepting work and waits up to timeout for queued tasks
// to finish
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var shutdownErr error

	p.shutdownOnce.Do(func() {
		close(p.workCh)

		select {
		case <-p.doneCh:
			p.cancel()
		case <-time.After(timeout):
			p.cancel()
			shutdownErr = fmt.Errorf("worker pool %s shutdown timed out after %v", p.taskName, timeout)
		}
	})

	return shutdownErr
}

// Errors returns the errors collected from finished tasks
func (p *WorkerPool) Errors() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]error(nil), p.errs...)
}

func (p *WorkerPool) record(err error) {
	p.mu.Lock()
	p.errs = append(p.errs, err)
	p.mu.Unlock()
}

func (p *WorkerPool) worker() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case fn, ok := <-p.workCh:
			if !ok {
				return
			}
			p.run(fn)
		}
	}
}

func (p *WorkerPool) run(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			taskLogger(p.taskName).WithField("stack", string(debug.Stack())).Errorf("panic in worker: %v", r)
			p.record(fmt.Errorf("panic: %v", r))
		}
	}()

	if err := fn(ctx); err != nil {
		p.record(err)
	}
}

// Batch processes a slice of items concurrently using a worker pool and
// returns all errors encountered.
//
// Example:
//
//	errs := Batch(ctx, ids, 4, "expire enrollments", 10*time.Second, func(ctx context.Context, id string) error {
//	    _, err := ledger.Fail(ctx, id, "expired")
//	    return err
//	})
func Batch[T any](ctx context.Context, items []T, workers int, taskName string, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	pool := NewWorkerPool(ctx, workers, taskName, timeout)

	for _, item := range items {
		item := item
		if err := pool.Submit(func(ctx context.Context) error {
			return fn(ctx, item)
		}); err != nil {
			pool.Shutdown(timeout)
			return append(pool.Errors(), err)
		}
	}

	close(pool.workCh)
	pool.shutdownOnce.Do(func() {})
	<-pool.doneCh
	pool.cancel()

	return pool.Errors()
}
