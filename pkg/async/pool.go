package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/platinummonkey/apidelta/pkg/observability"
)

// ErrPoolClosed is returned by Submit after Shutdown
var ErrPoolClosed = errors.New("worker pool shut down")

// Task is one unit of background work
type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed set of workers. Every task gets its own timeout.
// Errors and panics are logged and counted, never propagated.
type Pool struct {
	name    string
	timeout time.Duration
	logger  *observability.Logger

	tasks  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	completed atomic.Int64
	failed    atomic.Int64
}

// NewPool starts workers goroutines. queue bounds the tasks waiting for a worker.
func NewPool(ctx context.Context, name string, workers, queue int, timeout time.Duration, logger *observability.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		name:    name,
		timeout: timeout,
		logger:  logger.WithField("pool", name),
		tasks:   make(chan Task, queue),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.work()
		}()
	}
	go func() {
		wg.Wait()
		close(p.done)
	}()
	return p
}

// Submit queues fn. It blocks while the queue is full until ctx is done.
func (p *Pool) Submit(ctx context.Context, fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Shutdown stops accepting tasks and waits up to timeout for queued ones to finish.
// Tasks still running afterwards see their context canceled.
func (p *Pool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	defer p.cancel()
	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%s: shutdown timed out after %v", p.name, timeout)
	}
}

// Completed returns the number of tasks that returned nil
func (p *Pool) Completed() int64 {
	return p.completed.Load()
}

// Failed returns the number of tasks that failed or panicked
func (p *Pool) Failed() int64 {
	return p.failed.Load()
}

func (p *Pool) work() {
	for fn := range p.tasks {
		p.run(fn)
	}
}

func (p *Pool) run(fn Task) {
	ctx := p.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			p.logger.WithFields(map[string]interface{}{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("Task panicked")
		}
	}()

	if err := fn(ctx); err != nil {
		p.failed.Add(1)
		p.logger.WithError(err).Warn("Task failed")
		return
	}
	p.completed.Add(1)
}
