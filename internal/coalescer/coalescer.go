package coalescer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/cellgrid/internal/ctxlog"
	"github.com/specialistvlad/cellgrid/internal/metrics"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("coalescer is closed")

// Task is one unit of queued work.
type Task func(ctx context.Context) error

// Policy bounds batch sizes and how long one batch may block the queue.
type Policy struct {
	BatchSize    int           `validate:"gte=1"`
	MaxBatchSize int           `validate:"gtefield=BatchSize"`
	MaxWait      time.Duration `validate:"gt=0"`
}

// DefaultPolicy returns the stock policy: batches of 6, 12 under backlog,
// 500ms per batch.
func DefaultPolicy() Policy {
	return Policy{BatchSize: 6, MaxBatchSize: 12, MaxWait: 500 * time.Millisecond}
}

func (p Policy) normalize() Policy {
	def := DefaultPolicy()
	if p.BatchSize < 1 {
		p.BatchSize = def.BatchSize
	}
	if p.MaxBatchSize <= 0 {
		p.MaxBatchSize = def.MaxBatchSize
	}
	if p.MaxBatchSize < p.BatchSize {
		p.MaxBatchSize = p.BatchSize
	}
	if p.MaxWait <= 0 {
		p.MaxWait = def.MaxWait
	}
	return p
}

// Option configures a Coalescer.
type Option func(*Coalescer)

// WithMetrics reports batches and task outcomes to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coalescer) {
		c.metrics = m
	}
}

// Coalescer is a bounded-batch, timeout-guarded task queue.
type Coalescer struct {
	ctx     context.Context
	cancel  context.CancelFunc
	policy  Policy
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	queue    []Task
	draining bool
	idle     chan struct{}
	closed   bool
}

// New creates a coalescer. Tasks run with a context derived from ctx, which
// also carries the logger.
func New(ctx context.Context, policy Policy, opts ...Option) *Coalescer {
	ctx, cancel := context.WithCancel(ctx)
	idle := make(chan struct{})
	close(idle)
	c := &Coalescer{
		ctx:    ctx,
		cancel: cancel,
		policy: policy.normalize(),
		logger: ctxlog.FromContext(ctx),
		idle:   idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the effective policy.
func (c *Coalescer) Policy() Policy {
	return c.policy
}

// Enqueue appends task to the queue and makes sure a drain loop is running.
func (c *Coalescer) Enqueue(task Task) error {
	if task == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.queue = append(c.queue, task)
	if !c.draining {
		c.draining = true
		c.idle = make(chan struct{})
		go c.drain(c.idle)
	}
	return nil
}

// Len returns the number of tasks waiting to start.
func (c *Coalescer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Wait blocks until the queue is drained or ctx is done.
func (c *Coalescer) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drops every queued task and stops the drain loop after its current
// batch. Running tasks see their context cancelled.
func (c *Coalescer) Close() {
	c.mu.Lock()
	c.closed = true
	dropped := len(c.queue)
	c.queue = nil
	c.mu.Unlock()

	c.cancel()
	if dropped > 0 {
		c.logger.Debug("Coalescer closed with queued tasks.", "dropped", dropped)
	}
}

func (c *Coalescer) drain(idle chan struct{}) {
	defer close(idle)
	for {
		c.mu.Lock()
		var batch []Task
		batch, c.queue = take(c.queue, c.policy)
		if len(batch) == 0 || c.ctx.Err() != nil {
			c.queue = nil
			c.draining = false
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		c.runBatch(batch)
		runtime.Gosched()
	}
}

// take splits the next batch off the queue.
func take(queue []Task, p Policy) (batch, rest []Task) {
	n := p.BatchSize
	if len(queue) > p.MaxBatchSize {
		n = p.MaxBatchSize
	}
	if n > len(queue) {
		n = len(queue)
	}
	batch = make([]Task, n)
	copy(batch, queue[:n])
	rest = queue[n:]
	if len(rest) == 0 {
		rest = nil
	}
	return batch, rest
}

func (c *Coalescer) runBatch(batch []Task) {
	start := time.Now()
	var g errgroup.Group
	for _, task := range batch {
		g.Go(func() error {
			return c.run(task)
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	timer := time.NewTimer(c.policy.MaxWait)
	defer timer.Stop()

	timedOut := false
	select {
	case <-done:
	case <-timer.C:
		timedOut = true
		c.logger.Warn("Coalescer batch exceeded max wait; moving on.", "batch_size", len(batch), "max_wait", c.policy.MaxWait)
	case <-c.ctx.Done():
	}
	c.metrics.Batch(time.Since(start), timedOut)
}

func (c *Coalescer) run(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("coalesced task panicked: %v", r)
			c.logger.Error("Coalesced task panicked.", "panic", r)
			c.metrics.Task("panicked")
		}
	}()

	if err = task(c.ctx); err != nil {
		c.logger.Warn("Coalesced task failed.", "error", err)
		c.metrics.Task("failed")
		return err
	}
	c.metrics.Task("done")
	return nil
}
