// Package scheduler runs submitted jobs on a bounded worker pool whose
// effective size adapts to CPU count and available memory.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"longimage/internal/logging"
	"longimage/internal/services"
)

// Task is one unit of work; it runs a job end to end on one worker.
type Task func(ctx context.Context)

// MemoryProbe reports available memory in bytes; ok is false when the
// platform cannot tell.
type MemoryProbe func() (int64, bool)

// Policy controls what Submit does when the queue is full.
const (
	PolicyBlock  = "block"
	PolicyReject = "reject"
)

// capacityPollInterval is how often a dispatch blocked on the capacity
// gate re-probes memory.
const capacityPollInterval = 100 * time.Millisecond

// Config sizes the pool.
type Config struct {
	// Workers caps concurrency; 0 means the CPU count.
	Workers int
	// QueueDepth bounds the FIFO submit queue.
	QueueDepth int
	// Policy is PolicyBlock or PolicyReject.
	Policy string
	// SubmitWait bounds how long a blocking Submit waits for queue room.
	SubmitWait time.Duration
	// JobMemoryEstimate is the per-job memory footprint used by the
	// capacity gate, in bytes.
	JobMemoryEstimate int64
}

// Option configures the pool.
type Option func(*Pool)

// WithMemoryProbe replaces the system memory probe (primarily for tests).
func WithMemoryProbe(probe MemoryProbe) Option {
	return func(p *Pool) {
		if probe != nil {
			p.probe = probe
		}
	}
}

// Pool dispatches queued tasks to workers in FIFO order. The number of
// simultaneously running workers never exceeds the CPU cap and shrinks
// further when available memory cannot cover another job's estimated
// footprint; the gate is re-evaluated at every dispatch.
type Pool struct {
	maxWorkers  int
	memEstimate int64
	policy      string
	submitWait  time.Duration
	probe       MemoryProbe
	logger      *slog.Logger

	queue chan Task
	freed chan struct{}
	done  chan struct{}

	mu      sync.Mutex
	running int
	closed  bool

	senders  sync.WaitGroup
	wg       sync.WaitGroup
	dispatch sync.WaitGroup
}

// New constructs a pool; call Start before submitting.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 64
	}
	policy := cfg.Policy
	if policy != PolicyReject {
		policy = PolicyBlock
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	pool := &Pool{
		maxWorkers:  workers,
		memEstimate: cfg.JobMemoryEstimate,
		policy:      policy,
		submitWait:  cfg.SubmitWait,
		probe:       systemAvailableMemory,
		logger:      logger,
		queue:       make(chan Task, depth),
		freed:       make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(pool)
	}
	return pool
}

// Start launches the dispatcher.
func (p *Pool) Start(ctx context.Context) {
	p.dispatch.Add(1)
	go p.dispatchLoop(ctx)
}

// Submit enqueues a task in FIFO order. With the reject policy a full
// queue fails immediately with the busy marker; with the block policy
// the call waits up to SubmitWait for room before failing the same way.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	// The sender registration keeps Stop from closing the queue while
	// a Submit is still blocked on it.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New("pool stopped")
	}
	p.senders.Add(1)
	p.mu.Unlock()
	defer p.senders.Done()

	if p.policy == PolicyReject {
		select {
		case p.queue <- task:
			return nil
		default:
			return services.Wrap(services.ErrBusy, "scheduler", "submit", "queue full", nil)
		}
	}

	var timeout <-chan time.Time
	if p.submitWait > 0 {
		timer := time.NewTimer(p.submitWait)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case p.queue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return services.Wrap(services.ErrBusy, "scheduler", "submit", "pool stopping", nil)
	case <-timeout:
		return services.Wrap(services.ErrBusy, "scheduler", "submit", "queue full after bounded wait", nil)
	}
}

// Stop rejects blocked submitters, closes the queue, runs everything
// already accepted, and waits for workers to drain.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	p.senders.Wait()
	close(p.queue)
	p.dispatch.Wait()
	p.wg.Wait()
}

// Running returns the number of workers currently executing tasks.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// MaxWorkers returns the configured CPU cap.
func (p *Pool) MaxWorkers() int {
	return p.maxWorkers
}

func (p *Pool) dispatchLoop(ctx context.Context) {
	defer p.dispatch.Done()
	// Tasks still run after ctx is done; they observe the dead context
	// immediately and take their cancellation path, which releases
	// leases and workspaces.
	for task := range p.queue {
		p.waitForCapacity(ctx)

		p.mu.Lock()
		p.running++
		p.mu.Unlock()

		p.wg.Add(1)
		go func(task Task) {
			defer p.wg.Done()
			defer p.releaseSlot()
			task(ctx)
		}(task)
	}
}

// waitForCapacity blocks until another worker may start: the running
// count is under the CPU cap and the memory allowance covers one more
// job. Memory is re-probed on every pass.
func (p *Pool) waitForCapacity(ctx context.Context) {
	for {
		p.mu.Lock()
		running := p.running
		p.mu.Unlock()

		if running < p.maxWorkers && p.memoryAllows(running+1) {
			return
		}
		select {
		case <-p.freed:
		case <-time.After(capacityPollInterval):
		case <-ctx.Done():
			return
		}
	}
}

// memoryAllows reports whether available memory covers want concurrent
// jobs at the configured per-job estimate. An absent probe or estimate
// leaves the CPU cap in charge, and one job may always run.
func (p *Pool) memoryAllows(want int) bool {
	if p.memEstimate <= 0 || want <= 1 {
		return true
	}
	available, ok := p.probe()
	if !ok {
		return true
	}
	allowed := available/p.memEstimate >= int64(want)
	if !allowed {
		p.logger.Debug("memory gate holding back worker",
			logging.Int("want", want),
			logging.Int64("available_bytes", available),
			logging.Int64("estimate_bytes", p.memEstimate),
		)
	}
	return allowed
}

func (p *Pool) releaseSlot() {
	p.mu.Lock()
	p.running--
	p.mu.Unlock()
	select {
	case p.freed <- struct{}{}:
	default:
	}
}
