// Package pipeline orchestrates conversions end to end: submission,
// deduplication, scheduling, rendering, stitching, and publication.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"longimage/internal/cache"
	"longimage/internal/config"
	"longimage/internal/job"
	"longimage/internal/logging"
	"longimage/internal/rasterize"
	"longimage/internal/report"
	"longimage/internal/scheduler"
	"longimage/internal/services"
	"longimage/internal/services/poppler"
	"longimage/internal/services/soffice"
)

// OfficeConverter is the subset of the soffice client the pipeline needs.
type OfficeConverter interface {
	ConvertToPDF(ctx context.Context, inputPath, outDir string) (string, error)
}

// Option overrides a pipeline collaborator, primarily for tests.
type Option func(*Pipeline)

// WithPDFRenderer injects a custom PDF renderer.
func WithPDFRenderer(renderer rasterize.PDFRenderer) Option {
	return func(p *Pipeline) {
		if renderer != nil {
			p.rasterizer = rasterize.New(renderer, p.logger)
		}
	}
}

// WithOfficeConverter injects a custom office converter.
func WithOfficeConverter(converter OfficeConverter) Option {
	return func(p *Pipeline) {
		if converter != nil {
			p.office = converter
		}
	}
}

// WithCache injects an open cache store (nil disables deduplication).
func WithCache(store *cache.Store) Option {
	return func(p *Pipeline) {
		p.store = store
	}
}

// Pipeline converts documents into long images.
type Pipeline struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *scheduler.Pool
	reporter   *report.Reporter
	rasterizer *rasterize.Rasterizer
	office     OfficeConverter
	store      *cache.Store

	mu     sync.Mutex
	active map[string]*job.Handle
}

// New wires a pipeline from configuration. The cache store is opened
// when caching is enabled; Close releases it.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	popplerClient, err := poppler.New(
		cfg.Tools.PdftoppmBinary,
		cfg.Tools.PdfinfoBinary,
		cfg.Tools.ProbeTimeout,
		cfg.Tools.RenderTimeout,
		cfg.Tools.RenderTimeoutPerPage,
		poppler.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("poppler client: %w", err)
	}
	officeClient, err := soffice.New(cfg.Tools.SofficeBinary, cfg.Tools.OfficeConvertTimeout, soffice.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("soffice client: %w", err)
	}

	p := &Pipeline{
		cfg:    cfg,
		logger: logger,
		pool: scheduler.New(scheduler.Config{
			Workers:           cfg.Scheduler.Workers,
			QueueDepth:        cfg.Scheduler.QueueDepth,
			Policy:            cfg.Scheduler.SubmitPolicy,
			SubmitWait:        time.Duration(cfg.Scheduler.SubmitWaitSeconds) * time.Second,
			JobMemoryEstimate: int64(cfg.Scheduler.JobMemoryEstimateMiB) * 1024 * 1024,
		}, logger),
		reporter:   report.New(cfg.Scheduler.QueueDepth*4, logger),
		rasterizer: rasterize.New(popplerClient, logger),
		office:     officeClient,
		active:     make(map[string]*job.Handle),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.store == nil && cfg.Cache.Enabled {
		store, err := cache.Open(cfg.Cache.Dir)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		p.store = store
	}
	return p, nil
}

// Start launches the worker pool.
func (p *Pipeline) Start(ctx context.Context) {
	p.pool.Start(ctx)
}

// Attach registers a progress observer.
func (p *Pipeline) Attach(observer report.Observer) {
	p.reporter.Attach(observer)
}

// Submit hashes the source, enqueues a job, and returns its handle. A
// full queue under the reject policy, or after the bounded wait under
// the block policy, fails with the busy marker and no job is created.
// Unsupported and unreadable sources produce a failed job rather than
// blocking the rest of a batch.
func (p *Pipeline) Submit(ctx context.Context, sourcePath string, options job.Options) (*job.Handle, error) {
	absPath, err := filepath.Abs(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}

	j := job.New(absPath, options)
	handle := job.NewHandle(j)

	if failErr := p.precheck(absPath, &j, handle); failErr != nil {
		// The job is already finished; surface it through the handle
		// and the reporter like any other failure.
		p.reporter.JobQueued(j.ID, absPath)
		p.reporter.JobFailed(j.ID, services.Kind(failErr), failErr.Error())
		return handle, nil
	}

	// The task waits for ready so the active registration and the
	// queued event always precede the worker's own events and its
	// deferred deregistration, even when the dispatcher picks the task
	// up immediately.
	ready := make(chan struct{})
	task := func(taskCtx context.Context) {
		<-ready
		p.run(taskCtx, handle)
	}
	if err := p.pool.Submit(ctx, task); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.active[j.ID] = handle
	p.mu.Unlock()

	p.reporter.JobQueued(j.ID, absPath)
	close(ready)
	p.logger.Info("job queued",
		logging.String(logging.FieldJobID, j.ID),
		logging.String("source", absPath),
		logging.String("kind", string(j.Kind)),
	)
	return handle, nil
}

// precheck validates the source before enqueueing and finishes the
// handle on failure. The content hash is computed here so duplicates
// are visible from the moment the job enters the queue.
func (p *Pipeline) precheck(absPath string, j *job.Job, handle *job.Handle) error {
	if info, err := os.Stat(absPath); err != nil || info.IsDir() {
		failure := services.Wrap(services.ErrUnsupportedFormat, "submit", "stat", "source file unreadable", err)
		handle.Finish(job.StatusFailed, failure)
		return failure
	}
	if j.Kind == job.KindUnsupported {
		failure := services.Wrap(services.ErrUnsupportedFormat, "submit", "classify",
			fmt.Sprintf("unsupported extension %q", filepath.Ext(absPath)), nil)
		handle.Finish(job.StatusFailed, failure)
		return failure
	}
	hash, err := job.ComputeContentHash(absPath, j.Options)
	if err != nil {
		failure := services.Wrap(services.ErrUnsupportedFormat, "submit", "hash", "source file unreadable", err)
		handle.Finish(job.StatusFailed, failure)
		return failure
	}
	j.ContentHash = hash
	handle.Update(func(updated *job.Job) {
		updated.ContentHash = hash
	})
	return nil
}

// Lookup returns the handle for an active job.
func (p *Pipeline) Lookup(jobID string) (*job.Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	handle, ok := p.active[jobID]
	return handle, ok
}

// CancelAll requests cooperative cancellation of every active job.
func (p *Pipeline) CancelAll() {
	p.mu.Lock()
	handles := make([]*job.Handle, 0, len(p.active))
	for _, handle := range p.active {
		handles = append(handles, handle)
	}
	p.mu.Unlock()
	for _, handle := range handles {
		handle.Cancel()
	}
}

// Close drains the pool, stops the reporter, and releases the cache.
func (p *Pipeline) Close() error {
	p.pool.Stop()
	p.reporter.Close()
	if p.store != nil {
		return p.store.Close()
	}
	return nil
}

func (p *Pipeline) removeActive(jobID string) {
	p.mu.Lock()
	delete(p.active, jobID)
	p.mu.Unlock()
}
