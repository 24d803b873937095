package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"longimage/internal/cache"
	"longimage/internal/fileutil"
	"longimage/internal/job"
	"longimage/internal/logging"
	"longimage/internal/naming"
	"longimage/internal/services"
	"longimage/internal/stitch"
	"longimage/internal/workspace"
)

// run executes one job end to end on a pool worker. Every exit path
// finishes the handle exactly once, emits the matching terminal event,
// and removes the job workspace.
func (p *Pipeline) run(ctx context.Context, handle *job.Handle) {
	defer p.removeActive(handle.ID())

	snapshot := handle.Snapshot()
	logger := p.logger.With(logging.String(logging.FieldJobID, snapshot.ID))

	handle.Update(func(j *job.Job) {
		j.StartedAt = time.Now()
	})
	snapshot.StartedAt = time.Now()

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-handle.Cancelled():
			cancel()
		case <-jobCtx.Done():
		}
	}()

	outputPath, err := p.execute(jobCtx, handle, snapshot, logger)
	switch {
	case err == nil:
		final := handle.Snapshot()
		handle.Finish(job.StatusDone, nil)
		bytes, _ := fileutil.FileSize(outputPath)
		elapsed := elapsedSince(final.StartedAt)
		p.reporter.JobDone(snapshot.ID, outputPath, elapsed, bytes)
		logger.Info("job done",
			logging.String("output", outputPath),
			logging.Duration("elapsed", elapsed),
			logging.Int64("bytes", bytes),
		)
	case isCancellation(err, handle):
		handle.Finish(job.StatusCancelled, fmt.Errorf("%w: job cancelled", services.ErrCancelled))
		p.reporter.JobCancelled(snapshot.ID)
		logger.Info("job cancelled")
	default:
		handle.Finish(job.StatusFailed, err)
		p.reporter.JobFailed(snapshot.ID, services.Kind(err), err.Error())
		logger.Warn("job failed",
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
		)
	}
}

// execute performs the conversion and returns the published output
// path.
func (p *Pipeline) execute(ctx context.Context, handle *job.Handle, snapshot job.Job, logger *slog.Logger) (string, error) {
	opts := snapshot.Options
	outputPath := naming.OutputPath(p.cfg.Paths.OutputDir, snapshot.SourcePath, opts.Extension())

	if handle.CancelRequested() {
		return "", fmt.Errorf("%w: cancelled before start", services.ErrCancelled)
	}

	var lease *cache.Lease
	if p.store != nil {
		for lease == nil {
			done, err := p.resolveFromCache(ctx, snapshot, outputPath)
			if err != nil {
				return "", err
			}
			if done {
				return outputPath, nil
			}

			reserved, waiter, reserveErr := p.store.Reserve(snapshot.ContentHash)
			if errors.Is(reserveErr, cache.ErrAlreadyInFlight) {
				twinErr := p.waitForTwin(ctx, handle, waiter, outputPath)
				if twinErr == nil {
					return outputPath, nil
				}
				// A cancelled lease holder says nothing about this
				// job; take over the render instead of inheriting
				// the cancellation.
				if errors.Is(twinErr, errTwinCancelled) {
					continue
				}
				return "", twinErr
			}
			if reserveErr != nil {
				return "", reserveErr
			}
			lease = reserved
		}
	}

	result, pages, err := p.render(ctx, handle, snapshot, outputPath)
	if err != nil {
		if lease != nil {
			p.store.Abort(lease, err)
		}
		return "", err
	}

	if lease != nil {
		entry := cache.Entry{
			Extension: opts.Extension(),
			Width:     result.Width,
			Height:    result.Height,
			Pages:     pages,
			Bytes:     result.Bytes,
		}
		if commitErr := p.store.Commit(ctx, lease, outputPath, entry); commitErr != nil {
			// The output itself is published; a cache ingest failure
			// only loses deduplication for future runs.
			logger.Debug("cache commit failed", logging.Error(commitErr))
		}
	}
	return outputPath, nil
}

// resolveFromCache finishes the job from a cache hit. The boolean
// reports whether the output was materialized.
func (p *Pipeline) resolveFromCache(ctx context.Context, snapshot job.Job, outputPath string) (bool, error) {
	entry, hit, err := p.store.Lookup(ctx, snapshot.ContentHash)
	if err != nil || !hit {
		return false, err
	}
	if err := p.store.CopyTo(entry, outputPath); err != nil {
		return false, fmt.Errorf("materialize cached output: %w", err)
	}
	return true, nil
}

// errTwinCancelled reports that the lease-holding job was cancelled
// before producing a result, so the waiter should reserve and render
// itself.
var errTwinCancelled = errors.New("duplicate render cancelled by its owner")

// waitForTwin blocks until the job holding the lease for the same
// content hash finishes, then reuses its result. The wait is bounded by
// the producing job's own timeouts; cancellation is still observed
// here.
func (p *Pipeline) waitForTwin(ctx context.Context, handle *job.Handle, waiter *cache.Waiter, outputPath string) error {
	select {
	case <-waiter.Done():
	case <-handle.Cancelled():
		return fmt.Errorf("%w: cancelled while waiting for duplicate render", services.ErrCancelled)
	case <-ctx.Done():
		return fmt.Errorf("%w: cancelled while waiting for duplicate render", services.ErrCancelled)
	}

	entry, err := waiter.Result()
	if err != nil {
		if errors.Is(err, services.ErrCancelled) || errors.Is(err, context.Canceled) {
			return errTwinCancelled
		}
		return fmt.Errorf("duplicate render failed: %w", err)
	}
	if copyErr := p.store.CopyTo(entry, outputPath); copyErr != nil {
		return fmt.Errorf("materialize deduplicated output: %w", copyErr)
	}
	return nil
}

// render rasterizes and stitches in a scoped workspace, publishing the
// stitched file to outputPath atomically. The workspace is removed on
// all paths.
func (p *Pipeline) render(ctx context.Context, handle *job.Handle, snapshot job.Job, outputPath string) (stitch.Result, int, error) {
	ws, err := workspace.Create(p.cfg.Paths.WorkDir, snapshot.ID)
	if err != nil {
		return stitch.Result{}, 0, err
	}
	defer func() {
		_ = ws.Remove()
	}()

	handle.Update(func(j *job.Job) {
		j.Status = job.StatusRendering
	})

	sampler := logging.NewProgressSampler(10)
	progress := func(page, total int) {
		p.reporter.JobProgress(snapshot.ID, page, total)
		if total > 0 && sampler.ShouldLog(float64(page)/float64(total)*100, "rendering") {
			p.logger.Debug("rendering pages",
				logging.String(logging.FieldJobID, snapshot.ID),
				logging.Int("page", page),
				logging.Int("total", total),
			)
		}
	}

	pages, err := p.renderPages(ctx, snapshot, ws, progress)
	if err != nil {
		return stitch.Result{}, 0, err
	}
	handle.Update(func(j *job.Job) {
		j.Status = job.StatusStitching
		j.Pages = pages
	})

	staged := ws.StagingPath("stitched." + snapshot.Options.Extension())
	result, err := stitch.Stitch(ctx, pages, snapshot.Options, staged, p.cfg.Conversion.MaxCanvasPixels)
	if err != nil {
		return stitch.Result{}, 0, err
	}

	if err := fileutil.PublishFile(staged, outputPath); err != nil {
		return stitch.Result{}, 0, fmt.Errorf("publish output: %w", err)
	}
	handle.Update(func(j *job.Job) {
		j.OutputPath = outputPath
	})
	return result, len(pages), nil
}

// renderPages picks the source-kind specific path to page images.
func (p *Pipeline) renderPages(ctx context.Context, snapshot job.Job, ws *workspace.Workspace, progress func(int, int)) ([]job.PageResult, error) {
	switch snapshot.Kind {
	case job.KindPDF:
		return p.rasterizer.RenderPDF(ctx, snapshot.SourcePath, ws, snapshot.Options, progress)
	case job.KindImage:
		return p.rasterizer.RenderImage(ctx, snapshot.SourcePath, ws, snapshot.Options, progress)
	case job.KindOffice:
		intermediate, err := p.office.ConvertToPDF(ctx, snapshot.SourcePath, ws.Root())
		if err != nil {
			return nil, err
		}
		return p.rasterizer.RenderPDF(ctx, intermediate, ws, snapshot.Options, progress)
	default:
		return nil, services.Wrap(services.ErrUnsupportedFormat, "render", "classify", "unsupported source kind", nil)
	}
}

// isCancellation distinguishes a cooperative cancel from a failure.
func isCancellation(err error, handle *job.Handle) bool {
	if errors.Is(err, services.ErrCancelled) || errors.Is(err, context.Canceled) {
		return true
	}
	return handle.CancelRequested() && errors.Is(err, context.DeadlineExceeded)
}

func elapsedSince(start time.Time) time.Duration {
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}
