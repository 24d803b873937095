package job

import (
	"context"
	"sync"
	"time"
)

// Handle is the caller-facing view of a submitted job. Callers poll
// status, request cooperative cancellation, and wait for the terminal
// state; the owning worker mutates the underlying job through Update
// and Finish.
type Handle struct {
	mu        sync.Mutex
	job       Job
	finished  bool
	done      chan struct{}
	cancelled chan struct{}
	cancel    sync.Once
}

// NewHandle wraps a freshly created job.
func NewHandle(j Job) *Handle {
	return &Handle{
		job:       j,
		done:      make(chan struct{}),
		cancelled: make(chan struct{}),
	}
}

// ID returns the job identifier.
func (h *Handle) ID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.job.ID
}

// Status returns the current job status.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.job.Status
}

// Snapshot returns a copy of the job, including a copy of the page slice.
func (h *Handle) Snapshot() Job {
	h.mu.Lock()
	defer h.mu.Unlock()
	return snapshotLocked(h.job)
}

// Cancel requests cooperative cancellation. The request is observed by
// the owning worker at page boundaries and while waiting on the dedup
// cache; it is safe to call multiple times and after completion.
func (h *Handle) Cancel() {
	h.cancel.Do(func() {
		close(h.cancelled)
	})
}

// CancelRequested reports whether Cancel has been called.
func (h *Handle) CancelRequested() bool {
	select {
	case <-h.cancelled:
		return true
	default:
		return false
	}
}

// Cancelled returns a channel closed when cancellation is requested.
func (h *Handle) Cancelled() <-chan struct{} {
	return h.cancelled
}

// Done returns a channel closed when the job reaches a terminal state.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the job reaches a terminal state or the context is
// done, returning the final job snapshot.
func (h *Handle) Wait(ctx context.Context) (Job, error) {
	select {
	case <-h.done:
		return h.Snapshot(), nil
	case <-ctx.Done():
		return h.Snapshot(), ctx.Err()
	}
}

// Update applies a mutation under the handle lock. Only the owning
// worker calls Update after dispatch.
func (h *Handle) Update(fn func(*Job)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(&h.job)
}

// Finish moves the job to a terminal status, records the error and end
// time, and releases waiters. Calls after the first are ignored so late
// cancellation cannot overwrite a real result.
func (h *Handle) Finish(status Status, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return
	}
	h.finished = true
	h.job.Status = status
	h.job.Err = err
	h.job.FinishedAt = time.Now()
	close(h.done)
}

func snapshotLocked(j Job) Job {
	cp := j
	if len(j.Pages) > 0 {
		cp.Pages = make([]PageResult, len(j.Pages))
		copy(cp.Pages, j.Pages)
	}
	return cp
}
