// Package report fans job lifecycle events out to observers through a
// bounded queue so pipeline workers never block on a slow consumer.
package report

import (
	"log/slog"
	"sync"
	"time"

	"longimage/internal/logging"
)

// Observer receives job lifecycle callbacks. Callbacks for one job
// arrive in order; exactly one terminal callback (done, failed, or
// cancelled) is delivered per job, replayed to observers that attach
// after the job finished.
type Observer interface {
	OnJobQueued(jobID, sourcePath string)
	OnJobProgress(jobID string, page, total int)
	OnJobDone(jobID, outputPath string, elapsed time.Duration, bytes int64)
	OnJobFailed(jobID, kind, message string)
	OnJobCancelled(jobID string)
}

const defaultQueueSize = 256

type eventKind int

const (
	eventQueued eventKind = iota
	eventProgress
	eventDone
	eventFailed
	eventCancelled
)

type event struct {
	kind       eventKind
	jobID      string
	sourcePath string
	outputPath string
	errKind    string
	message    string
	page       int
	total      int
	elapsed    time.Duration
	bytes      int64
}

func (e event) terminal() bool {
	switch e.kind {
	case eventDone, eventFailed, eventCancelled:
		return true
	default:
		return false
	}
}

// Reporter dispatches events from a single goroutine.
type Reporter struct {
	events chan event
	logger *slog.Logger

	mu        sync.Mutex
	observers []Observer
	finished  map[string]struct{}
	terminals []event

	dropped int64

	done chan struct{}
}

// New starts a reporter with the given queue depth; depth <= 0 uses the
// default.
func New(depth int, logger *slog.Logger) *Reporter {
	if depth <= 0 {
		depth = defaultQueueSize
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Reporter{
		events:   make(chan event, depth),
		logger:   logger,
		finished: make(map[string]struct{}),
		done:     make(chan struct{}),
	}
	go r.dispatch()
	return r
}

// Attach registers an observer. Terminal events of already finished
// jobs are replayed to it immediately, in finish order.
func (r *Reporter) Attach(observer Observer) {
	if observer == nil {
		return
	}
	r.mu.Lock()
	replay := make([]event, len(r.terminals))
	copy(replay, r.terminals)
	r.observers = append(r.observers, observer)
	r.mu.Unlock()

	for _, evt := range replay {
		deliver(observer, evt)
	}
}

// JobQueued reports a job entering the queue.
func (r *Reporter) JobQueued(jobID, sourcePath string) {
	r.publish(event{kind: eventQueued, jobID: jobID, sourcePath: sourcePath})
}

// JobProgress reports a rendered page.
func (r *Reporter) JobProgress(jobID string, page, total int) {
	r.publish(event{kind: eventProgress, jobID: jobID, page: page, total: total})
}

// JobDone reports successful completion.
func (r *Reporter) JobDone(jobID, outputPath string, elapsed time.Duration, bytes int64) {
	r.publish(event{kind: eventDone, jobID: jobID, outputPath: outputPath, elapsed: elapsed, bytes: bytes})
}

// JobFailed reports a terminal failure with its classification.
func (r *Reporter) JobFailed(jobID, kind, message string) {
	r.publish(event{kind: eventFailed, jobID: jobID, errKind: kind, message: message})
}

// JobCancelled reports a cancelled job.
func (r *Reporter) JobCancelled(jobID string) {
	r.publish(event{kind: eventCancelled, jobID: jobID})
}

// Close drains the queue and stops the dispatcher. No publish calls may
// follow Close.
func (r *Reporter) Close() {
	close(r.events)
	<-r.done
}

// publish enqueues an event. Terminal events always enter the queue and
// block until there is room; non-terminal events are dropped when the
// queue is full so workers keep moving.
func (r *Reporter) publish(evt event) {
	if evt.terminal() {
		r.mu.Lock()
		if _, dup := r.finished[evt.jobID]; dup {
			r.mu.Unlock()
			return
		}
		r.finished[evt.jobID] = struct{}{}
		r.mu.Unlock()
		r.events <- evt
		return
	}

	select {
	case r.events <- evt:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
	}
}

// Dropped returns the number of non-terminal events discarded because
// the queue was full.
func (r *Reporter) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Reporter) dispatch() {
	defer close(r.done)
	for evt := range r.events {
		r.mu.Lock()
		if evt.terminal() {
			r.terminals = append(r.terminals, evt)
		}
		observers := make([]Observer, len(r.observers))
		copy(observers, r.observers)
		r.mu.Unlock()

		for _, observer := range observers {
			deliver(observer, evt)
		}
		if evt.terminal() {
			r.logger.Debug("job reached terminal state",
				logging.String(logging.FieldJobID, evt.jobID),
				logging.String("result", terminalName(evt.kind)),
			)
		}
	}
}

func deliver(observer Observer, evt event) {
	switch evt.kind {
	case eventQueued:
		observer.OnJobQueued(evt.jobID, evt.sourcePath)
	case eventProgress:
		observer.OnJobProgress(evt.jobID, evt.page, evt.total)
	case eventDone:
		observer.OnJobDone(evt.jobID, evt.outputPath, evt.elapsed, evt.bytes)
	case eventFailed:
		observer.OnJobFailed(evt.jobID, evt.errKind, evt.message)
	case eventCancelled:
		observer.OnJobCancelled(evt.jobID)
	}
}

func terminalName(kind eventKind) string {
	switch kind {
	case eventDone:
		return "done"
	case eventFailed:
		return "failed"
	case eventCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
