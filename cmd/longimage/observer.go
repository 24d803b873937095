package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"
)

// consoleObserver prints one line per job event. Progress lines are
// throttled to meaningful steps so large documents do not flood the
// terminal.
type consoleObserver struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
	sources  map[string]string
	lastPct  map[string]int
}

func newConsoleObserver(out io.Writer) *consoleObserver {
	return &consoleObserver{
		out:      out,
		colorize: shouldColorize(out),
		sources:  make(map[string]string),
		lastPct:  make(map[string]int),
	}
}

func (o *consoleObserver) OnJobQueued(jobID, sourcePath string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sources[jobID] = filepath.Base(sourcePath)
	fmt.Fprintln(o.out, renderStatusLine(o.label(jobID), statusInfo, "queued", o.colorize))
}

func (o *consoleObserver) OnJobProgress(jobID string, page, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if total <= 0 {
		return
	}
	pct := page * 100 / total
	if pct/10 <= o.lastPct[jobID]/10 && page != total {
		return
	}
	o.lastPct[jobID] = pct
	fmt.Fprintln(o.out, renderStatusLine(o.label(jobID), statusInfo,
		fmt.Sprintf("page %d/%d (%d%%)", page, total, pct), o.colorize))
}

func (o *consoleObserver) OnJobDone(jobID, outputPath string, elapsed time.Duration, bytes int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.out, renderStatusLine(o.label(jobID), statusOK,
		fmt.Sprintf("%s (%s in %s)", outputPath, humanBytes(bytes), humanDuration(elapsed)), o.colorize))
}

func (o *consoleObserver) OnJobFailed(jobID, kind, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.out, renderStatusLine(o.label(jobID), statusError,
		fmt.Sprintf("%s: %s", kind, message), o.colorize))
}

func (o *consoleObserver) OnJobCancelled(jobID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.out, renderStatusLine(o.label(jobID), statusWarn, "cancelled", o.colorize))
}

func (o *consoleObserver) label(jobID string) string {
	if name, ok := o.sources[jobID]; ok && name != "" {
		return name
	}
	if len(jobID) > 8 {
		return jobID[:8]
	}
	return jobID
}
