package job

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle of a conversion job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRendering Status = "rendering"
	StatusStitching Status = "stitching"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusRendering,
	StatusStitching,
	StatusDone,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusDone:      {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminalStatus reports whether a status ends the job lifecycle.
func IsTerminalStatus(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// PageResult records one rasterized page of a job, ordered by Index.
type PageResult struct {
	Index     int
	ImagePath string
	Width     int
	Height    int
}

// Job represents one source file moving through the conversion pipeline.
// After dispatch only the owning worker mutates a Job; everything else
// reads through Handle snapshots.
type Job struct {
	ID          string
	SourcePath  string
	Kind        Kind
	Options     Options
	Status      Status
	Pages       []PageResult
	ContentHash string
	OutputPath  string
	Err         error
	CreatedAt   time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}

// New creates a Queued job for the given source path. The caller is
// expected to have resolved the path to an absolute one and to compute
// the content hash before enqueueing.
func New(sourcePath string, options Options) Job {
	return Job{
		ID:         uuid.NewString(),
		SourcePath: sourcePath,
		Kind:       KindForPath(sourcePath),
		Options:    options.Normalized(),
		Status:     StatusQueued,
		CreatedAt:  time.Now(),
	}
}

// IsTerminal reports whether the job has finished, failed, or been cancelled.
func (j Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// Duration returns the wall-clock time between start and finish, or zero
// when the job has not run to a terminal state yet.
func (j Job) Duration() time.Duration {
	if j.StartedAt.IsZero() || j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// PageCount returns the number of recorded page results.
func (j Job) PageCount() int {
	return len(j.Pages)
}
