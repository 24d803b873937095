package cache

import (
	"context"
	"errors"
	"fmt"

	"longimage/internal/fileutil"
)

// ErrAlreadyInFlight is returned by Reserve when another job holds the
// lease for the same content hash. The accompanying Waiter resolves
// when that job finishes.
var ErrAlreadyInFlight = errors.New("conversion already in flight")

// Lease grants its holder the exclusive right to render one content
// hash. It must end in exactly one Commit or Abort.
type Lease struct {
	hash     string
	released bool
}

// Hash returns the content hash the lease covers.
func (l *Lease) Hash() string {
	return l.hash
}

// Waiter lets duplicate submissions observe the leaseholder's outcome.
type Waiter struct {
	done  chan struct{}
	entry *Entry
	err   error
}

// Done is closed when the leaseholder commits or aborts.
func (w *Waiter) Done() <-chan struct{} {
	return w.done
}

// Result returns the committed entry or the leaseholder's error. Only
// valid after Done is closed.
func (w *Waiter) Result() (*Entry, error) {
	select {
	case <-w.done:
		return w.entry, w.err
	default:
		return nil, errors.New("conversion still in flight")
	}
}

// Reserve claims the render lease for a content hash. When another job
// already holds it, Reserve returns ErrAlreadyInFlight together with a
// Waiter for that job's result.
func (s *Store) Reserve(hash string) (*Lease, *Waiter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if waiter, ok := s.inflight[hash]; ok {
		return nil, waiter, ErrAlreadyInFlight
	}
	s.inflight[hash] = &Waiter{done: make(chan struct{})}
	return &Lease{hash: hash}, nil, nil
}

// Commit stores the produced output as a cache object, records the
// index entry, and wakes duplicate submissions with the result. The
// entry's hash and extension determine the object path; outputPath is
// the stitched file to ingest.
func (s *Store) Commit(ctx context.Context, lease *Lease, outputPath string, entry Entry) error {
	if lease == nil || lease.released {
		return errors.New("lease already released")
	}
	entry.ContentHash = lease.hash

	object := objectPath(s.dir, entry.ContentHash, entry.Extension)
	if err := fileutil.CopyFile(outputPath, object); err != nil {
		s.release(lease, nil, fmt.Errorf("ingest cache object: %w", err))
		return fmt.Errorf("ingest cache object: %w", err)
	}
	if entry.Bytes == 0 {
		if size, err := fileutil.FileSize(object); err == nil {
			entry.Bytes = size
		}
	}
	if err := s.insertEntry(ctx, entry); err != nil {
		s.release(lease, nil, err)
		return err
	}

	s.release(lease, &entry, nil)
	return nil
}

// Abort releases the lease without caching anything, propagating the
// job's error to duplicate submissions.
func (s *Store) Abort(lease *Lease, cause error) {
	if lease == nil || lease.released {
		return
	}
	if cause == nil {
		cause = errors.New("conversion aborted")
	}
	s.release(lease, nil, cause)
}

func (s *Store) release(lease *Lease, entry *Entry, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lease.released {
		return
	}
	lease.released = true
	waiter, ok := s.inflight[lease.hash]
	if !ok {
		return
	}
	delete(s.inflight, lease.hash)
	waiter.entry = entry
	waiter.err = err
	close(waiter.done)
}
