package job_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"longimage/internal/job"
)

func TestKindForPath(t *testing.T) {
	cases := []struct {
		path string
		want job.Kind
	}{
		{"report.pdf", job.KindPDF},
		{"/abs/dir/Report.PDF", job.KindPDF},
		{"slides.pptx", job.KindOffice},
		{"notes.txt", job.KindOffice},
		{"table.xlsx", job.KindOffice},
		{"scan.png", job.KindImage},
		{"photo.JPEG", job.KindImage},
		{"archive.zip", job.KindUnsupported},
		{"no-extension", job.KindUnsupported},
	}
	for _, tc := range cases {
		if got := job.KindForPath(tc.path); got != tc.want {
			t.Errorf("KindForPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestOptionsNormalized(t *testing.T) {
	cases := []struct {
		name string
		in   job.Options
		want job.Options
	}{
		{"zero values get defaults", job.Options{}, job.DefaultOptions()},
		{"dpi clamped low", job.Options{DPI: 10}, job.Options{DPI: 72, Format: job.FormatPNG, JPEGQuality: 85}},
		{"dpi clamped high", job.Options{DPI: 1200}, job.Options{DPI: 600, Format: job.FormatPNG, JPEGQuality: 85}},
		{"jpg alias", job.Options{Format: "jpg"}, job.Options{DPI: 200, Format: job.FormatJPEG, JPEGQuality: 85}},
		{"unknown format falls back", job.Options{Format: "webp"}, job.Options{DPI: 200, Format: job.FormatPNG, JPEGQuality: 85}},
		{"quality clamped", job.Options{JPEGQuality: 500}, job.Options{DPI: 200, Format: job.FormatPNG, JPEGQuality: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.Normalized(); got != tc.want {
				t.Fatalf("Normalized() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestCanonicalStableAcrossEquivalentOptions(t *testing.T) {
	a := job.Options{DPI: 200, Format: "jpg", JPEGQuality: 85}
	b := job.Options{Format: job.FormatJPEG}
	if a.Canonical() != b.Canonical() {
		t.Fatalf("equivalent options canonicalize differently: %q vs %q", a.Canonical(), b.Canonical())
	}
}

func TestCanonicalIgnoresQualityForPNG(t *testing.T) {
	a := job.Options{Format: job.FormatPNG, JPEGQuality: 60}
	b := job.Options{Format: job.FormatPNG, JPEGQuality: 95}
	if a.Canonical() != b.Canonical() {
		t.Fatalf("quality must not affect the PNG canonical form: %q vs %q", a.Canonical(), b.Canonical())
	}

	j1 := job.Options{Format: job.FormatJPEG, JPEGQuality: 60}
	j2 := job.Options{Format: job.FormatJPEG, JPEGQuality: 95}
	if j1.Canonical() == j2.Canonical() {
		t.Fatal("quality must distinguish JPEG canonical forms")
	}
}

func TestComputeContentHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(path, []byte("same bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	base, err := job.ComputeContentHash(path, job.DefaultOptions())
	if err != nil {
		t.Fatalf("ComputeContentHash failed: %v", err)
	}
	again, err := job.ComputeContentHash(path, job.Options{DPI: 200, Format: "png", JPEGQuality: 85})
	if err != nil {
		t.Fatalf("ComputeContentHash failed: %v", err)
	}
	if base != again {
		t.Fatal("equivalent options should hash identically")
	}

	other, err := job.ComputeContentHash(path, job.Options{DPI: 300})
	if err != nil {
		t.Fatalf("ComputeContentHash failed: %v", err)
	}
	if base == other {
		t.Fatal("different dpi should change the hash")
	}

	changed := filepath.Join(dir, "other.pdf")
	if err := os.WriteFile(changed, []byte("other bytes"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	otherBytes, err := job.ComputeContentHash(changed, job.DefaultOptions())
	if err != nil {
		t.Fatalf("ComputeContentHash failed: %v", err)
	}
	if base == otherBytes {
		t.Fatal("different bytes should change the hash")
	}
}

func TestHandleLifecycle(t *testing.T) {
	h := job.NewHandle(job.New("/tmp/input.pdf", job.Options{}))
	if h.Status() != job.StatusQueued {
		t.Fatalf("expected queued, got %s", h.Status())
	}
	if h.ID() == "" {
		t.Fatal("expected a job id")
	}

	h.Update(func(j *job.Job) {
		j.Status = job.StatusRendering
		j.StartedAt = time.Now()
		j.Pages = append(j.Pages, job.PageResult{Index: 0, Width: 100, Height: 200})
	})
	if h.Status() != job.StatusRendering {
		t.Fatalf("expected rendering, got %s", h.Status())
	}

	snap := h.Snapshot()
	snap.Pages[0].Width = 999
	if h.Snapshot().Pages[0].Width != 100 {
		t.Fatal("snapshot must not share page storage with the handle")
	}

	h.Finish(job.StatusDone, nil)
	final, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if final.Status != job.StatusDone || !final.IsTerminal() {
		t.Fatalf("expected terminal done, got %+v", final.Status)
	}
	if final.FinishedAt.IsZero() {
		t.Fatal("expected finish timestamp")
	}
}

func TestHandleFinishIsIdempotent(t *testing.T) {
	h := job.NewHandle(job.New("/tmp/input.pdf", job.Options{}))
	wantErr := errors.New("render failed")
	h.Finish(job.StatusFailed, wantErr)
	h.Finish(job.StatusCancelled, nil)

	snap := h.Snapshot()
	if snap.Status != job.StatusFailed {
		t.Fatalf("second Finish must not override, got %s", snap.Status)
	}
	if !errors.Is(snap.Err, wantErr) {
		t.Fatalf("expected original error, got %v", snap.Err)
	}
}

func TestHandleCancelSignals(t *testing.T) {
	h := job.NewHandle(job.New("/tmp/input.pdf", job.Options{}))
	if h.CancelRequested() {
		t.Fatal("fresh handle should not be cancelled")
	}
	h.Cancel()
	h.Cancel()
	if !h.CancelRequested() {
		t.Fatal("expected cancel request")
	}
	select {
	case <-h.Cancelled():
	default:
		t.Fatal("cancelled channel should be closed")
	}
}

func TestHandleWaitHonoursContext(t *testing.T) {
	h := job.NewHandle(job.New("/tmp/input.pdf", job.Options{}))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := h.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := job.ParseStatus(" Rendering "); !ok || status != job.StatusRendering {
		t.Fatalf("ParseStatus: got %q ok=%v", status, ok)
	}
	if _, ok := job.ParseStatus("paused"); ok {
		t.Fatal("unknown status should not parse")
	}
}
