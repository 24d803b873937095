package cache_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"longimage/internal/cache"
)

func openStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func commitFixture(t *testing.T, store *cache.Store, hash, content string) cache.Entry {
	t.Helper()
	lease, _, err := store.Reserve(hash)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	output := filepath.Join(t.TempDir(), "out.png")
	if err := os.WriteFile(output, []byte(content), 0o644); err != nil {
		t.Fatalf("write output: %v", err)
	}
	entry := cache.Entry{Extension: "png", Width: 100, Height: 300, Pages: 3}
	if err := store.Commit(context.Background(), lease, output, entry); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	entry.ContentHash = hash
	return entry
}

func TestLookupMissAndHit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if _, hit, err := store.Lookup(ctx, "absent"); err != nil || hit {
		t.Fatalf("expected clean miss, hit=%v err=%v", hit, err)
	}

	commitFixture(t, store, "hash-a", "pixels")

	entry, hit, err := store.Lookup(ctx, "hash-a")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit")
	}
	if entry.Width != 100 || entry.Height != 300 || entry.Pages != 3 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Bytes != int64(len("pixels")) {
		t.Fatalf("expected object size recorded, got %d", entry.Bytes)
	}

	dst := filepath.Join(t.TempDir(), "copy.png")
	if err := store.CopyTo(entry, dst); err != nil {
		t.Fatalf("CopyTo failed: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "pixels" {
		t.Fatalf("copied object mismatch: %q err=%v", data, err)
	}
}

func TestLookupDropsEntryWithMissingObject(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	entry := commitFixture(t, store, "hash-b", "pixels")

	if err := os.Remove(entry.ObjectPath(store.Dir())); err != nil {
		t.Fatalf("remove object: %v", err)
	}
	if _, hit, err := store.Lookup(ctx, "hash-b"); err != nil || hit {
		t.Fatalf("expected miss after object removal, hit=%v err=%v", hit, err)
	}
}

func TestReserveBlocksDuplicates(t *testing.T) {
	store := openStore(t)

	lease, _, err := store.Reserve("hash-c")
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	_, waiter, err := store.Reserve("hash-c")
	if !errors.Is(err, cache.ErrAlreadyInFlight) {
		t.Fatalf("expected ErrAlreadyInFlight, got %v", err)
	}
	if waiter == nil {
		t.Fatal("expected a waiter for the in-flight render")
	}
	if _, err := waiter.Result(); err == nil {
		t.Fatal("result must not be available before release")
	}

	output := filepath.Join(t.TempDir(), "out.png")
	if err := os.WriteFile(output, []byte("pixels"), 0o644); err != nil {
		t.Fatalf("write output: %v", err)
	}
	if err := store.Commit(context.Background(), lease, output, cache.Entry{Extension: "png"}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	select {
	case <-waiter.Done():
	case <-time.After(time.Second):
		t.Fatal("waiter not released after commit")
	}
	entry, err := waiter.Result()
	if err != nil {
		t.Fatalf("waiter result error: %v", err)
	}
	if entry == nil || entry.ContentHash != "hash-c" {
		t.Fatalf("unexpected waiter entry: %+v", entry)
	}

	// Lease is released, so a fresh reservation succeeds.
	lease2, _, err := store.Reserve("hash-c")
	if err != nil {
		t.Fatalf("re-Reserve failed: %v", err)
	}
	store.Abort(lease2, errors.New("cleanup"))
}

func TestAbortPropagatesError(t *testing.T) {
	store := openStore(t)

	lease, _, err := store.Reserve("hash-d")
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	_, waiter, err := store.Reserve("hash-d")
	if !errors.Is(err, cache.ErrAlreadyInFlight) {
		t.Fatalf("expected ErrAlreadyInFlight, got %v", err)
	}

	cause := errors.New("render exploded")
	store.Abort(lease, cause)

	<-waiter.Done()
	if _, err := waiter.Result(); !errors.Is(err, cause) {
		t.Fatalf("expected propagated cause, got %v", err)
	}

	if _, hit, _ := store.Lookup(context.Background(), "hash-d"); hit {
		t.Fatal("aborted render must not be cached")
	}
}

func TestAbortIsIdempotent(t *testing.T) {
	store := openStore(t)
	lease, _, err := store.Reserve("hash-e")
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	store.Abort(lease, errors.New("first"))
	store.Abort(lease, errors.New("second"))

	if _, _, err := store.Reserve("hash-e"); err != nil {
		t.Fatalf("expected lease available after abort: %v", err)
	}
}
