package objectstore

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func TestFSStoreRoundTrip(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() err=%v", err)
	}
	ctx := context.Background()

	body := []byte(`{"metric": 0.5}`)
	if err := store.Put(ctx, "artifacts", "run-1/train/result.json", bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		t.Fatalf("Put() err=%v", err)
	}

	info, err := store.Stat(ctx, "artifacts", "run-1/train/result.json")
	if err != nil {
		t.Fatalf("Stat() err=%v", err)
	}
	if info.Size != int64(len(body)) {
		t.Fatalf("Size=%d, want %d", info.Size, len(body))
	}

	reader, _, err := store.Get(ctx, "artifacts", "run-1/train/result.json")
	if err != nil {
		t.Fatalf("Get() err=%v", err)
	}
	defer reader.Close()
	got, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("body=%q, want %q", got, body)
	}

	if err := store.Delete(ctx, "artifacts", "run-1/train/result.json"); err != nil {
		t.Fatalf("Delete() err=%v", err)
	}
	if _, err := store.Stat(ctx, "artifacts", "run-1/train/result.json"); err == nil {
		t.Fatalf("Stat() expected error after delete")
	}
}

func TestFSStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() err=%v", err)
	}

	err = store.Put(context.Background(), "artifacts", "../../etc/passwd", strings.NewReader("x"), 1, "")
	if err == nil || !strings.Contains(err.Error(), "escapes") {
		t.Fatalf("Put() err=%v, want escape rejection", err)
	}
}

func TestFSStoreValidation(t *testing.T) {
	if _, err := NewFSStore("  "); err == nil {
		t.Fatalf("NewFSStore() expected error for empty root")
	}

	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore() err=%v", err)
	}
	if err := store.Put(context.Background(), "", "key", strings.NewReader("x"), 1, ""); err == nil {
		t.Fatalf("Put() expected error for empty bucket")
	}
	if _, err := store.Stat(context.Background(), "bucket", ""); err == nil {
		t.Fatalf("Stat() expected error for empty key")
	}

	// Deleting a missing object is not an error.
	if err := store.Delete(context.Background(), "bucket", "missing"); err != nil {
		t.Fatalf("Delete() err=%v", err)
	}
}
