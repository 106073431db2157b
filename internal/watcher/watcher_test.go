package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func collectIngests() (func(string), func() []string) {
	var mu sync.Mutex
	var paths []string
	record := func(path string) {
		mu.Lock()
		paths = append(paths, path)
		mu.Unlock()
	}
	snapshot := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), paths...)
	}
	return record, snapshot
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_IngestsNewFile(t *testing.T) {
	dir := t.TempDir()
	record, snapshot := collectIngests()
	w := NewWatcher(dir, []string{".txt"}, record, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "new.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 3*time.Second, func() bool { return len(snapshot()) == 1 }) {
		t.Fatalf("file was not ingested: %v", snapshot())
	}
	if filepath.Base(snapshot()[0]) != "new.txt" {
		t.Errorf("ingested = %v", snapshot())
	}
}

func TestWatcher_ExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	record, snapshot := collectIngests()
	w := NewWatcher(dir, []string{".pdf"}, record, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "skip.tmp"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "keep.pdf"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 3*time.Second, func() bool { return len(snapshot()) >= 1 }) {
		t.Fatalf("pdf was not ingested")
	}
	time.Sleep(200 * time.Millisecond)
	for _, p := range snapshot() {
		if filepath.Ext(p) != ".pdf" {
			t.Errorf("non-matching file ingested: %s", p)
		}
	}
}

func TestWatcher_DebounceCollapsesWrites(t *testing.T) {
	dir := t.TempDir()
	record, snapshot := collectIngests()
	w := NewWatcher(dir, nil, record, WithDebounce(150*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "chunked.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := f.Write([]byte("part")); err != nil {
			t.Fatal(err)
		}
		_ = f.Sync()
		time.Sleep(20 * time.Millisecond)
	}
	_ = f.Close()

	if !waitFor(t, 3*time.Second, func() bool { return len(snapshot()) >= 1 }) {
		t.Fatal("file was not ingested")
	}
	time.Sleep(300 * time.Millisecond)
	if n := len(snapshot()); n != 1 {
		t.Errorf("debounce should collapse writes into one ingest, got %d", n)
	}
}

func TestWatcher_SyncExisting(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "old.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	record, snapshot := collectIngests()
	w := NewWatcher(dir, []string{".txt"}, record)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.SyncExisting()
	got := snapshot()
	if len(got) != 1 || filepath.Base(got[0]) != "old.txt" {
		t.Errorf("sync = %v", got)
	}
}

func TestWatcher_CreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	w := NewWatcher(dir, nil, func(string) {})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory should be created: %v", err)
	}
}

func TestWatcher_SuppressSkipsIngest(t *testing.T) {
	dir := t.TempDir()
	record, snapshot := collectIngests()
	w := NewWatcher(dir, nil, record, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	suppressed := filepath.Join(dir, "uploaded.txt")
	w.Suppress(suppressed)
	if err := os.WriteFile(suppressed, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	other := filepath.Join(dir, "dropped.txt")
	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 3*time.Second, func() bool { return len(snapshot()) >= 1 }) {
		t.Fatal("unsuppressed file was not ingested")
	}
	time.Sleep(200 * time.Millisecond)
	for _, p := range snapshot() {
		if filepath.Base(p) == "uploaded.txt" {
			t.Error("suppressed file was ingested")
		}
	}
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w := NewWatcher(t.TempDir(), nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}
