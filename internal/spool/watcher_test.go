// Tests for the spool directory watcher: construction, event delivery for
// matching names, and the polling fallback.
package spool

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcherRequiresMatch(t *testing.T) {
	if _, err := NewWatcher(t.TempDir(), nil, time.Second); err == nil {
		t.Fatal("expected error for nil match func")
	}
}

func TestNewWatcherMissingDirPolls(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), matchTOML, time.Second)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()
	if !w.Polling() {
		t.Error("a directory that cannot be watched should fall back to polling")
	}
}

func TestWatcherEventOnMatchingFile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow watcher test in short mode")
	}
	dir := t.TempDir()
	w, err := NewWatcher(dir, matchTOML, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()
	time.Sleep(100 * time.Millisecond)

	writeJob(t, dir, "job.toml", "kind = \"quote\"\n")

	select {
	case <-w.Events():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job event")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow watcher test in short mode")
	}
	dir := t.TempDir()
	w, err := NewWatcher(dir, matchTOML, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()
	time.Sleep(100 * time.Millisecond)

	writeJob(t, dir, "readme.txt", "hello")

	select {
	case <-w.Events():
		t.Error("received event for non-matching file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestPollSignalsPendingJobs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow polling test in short mode")
	}
	dir := t.TempDir()
	w := &Watcher{
		dir:          dir,
		match:        matchTOML,
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: 50 * time.Millisecond,
	}
	w.startPolling()
	defer w.Close()

	select {
	case <-w.Events():
		t.Fatal("event before any job arrived")
	case <-time.After(150 * time.Millisecond):
	}

	writeJob(t, dir, "job.toml", "")
	select {
	case <-w.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("polling did not notice the job")
	}
}

func TestPollStopsOnClose(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow polling test in short mode")
	}
	dir := t.TempDir()
	w := &Watcher{
		dir:          dir,
		match:        matchTOML,
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: 50 * time.Millisecond,
	}
	w.startPolling()
	time.Sleep(100 * time.Millisecond)

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	os.WriteFile(filepath.Join(dir, "job.toml"), nil, 0o644)

	select {
	case <-w.Events():
		t.Error("received event after Close; poll should have stopped")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestCloseIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), matchTOML, time.Second)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
