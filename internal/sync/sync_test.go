package sync

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfredjeanlab/relay/internal/blob"
	"github.com/alfredjeanlab/relay/internal/model"
)

// mockDestination records calls to Write.
type mockDestination struct {
	writes atomic.Int64
	last   atomic.Value // []byte
	err    error
}

func (d *mockDestination) Write(_ context.Context, data []byte) error {
	d.writes.Add(1)
	cp := make([]byte, len(data))
	copy(cp, data)
	d.last.Store(cp)
	return d.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestSchedulerStartStop(t *testing.T) {
	ms := newMockStore()
	ms.add(&model.Event{ID: "ev1", PubKey: "pk", CreatedAt: 1, Kind: 1, Tags: model.Tags{}})

	dest := &mockDestination{}
	sched := NewScheduler(ms, []Destination{dest}, 50*time.Millisecond, testLogger())
	sched.Start()

	// Initial backup, then a tick after a new event arrives.
	deadline := time.Now().Add(2 * time.Second)
	for dest.writes.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("initial backup never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}
	ms.add(&model.Event{ID: "ev2", PubKey: "pk", CreatedAt: 2, Kind: 1, Tags: model.Tags{}})
	time.Sleep(120 * time.Millisecond)
	sched.Stop()

	if writes := dest.writes.Load(); writes != 2 {
		t.Fatalf("expected 2 writes, got %d", writes)
	}

	data, ok := dest.last.Load().([]byte)
	if !ok || len(data) == 0 {
		t.Fatal("expected non-empty data")
	}
	// header + 2 events + trailer
	if lines := nonEmptyLines(string(data)); len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	sched := NewScheduler(newMockStore(), nil, time.Minute, testLogger())
	sched.Stop()
}

func TestSyncOnce_ContinuesAfterDestinationError(t *testing.T) {
	failing := &mockDestination{err: errors.New("bucket missing")}
	ok := &mockDestination{}

	sched := NewScheduler(newMockStore(), []Destination{failing, ok}, time.Minute, testLogger())
	err := sched.SyncOnce(context.Background())
	if err == nil {
		t.Fatal("expected destination error")
	}
	if ok.writes.Load() != 1 {
		t.Fatal("second destination should still be written")
	}
}

func TestFileDestination(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backups", "events.jsonl")
	dest := NewFileDestination(path)

	for _, payload := range []string{"first\n", "second\n"} {
		if err := dest.Write(context.Background(), []byte(payload)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "second\n" {
		t.Fatalf("file = %q, want last payload", data)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestSyncOnce_SkipsUnchangedSnapshot(t *testing.T) {
	ms := newMockStore()
	ms.add(&model.Event{ID: "ev1", PubKey: "pk", CreatedAt: 1, Kind: 1, Tags: model.Tags{}})
	dest := &mockDestination{}
	sched := NewScheduler(ms, []Destination{dest}, time.Minute, testLogger())

	for i := 0; i < 3; i++ {
		if err := sched.SyncOnce(context.Background()); err != nil {
			t.Fatalf("SyncOnce: %v", err)
		}
	}
	if got := dest.writes.Load(); got != 1 {
		t.Fatalf("writes = %d, want 1 for an unchanged store", got)
	}

	ms.add(&model.Event{ID: "ev2", PubKey: "pk", CreatedAt: 2, Kind: 1, Tags: model.Tags{}})
	if err := sched.SyncOnce(context.Background()); err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if got := dest.writes.Load(); got != 2 {
		t.Fatalf("writes = %d, want 2 after a change", got)
	}
}

func TestSyncOnce_RetriesAfterFailure(t *testing.T) {
	dest := &mockDestination{err: errors.New("offline")}
	sched := NewScheduler(newMockStore(), []Destination{dest}, time.Minute, testLogger())

	if err := sched.SyncOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	dest.err = nil
	if err := sched.SyncOnce(context.Background()); err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}
	if got := dest.writes.Load(); got != 2 {
		t.Fatalf("writes = %d, want the failed snapshot retried", got)
	}
}

func TestBlobDestination(t *testing.T) {
	mem := blob.NewMemory()
	dest := NewBlobDestination(mem, "relay/backup.jsonl")

	for _, payload := range []string{"one\n", "two\n"} {
		if err := dest.Write(context.Background(), []byte(payload)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	got, err := mem.Get(context.Background(), "relay/backup.jsonl")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "two\n" {
		t.Fatalf("stored %q, want latest snapshot", got)
	}
}
