package presence

import (
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegister_BasicTracking(t *testing.T) {
	tr := New(slog.Default())

	id := tr.Register("10.0.0.1:5000", nil)
	if id == "" {
		t.Fatal("expected non-empty connection id")
	}
	tr.RecordMessage(id, "AUTH")
	tr.SetIdentity(id, "pk1", true)
	tr.RecordMessage(id, "REQ")

	roster := tr.Roster()
	if len(roster) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(roster))
	}

	e := roster[0]
	if e.ID != id {
		t.Errorf("expected id %s, got %s", id, e.ID)
	}
	if e.RemoteAddr != "10.0.0.1:5000" {
		t.Errorf("expected remote addr 10.0.0.1:5000, got %s", e.RemoteAddr)
	}
	if e.PubKey != "pk1" || !e.Privileged {
		t.Errorf("expected privileged pk1, got pubkey=%q privileged=%v", e.PubKey, e.Privileged)
	}
	if e.LastMessage != "REQ" {
		t.Errorf("expected last message REQ, got %s", e.LastMessage)
	}
	if e.MessageCount != 2 {
		t.Errorf("expected message_count 2, got %d", e.MessageCount)
	}
}

func TestRegister_UniqueIDs(t *testing.T) {
	tr := New(nil)
	a := tr.Register("a", nil)
	b := tr.Register("b", nil)
	if a == b {
		t.Fatalf("expected distinct ids, both %s", a)
	}
	if tr.Len() != 2 {
		t.Fatalf("expected 2 connections, got %d", tr.Len())
	}
}

func TestUnregister(t *testing.T) {
	tr := New(nil)
	id := tr.Register("a", nil)
	tr.Unregister(id)
	tr.Unregister("unknown")

	// Recording against a removed connection is a no-op.
	tr.RecordMessage(id, "REQ")
	tr.SetIdentity(id, "pk", false)

	if tr.Len() != 0 {
		t.Fatalf("expected 0 connections, got %d", tr.Len())
	}
}

func TestRoster_SortedByMostRecent(t *testing.T) {
	tr := New(nil)

	first := tr.Register("first", nil)
	second := tr.Register("second", nil)
	third := tr.Register("third", nil)

	tr.mu.Lock()
	tr.conns[first].lastSeen = time.Now().Add(-3 * time.Minute)
	tr.conns[second].lastSeen = time.Now().Add(-2 * time.Minute)
	tr.conns[third].lastSeen = time.Now().Add(-1 * time.Minute)
	tr.mu.Unlock()

	roster := tr.Roster()
	if len(roster) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(roster))
	}
	if roster[0].ID != third {
		t.Errorf("expected third first, got %s", roster[0].RemoteAddr)
	}
	if roster[2].ID != first {
		t.Errorf("expected first last, got %s", roster[2].RemoteAddr)
	}
}

func TestSweep_ClosesIdleConnections(t *testing.T) {
	tr := New(nil)

	var closed atomic.Int32
	idleID := tr.Register("idle", func() { closed.Add(1) })
	tr.Register("busy", func() { t.Error("busy connection should not be closed") })

	tr.mu.Lock()
	tr.conns[idleID].lastSeen = time.Now().Add(-20 * time.Minute)
	tr.mu.Unlock()

	var reaped []string
	cfg := &ReaperConfig{
		IdleTimeout:   15 * time.Minute,
		SweepInterval: time.Second,
		OnIdle: func(id, _ string) {
			reaped = append(reaped, id)
		},
	}

	tr.sweep(cfg)
	// A second sweep must not close the same connection again.
	tr.sweep(cfg)

	if closed.Load() != 1 {
		t.Errorf("expected close called once, got %d", closed.Load())
	}
	if len(reaped) != 1 || reaped[0] != idleID {
		t.Errorf("expected %s to be reaped, got %v", idleID, reaped)
	}
}

func TestStartReaper_StopsCleanly(t *testing.T) {
	tr := New(nil)

	tr.StartReaper(&ReaperConfig{
		SweepInterval: 50 * time.Millisecond,
	})

	time.Sleep(150 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		tr.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return within 2 seconds")
	}
}

func TestStartReaper_ClosesIdle(t *testing.T) {
	tr := New(nil)

	closed := make(chan struct{})
	id := tr.Register("idle", func() { close(closed) })
	tr.mu.Lock()
	tr.conns[id].lastSeen = time.Now().Add(-time.Hour)
	tr.mu.Unlock()

	tr.StartReaper(&ReaperConfig{IdleTimeout: time.Minute, SweepInterval: 20 * time.Millisecond})
	defer tr.Stop()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("idle connection was not closed")
	}
}
