// Package presence keeps the roster of live relay connections.
//
// The relay registers every accepted WebSocket with the Tracker and records
// each inbound message against it. A background reaper closes connections
// that have been silent for longer than the idle timeout.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is a snapshot of one connection's state.
type Entry struct {
	ID           string    `json:"id"`
	RemoteAddr   string    `json:"remote_addr"`
	PubKey       string    `json:"pubkey,omitempty"`     // set once authenticated
	Privileged   bool      `json:"privileged,omitempty"` // owner identity
	ConnectedAt  time.Time `json:"connected_at"`
	LastSeen     time.Time `json:"last_seen"`
	LastMessage  string    `json:"last_message,omitempty"` // e.g. "REQ", "EVENT"
	MessageCount int64     `json:"message_count"`
	IdleSecs     float64   `json:"idle_secs"`
	DurationSecs float64   `json:"duration_secs"`
}

// ReaperConfig configures the background idle-connection reaper.
type ReaperConfig struct {
	// IdleTimeout is how long a connection may stay silent before it is closed.
	// Default: 15 minutes.
	IdleTimeout time.Duration

	// SweepInterval is how often the reaper scans for idle connections.
	// Default: 60 seconds.
	SweepInterval time.Duration

	// OnIdle is called for each connection the reaper closes, after its close
	// function has run. Called outside the lock.
	OnIdle func(id, remoteAddr string)
}

// Tracker maintains an in-memory roster of open connections.
type Tracker struct {
	logger *slog.Logger

	mu    sync.RWMutex
	conns map[string]*connState

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type connState struct {
	remoteAddr   string
	pubkey       string
	privileged   bool
	connectedAt  time.Time
	lastSeen     time.Time
	lastMessage  string
	messageCount int64
	reaped       bool
	close        func()
}

// New creates a new presence tracker.
func New(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		logger: logger,
		conns:  make(map[string]*connState),
	}
}

// Register adds a connection and returns its id. closeFn is invoked by the
// reaper when the connection goes idle; it may be nil.
func (t *Tracker) Register(remoteAddr string, closeFn func()) string {
	id := uuid.NewString()
	now := time.Now()

	t.mu.Lock()
	t.conns[id] = &connState{
		remoteAddr:  remoteAddr,
		connectedAt: now,
		lastSeen:    now,
		close:       closeFn,
	}
	t.mu.Unlock()
	return id
}

// Unregister removes a connection. Unknown ids are ignored.
func (t *Tracker) Unregister(id string) {
	t.mu.Lock()
	delete(t.conns, id)
	t.mu.Unlock()
}

// RecordMessage notes inbound activity on a connection.
func (t *Tracker) RecordMessage(id, messageType string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.conns[id]
	if !ok {
		return
	}
	state.lastSeen = time.Now()
	state.lastMessage = messageType
	state.messageCount++
}

// SetIdentity records the authenticated identity of a connection.
func (t *Tracker) SetIdentity(id, pubkey string, privileged bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if state, ok := t.conns[id]; ok {
		state.pubkey = pubkey
		state.privileged = privileged
	}
}

// Len returns the number of open connections.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}

// Roster returns a snapshot of all connections, most recently active first.
func (t *Tracker) Roster() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := time.Now()
	entries := make([]Entry, 0, len(t.conns))
	for id, state := range t.conns {
		entries = append(entries, Entry{
			ID:           id,
			RemoteAddr:   state.remoteAddr,
			PubKey:       state.pubkey,
			Privileged:   state.privileged,
			ConnectedAt:  state.connectedAt,
			LastSeen:     state.lastSeen,
			LastMessage:  state.lastMessage,
			MessageCount: state.messageCount,
			IdleSecs:     now.Sub(state.lastSeen).Seconds(),
			DurationSecs: now.Sub(state.connectedAt).Seconds(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	return entries
}

// StartReaper launches a background goroutine that periodically closes idle
// connections. Call Stop() to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 15 * time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 60 * time.Second
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	t.logger.Info("presence: reaper started",
		"idle_timeout", cfg.IdleTimeout,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := time.Now()

	type idleConn struct {
		id         string
		remoteAddr string
		close      func()
	}
	var idle []idleConn

	t.mu.Lock()
	for id, state := range t.conns {
		// A reaped connection stays listed until its handler unregisters it.
		if state.reaped {
			continue
		}
		if now.Sub(state.lastSeen) > cfg.IdleTimeout {
			state.reaped = true
			idle = append(idle, idleConn{id: id, remoteAddr: state.remoteAddr, close: state.close})
		}
	}
	t.mu.Unlock()

	for _, c := range idle {
		t.logger.Info("presence: closing idle connection",
			"conn", c.id,
			"remote", c.remoteAddr,
			"idle_timeout", cfg.IdleTimeout)
		if c.close != nil {
			c.close()
		}
		if cfg.OnIdle != nil {
			cfg.OnIdle(c.id, c.remoteAddr)
		}
	}
}
