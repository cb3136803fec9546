// Package server exposes the relay over the network: the WebSocket endpoint
// that runs one protocol session per connection, the HTTP status routes and
// the admin gRPC server.
package server

import (
	"context"
	"log/slog"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorilla/websocket"

	"github.com/alfredjeanlab/relay/internal/blob"
	"github.com/alfredjeanlab/relay/internal/events"
	"github.com/alfredjeanlab/relay/internal/presence"
	"github.com/alfredjeanlab/relay/internal/session"
	"github.com/alfredjeanlab/relay/internal/store"
)

// Options configures the relay endpoint.
type Options struct {
	Owners          mapset.Set[string]
	MaxInFlight     int
	ChallengeLength int
	// AllowedOrigins restricts browser Origin headers. Empty allows any.
	AllowedOrigins mapset.Set[string]
	// MaxMessageBytes caps the size of one inbound frame. Zero means no limit.
	MaxMessageBytes int64
}

// RelayServer accepts WebSocket connections and hosts a session for each.
type RelayServer struct {
	store     store.Store
	blobs     blob.Store
	publisher events.Publisher
	Presence  *presence.Tracker
	opts      Options
	logger    *slog.Logger
	upgrader  websocket.Upgrader

	// ctx is the parent of every session; Close cancels it.
	ctx      context.Context
	cancel   context.CancelFunc
	sessions sync.WaitGroup
}

// NewRelayServer returns a RelayServer backed by the given stores and publisher.
func NewRelayServer(s store.Store, b blob.Store, p events.Publisher, opts Options, logger *slog.Logger) *RelayServer {
	if logger == nil {
		logger = slog.Default()
	}
	if p == nil {
		p = &events.NoopPublisher{}
	}
	if b == nil {
		b = blob.NewMemory()
	}
	ctx, cancel := context.WithCancel(context.Background())
	rs := &RelayServer{
		store:     s,
		blobs:     b,
		publisher: p,
		Presence:  presence.New(logger),
		opts:      opts,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	rs.upgrader = websocket.Upgrader{
		ReadBufferSize:  wsReadBuffer,
		WriteBufferSize: wsWriteBuffer,
		CheckOrigin:     originValidator(opts.AllowedOrigins, logger),
	}
	return rs
}

// Close ends every open session and waits for them to finish. http.Server
// shutdown does not track hijacked connections, so callers run both.
func (s *RelayServer) Close() {
	s.cancel()
	s.sessions.Wait()
}

func (s *RelayServer) sessionConfig() session.Config {
	return session.Config{
		Owners:          s.opts.Owners,
		MaxInFlight:     s.opts.MaxInFlight,
		ChallengeLength: s.opts.ChallengeLength,
	}
}

func (s *RelayServer) sessionDeps() session.Deps {
	return session.Deps{
		Store:     s.store,
		Blobs:     s.blobs,
		Publisher: s.publisher,
		Presence:  s.Presence,
		Logger:    s.logger,
	}
}
