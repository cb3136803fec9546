// Package session implements the per-connection protocol state machine.
//
// A Session owns one client connection: it sends the AUTH challenge on
// start, reads frames in a single loop and dispatches them to the AUTH,
// EVENT, REQ, COUNT and CLOSE handlers. REQ queries run in their own
// goroutines so the loop keeps reading; every outbound frame goes through
// one write mutex.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/alfredjeanlab/relay/internal/blob"
	"github.com/alfredjeanlab/relay/internal/events"
	"github.com/alfredjeanlab/relay/internal/idgen"
	"github.com/alfredjeanlab/relay/internal/presence"
	"github.com/alfredjeanlab/relay/internal/store"
)

// Conn is a duplex message channel carrying one text frame per message.
type Conn interface {
	// ReadMessage blocks for the next inbound frame. It returns io.EOF once
	// the peer has closed the connection.
	ReadMessage(ctx context.Context) ([]byte, error)
	WriteMessage(ctx context.Context, data []byte) error
	RemoteAddr() string
}

// Config holds the protocol settings a session enforces.
type Config struct {
	// Owners are the identities allowed to publish and to receive privileged kinds.
	Owners mapset.Set[string]
	// MaxInFlight is the number of concurrent REQs a non-owner session may run.
	MaxInFlight int
	// ChallengeLength is the length of the AUTH challenge string.
	ChallengeLength int
}

// Deps are the collaborators a session calls into.
type Deps struct {
	Store     store.Store
	Blobs     blob.Store
	Publisher events.Publisher  // optional
	Presence  *presence.Tracker // optional
	Logger    *slog.Logger
}

// Session is the protocol state of one connection.
type Session struct {
	id     string
	cfg    Config
	deps   Deps
	logger *slog.Logger

	conn    Conn
	writeMu sync.Mutex

	// Written only by the read loop.
	challenge     string
	challengeUsed bool
	authenticated bool
	identity      string
	privileged    bool

	inFlight atomic.Int32
	wg       sync.WaitGroup
}

// New creates a session with a fresh challenge. id identifies the
// connection in logs and in the presence roster.
func New(id string, cfg Config, deps Deps) (*Session, error) {
	challenge, err := idgen.Challenge(cfg.ChallengeLength)
	if err != nil {
		return nil, err
	}
	if cfg.Owners == nil {
		cfg.Owners = mapset.NewSet[string]()
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 5
	}
	if deps.Publisher == nil {
		deps.Publisher = &events.NoopPublisher{}
	}
	if deps.Blobs == nil {
		deps.Blobs = blob.NewMemory()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:        id,
		cfg:       cfg,
		deps:      deps,
		logger:    logger.With("conn", id),
		challenge: challenge,
	}, nil
}

// Challenge returns the string the client must sign to authenticate.
func (s *Session) Challenge() string {
	return s.challenge
}

// Run sends the AUTH challenge and serves conn until it is closed or ctx is
// cancelled. In-flight queries are cancelled and awaited before Run returns.
// A clean close returns nil.
func (s *Session) Run(ctx context.Context, conn Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer s.wg.Wait()
	defer cancel()

	s.conn = conn
	s.logger.Debug("session started", "remote", conn.RemoteAddr())

	if err := s.send(ctx, "AUTH", s.challenge); err != nil {
		return err
	}

	for {
		data, err := conn.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				s.logger.Debug("session closed", "remote", conn.RemoteAddr())
				return nil
			}
			return err
		}
		s.handleFrame(ctx, data)
	}
}

// handleFrame is the failure-isolation boundary: nothing a client sends can
// end the loop.
func (s *Session) handleFrame(ctx context.Context, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic handling frame", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if string(data) == "ping" {
		if err := s.writeRaw(ctx, []byte("pong")); err != nil {
			s.logger.Warn("write pong failed", "err", err)
		}
		return
	}

	typ, args, err := parseFrame(data)
	if err != nil {
		s.logger.Warn("dropping malformed frame", "err", err, "bytes", len(data))
		return
	}
	if s.deps.Presence != nil {
		s.deps.Presence.RecordMessage(s.id, typ)
	}

	switch typ {
	case "AUTH":
		err = s.handleAuth(ctx, args)
	case "EVENT":
		err = s.handleEvent(ctx, args)
	case "REQ":
		err = s.handleReq(ctx, args)
	case "COUNT":
		err = s.handleCount(ctx, args)
	case "CLOSE":
		// Every REQ is a one-shot snapshot; there is no subscription to end.
	default:
		s.logger.Debug("ignoring unknown message type", "type", typ)
	}
	if err != nil {
		s.logger.Warn("handler failed", "type", typ, "err", err)
	}
}

// parseFrame splits a JSON array frame into its type and remaining elements.
func parseFrame(data []byte) (string, []json.RawMessage, error) {
	var msg []json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", nil, protocolError("frame is not a JSON array")
	}
	if len(msg) == 0 {
		return "", nil, protocolError("empty frame")
	}
	var typ string
	if err := json.Unmarshal(msg[0], &typ); err != nil {
		return "", nil, protocolError("message type is not a string")
	}
	return typ, msg[1:], nil
}

// protocolError indicates malformed client input. It is logged and the
// frame dropped; it never closes the connection.
type protocolError string

func (e protocolError) Error() string { return string(e) }
