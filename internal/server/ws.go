package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorilla/websocket"

	"github.com/alfredjeanlab/relay/internal/session"
)

const (
	wsReadBuffer   = 1024
	wsWriteBuffer  = 1024
	wsWriteTimeout = 10 * time.Second
)

// handleWebSocket upgrades the request and runs a session until the peer
// disconnects, the idle reaper closes it, or the server shuts down.
func (s *RelayServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	if s.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(s.opts.MaxMessageBytes)
	}

	s.sessions.Add(1)
	defer s.sessions.Done()

	remote := clientAddr(r)
	id := s.Presence.Register(remote, func() { conn.Close() })
	defer s.Presence.Unregister(id)

	sess, err := session.New(id, s.sessionConfig(), s.sessionDeps())
	if err != nil {
		s.logger.Error("create session", "remote", remote, "err", err)
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	// A blocked read only returns once the socket is closed.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if err := sess.Run(ctx, &wsConn{conn: conn, remote: remote}); err != nil {
		s.logger.Debug("session ended with error", "conn", id, "err", err)
	}
}

// wsConn adapts a gorilla connection to session.Conn.
type wsConn struct {
	conn   *websocket.Conn
	remote string
}

func (c *wsConn) ReadMessage(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

func (c *wsConn) WriteMessage(_ context.Context, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) RemoteAddr() string { return c.remote }

// clientAddr prefers the first X-Forwarded-For hop when the relay sits
// behind a proxy.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return r.RemoteAddr
}

// originValidator checks the Origin header during the upgrade. Requests
// without an Origin (non-browser clients) are always accepted, as is every
// origin when the allow list is empty or contains "*".
func originValidator(allowed mapset.Set[string], logger *slog.Logger) func(*http.Request) bool {
	allowAll := allowed == nil || allowed.Cardinality() == 0 || allowed.Contains("*")
	return func(r *http.Request) bool {
		if _, ok := r.Header["Origin"]; !ok || allowAll {
			return true
		}
		origin := strings.ToLower(r.Header.Get("Origin"))
		if allowed.Contains(origin) {
			return true
		}
		logger.Warn("rejected websocket connection", "origin", origin)
		return false
	}
}
