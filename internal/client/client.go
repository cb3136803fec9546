// Package client is a WebSocket client for the relay protocol. It is used by
// the relay CLI and by integration tests.
//
// A Client is not safe for concurrent use: every call writes one request and
// reads frames until its reply arrives.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/gorilla/websocket"

	"github.com/alfredjeanlab/relay/internal/identity"
	"github.com/alfredjeanlab/relay/internal/model"
)

// ErrAuthFailed is returned by Auth when the relay rejects the proof.
var ErrAuthFailed = errors.New("authentication failed")

// NoticeError carries a NOTICE the relay sent instead of the expected reply.
type NoticeError struct {
	Message string
}

func (e *NoticeError) Error() string { return "relay notice: " + e.Message }

// Result is the relay's answer to a published event.
type Result struct {
	EventID  string
	Accepted bool
	Message  string
}

// Client is a connection to one relay.
type Client struct {
	url       string
	conn      *websocket.Conn
	challenge string
}

// Dial connects to the relay at url (ws:// or wss://) and waits for the
// AUTH challenge. header may be nil.
func Dial(ctx context.Context, url string, header http.Header) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{url: url, conn: conn}
	msg, err := c.next(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read challenge: %w", err)
	}
	if msg.typ != "AUTH" || len(msg.args) < 1 || json.Unmarshal(msg.args[0], &c.challenge) != nil {
		conn.Close()
		return nil, fmt.Errorf("read challenge: unexpected %s frame", msg.typ)
	}
	return c, nil
}

// Challenge returns the challenge the relay sent on connect.
func (c *Client) Challenge() string { return c.challenge }

// Close closes the connection.
func (c *Client) Close() error {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}

// Auth proves ownership of key by signing the connection's challenge.
func (c *Client) Auth(ctx context.Context, key *btcec.PrivateKey) error {
	e := &model.Event{
		CreatedAt: time.Now().Unix(),
		Kind:      model.KindClientAuth,
		Tags:      model.Tags{{"relay", c.url}, {"challenge", c.challenge}},
	}
	if err := identity.Sign(e, key); err != nil {
		return err
	}
	if err := c.send("AUTH", e); err != nil {
		return err
	}

	for {
		msg, err := c.next(ctx)
		if err != nil {
			return err
		}
		switch msg.typ {
		case "OK":
			res, err := parseOK(msg.args)
			if err != nil {
				return err
			}
			if res.EventID == e.ID {
				if !res.Accepted {
					return fmt.Errorf("%w: %s", ErrAuthFailed, res.Message)
				}
				return nil
			}
		case "NOTICE":
			return fmt.Errorf("%w: %s", ErrAuthFailed, noticeText(msg.args))
		}
	}
}

// Publish sends a signed event and waits for its OK reply. The relay sends no
// reply for an event whose author differs from the authenticated identity, so
// callers should bound ctx.
func (c *Client) Publish(ctx context.Context, e *model.Event) (*Result, error) {
	if err := c.send("EVENT", e); err != nil {
		return nil, err
	}
	for {
		msg, err := c.next(ctx)
		if err != nil {
			return nil, err
		}
		if msg.typ != "OK" {
			continue
		}
		res, err := parseOK(msg.args)
		if err != nil {
			return nil, err
		}
		if res.EventID == e.ID {
			return res, nil
		}
	}
}

// Query runs a REQ and collects events until EOSE. A NOTICE received before
// EOSE (rate limiting, store failure) is returned as a *NoticeError together
// with the events received so far.
func (c *Client) Query(ctx context.Context, subID string, filters ...model.Filter) ([]*model.Event, error) {
	if len(filters) == 0 {
		filters = []model.Filter{{}}
	}
	parts := []any{"REQ", subID}
	for _, f := range filters {
		parts = append(parts, f)
	}
	if err := c.send(parts...); err != nil {
		return nil, err
	}

	var events []*model.Event
	for {
		msg, err := c.next(ctx)
		if err != nil {
			return events, err
		}
		switch msg.typ {
		case "EVENT":
			if len(msg.args) < 2 || !matchesSub(msg.args[0], subID) {
				continue
			}
			var e model.Event
			if err := json.Unmarshal(msg.args[1], &e); err != nil {
				return events, fmt.Errorf("decode event: %w", err)
			}
			events = append(events, &e)
		case "EOSE":
			if len(msg.args) > 0 && matchesSub(msg.args[0], subID) {
				return events, nil
			}
		case "NOTICE":
			return events, &NoticeError{Message: noticeText(msg.args)}
		}
	}
}

// Count runs a COUNT request.
func (c *Client) Count(ctx context.Context, subID string, filter model.Filter) (int64, error) {
	if err := c.send("COUNT", subID, filter); err != nil {
		return 0, err
	}
	for {
		msg, err := c.next(ctx)
		if err != nil {
			return 0, err
		}
		switch msg.typ {
		case "COUNT":
			if len(msg.args) < 2 || !matchesSub(msg.args[0], subID) {
				continue
			}
			var n int64
			if err := json.Unmarshal(msg.args[1], &n); err != nil {
				return 0, fmt.Errorf("decode count: %w", err)
			}
			return n, nil
		case "NOTICE":
			return 0, &NoticeError{Message: noticeText(msg.args)}
		}
	}
}

// Ping sends the raw "ping" keepalive and waits for "pong".
func (c *Client) Ping(ctx context.Context) error {
	if err := c.writeRaw([]byte("ping")); err != nil {
		return err
	}
	for {
		if err := c.applyDeadline(ctx); err != nil {
			return err
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}
		if string(data) == "pong" {
			return nil
		}
	}
}

type message struct {
	typ  string
	args []json.RawMessage
}

func (c *Client) send(parts ...any) error {
	data, err := json.Marshal(parts)
	if err != nil {
		return fmt.Errorf("encode %v: %w", parts[0], err)
	}
	return c.writeRaw(data)
}

func (c *Client) writeRaw(data []byte) error {
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// next reads frames until one parses as an envelope. Raw keepalive replies
// are skipped.
func (c *Client) next(ctx context.Context) (*message, error) {
	for {
		if err := c.applyDeadline(ctx); err != nil {
			return nil, err
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("read message: %w", err)
		}
		var raw []json.RawMessage
		if json.Unmarshal(data, &raw) != nil || len(raw) == 0 {
			continue
		}
		var typ string
		if json.Unmarshal(raw[0], &typ) != nil {
			continue
		}
		return &message{typ: typ, args: raw[1:]}, nil
	}
}

func (c *Client) applyDeadline(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	return c.conn.SetReadDeadline(deadline)
}

func parseOK(args []json.RawMessage) (*Result, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("malformed OK: %d elements", len(args))
	}
	var res Result
	if err := json.Unmarshal(args[0], &res.EventID); err != nil {
		return nil, fmt.Errorf("malformed OK id: %w", err)
	}
	if err := json.Unmarshal(args[1], &res.Accepted); err != nil {
		return nil, fmt.Errorf("malformed OK flag: %w", err)
	}
	_ = json.Unmarshal(args[2], &res.Message)
	return &res, nil
}

func noticeText(args []json.RawMessage) string {
	var s string
	if len(args) > 0 {
		_ = json.Unmarshal(args[0], &s)
	}
	return s
}

func matchesSub(raw json.RawMessage, subID string) bool {
	var s string
	return json.Unmarshal(raw, &s) == nil && s == subID
}
