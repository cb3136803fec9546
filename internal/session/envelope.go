package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Reply messages.
const (
	msgAuthFailed  = "auth-required: authentication failed"
	msgRestricted  = "restricted: only the relay owner may publish events"
	msgDuplicate   = "duplicate: already have this event"
	msgSaveFailed  = "error: could not save event"
	msgFileFailed  = "error: could not save file"
	msgRateLimited = "rate-limited: too many concurrent requests"
	msgQueryFailed = "error: could not query events"
	msgIDMismatch  = "invalid: event id does not match content"
)

// encodeEnvelope encodes an outbound message. HTML escaping is disabled so
// content reaches clients byte for byte.
func encodeEnvelope(parts ...any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(parts); err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// send encodes and writes one envelope.
func (s *Session) send(ctx context.Context, parts ...any) error {
	data, err := encodeEnvelope(parts...)
	if err != nil {
		return err
	}
	return s.writeRaw(ctx, data)
}

func (s *Session) writeRaw(ctx context.Context, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(ctx, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (s *Session) sendOK(ctx context.Context, id string, accepted bool, message string) error {
	return s.send(ctx, "OK", id, accepted, message)
}

func (s *Session) sendNotice(ctx context.Context, message string) error {
	return s.send(ctx, "NOTICE", message)
}
