package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/alfredjeanlab/relay/internal/blob"
	"github.com/alfredjeanlab/relay/internal/events"
	"github.com/alfredjeanlab/relay/internal/identity"
	"github.com/alfredjeanlab/relay/internal/model"
	"github.com/alfredjeanlab/relay/internal/store"
)

// handleAuth processes ["AUTH", event]. The event must carry a
// ["challenge", <challenge>] tag and a valid id and signature. Any failure
// leaves the session state unchanged.
func (s *Session) handleAuth(ctx context.Context, args []json.RawMessage) error {
	var e model.Event
	if len(args) == 0 || json.Unmarshal(args[0], &e) != nil {
		return s.sendNotice(ctx, msgAuthFailed)
	}

	if s.challengeUsed || !hasChallenge(e.Tags, s.challenge) || !identity.Verify(&e) {
		s.logger.Info("authentication failed", "pubkey", e.PubKey)
		return s.sendNotice(ctx, msgAuthFailed)
	}

	s.authenticated = true
	s.identity = e.PubKey
	s.privileged = s.cfg.Owners.Contains(e.PubKey)
	s.challengeUsed = true
	s.logger.Info("authenticated", "pubkey", e.PubKey, "privileged", s.privileged)

	if s.deps.Presence != nil {
		s.deps.Presence.SetIdentity(s.id, e.PubKey, s.privileged)
	}
	s.publish(ctx, events.TopicSessionAuthenticated, events.SessionAuthenticated{
		ConnID:     s.id,
		PubKey:     e.PubKey,
		Privileged: s.privileged,
	})
	return s.sendOK(ctx, e.ID, true, "")
}

func hasChallenge(tags model.Tags, challenge string) bool {
	for _, v := range tags.Values("challenge") {
		if v == challenge {
			return true
		}
	}
	return false
}

// handleEvent processes ["EVENT", event]. Only owner sessions may publish,
// and only events they authored. The id must still hash to the content; the
// signature is not re-verified because the author proved key ownership
// during AUTH.
func (s *Session) handleEvent(ctx context.Context, args []json.RawMessage) error {
	if len(args) == 0 {
		return protocolError("EVENT without an event")
	}
	var e model.Event
	if err := json.Unmarshal(args[0], &e); err != nil {
		return protocolError(fmt.Sprintf("decode event: %v", err))
	}

	if !s.privileged {
		s.logger.Debug("rejecting event from non-owner", "id", e.ID, "authenticated", s.authenticated)
		return s.sendOK(ctx, e.ID, false, msgRestricted)
	}
	if e.PubKey != s.identity {
		s.logger.Debug("dropping event from another author", "id", e.ID, "pubkey", e.PubKey)
		return nil
	}
	if err := model.ValidateEvent(&e); err != nil {
		return s.sendOK(ctx, e.ID, false, "invalid: "+err.Error())
	}
	if identity.Hash(&e) != e.ID {
		s.logger.Debug("rejecting event with mismatched id", "id", e.ID)
		return s.sendOK(ctx, e.ID, false, msgIDMismatch)
	}
	if e.Tags == nil {
		e.Tags = model.Tags{}
	}

	switch e.Kind {
	case model.KindDeletion:
		s.applyDeletion(ctx, &e)
		return s.sendOK(ctx, e.ID, true, "")
	case model.KindSharedFile:
		if err := s.deps.Blobs.Put(ctx, e.ID, []byte(e.Content)); err != nil {
			s.logger.Error("store shared file failed", "id", e.ID, "err", err)
			return s.sendOK(ctx, e.ID, false, msgFileFailed)
		}
		e.Content = ""
	}

	res, err := s.deps.Store.InsertEvent(ctx, &e)
	if err != nil {
		s.logger.Error("insert event failed", "id", e.ID, "err", err)
		return s.sendOK(ctx, e.ID, false, msgSaveFailed)
	}
	if res == store.Duplicate {
		return s.sendOK(ctx, e.ID, true, msgDuplicate)
	}

	s.publish(ctx, events.TopicEventAccepted, events.EventAccepted{Event: &e})
	return s.sendOK(ctx, e.ID, true, "")
}

// applyDeletion removes every event referenced by an "e" tag of a deletion
// event, provided it has the same author. A blob is only removed along with
// its row, and that removal is best effort. The deletion event itself is not
// stored.
func (s *Session) applyDeletion(ctx context.Context, e *model.Event) {
	for _, id := range e.Tags.Values("e") {
		n, err := s.deps.Store.DeleteEvent(ctx, id, e.PubKey)
		if err != nil {
			s.logger.Error("delete event failed", "id", id, "err", err)
			continue
		}
		if n == 0 {
			continue
		}
		if err := s.deps.Blobs.Delete(ctx, id); err != nil && !errors.Is(err, blob.ErrBlobNotFound) {
			s.logger.Warn("delete blob failed", "id", id, "err", err)
		}
		s.publish(ctx, events.TopicEventDeleted, events.EventDeleted{
			EventID:    id,
			Author:     e.PubKey,
			DeletionID: e.ID,
		})
	}
}

// handleReq processes ["REQ", subId, filter, ...]. The query runs in its own
// goroutine; non-owner sessions are limited to MaxInFlight at a time.
func (s *Session) handleReq(ctx context.Context, args []json.RawMessage) error {
	if len(args) < 2 {
		return protocolError("REQ needs a subscription id and at least one filter")
	}
	subID, filters, err := parseSubscription(args)
	if err != nil {
		return err
	}

	n := s.inFlight.Add(1)
	if int(n) > s.cfg.MaxInFlight && !s.privileged {
		s.inFlight.Add(-1)
		s.logger.Warn("throttling request", "sub", subID, "in_flight", n)
		return s.sendNotice(ctx, msgRateLimited)
	}

	privileged := s.privileged
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic running query", "sub", subID, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		if err := s.runQuery(ctx, subID, filters, privileged); err != nil && ctx.Err() == nil {
			s.logger.Warn("query failed", "sub", subID, "err", err)
		}
	}()
	return nil
}

func (s *Session) runQuery(ctx context.Context, subID string, filters []model.Filter, privileged bool) error {
	for _, f := range filters {
		results, err := s.deps.Store.QueryEvents(ctx, f)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("query events failed", "sub", subID, "err", err)
			if err := s.sendNotice(ctx, msgQueryFailed); err != nil {
				return err
			}
			continue
		}
		for _, e := range results {
			if e.IsPrivileged() && !privileged {
				continue
			}
			if err := s.send(ctx, "EVENT", subID, e); err != nil {
				return err
			}
		}
	}
	return s.send(ctx, "EOSE", subID)
}

// handleCount processes ["COUNT", subId, filter].
func (s *Session) handleCount(ctx context.Context, args []json.RawMessage) error {
	if len(args) < 2 {
		return protocolError("COUNT needs a subscription id and a filter")
	}
	subID, filters, err := parseSubscription(args[:2])
	if err != nil {
		return err
	}

	n, err := s.deps.Store.CountEvents(ctx, filters[0])
	if err != nil {
		s.logger.Error("count events failed", "sub", subID, "err", err)
		return s.sendNotice(ctx, msgQueryFailed)
	}
	return s.send(ctx, "COUNT", subID, n)
}

func parseSubscription(args []json.RawMessage) (string, []model.Filter, error) {
	var subID string
	if err := json.Unmarshal(args[0], &subID); err != nil {
		return "", nil, protocolError("subscription id is not a string")
	}
	filters := make([]model.Filter, 0, len(args)-1)
	for _, raw := range args[1:] {
		var f model.Filter
		if err := json.Unmarshal(raw, &f); err != nil {
			return "", nil, protocolError(fmt.Sprintf("sub %s: %v", subID, err))
		}
		filters = append(filters, f)
	}
	return subID, filters, nil
}

// publish emits a bus event. Failures are logged and never affect the reply.
func (s *Session) publish(ctx context.Context, topic string, event any) {
	if err := s.deps.Publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "err", err)
	}
}
