// Package events carries relay activity to other processes over a message
// bus. The relay publishes after it has stored or deleted an event and after
// a session authenticates; `relay watch` subscribes.
package events

import (
	"context"

	"github.com/alfredjeanlab/relay/internal/model"
)

const (
	TopicEventAccepted        = "relay.event.accepted"
	TopicEventDeleted         = "relay.event.deleted"
	TopicSessionAuthenticated = "relay.session.authenticated"

	// TopicAll matches every topic the relay publishes.
	TopicAll = "relay.>"
)

// EventAccepted is published after a new event is stored. Re-published
// duplicates do not produce one.
type EventAccepted struct {
	Event *model.Event `json:"event"`
}

// EventDeleted is published for each row removed by a deletion event.
type EventDeleted struct {
	EventID    string `json:"event_id"`
	Author     string `json:"author"`
	DeletionID string `json:"deletion_id"`
}

type SessionAuthenticated struct {
	ConnID     string `json:"conn_id"`
	PubKey     string `json:"pubkey"`
	Privileged bool   `json:"privileged"`
}

// Publisher emits JSON payloads to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
	Close() error
}

// Message is one payload received from the bus.
type Message struct {
	Topic string
	Data  []byte
}

// Subscriber receives payloads from the bus. The cancel function returned by
// Subscribe unsubscribes and closes the channel; it may be called repeatedly.
type Subscriber interface {
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}

// NoopPublisher discards everything. The relay uses it when no bus is configured.
type NoopPublisher struct{}

func (*NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (*NoopPublisher) Close() error { return nil }
