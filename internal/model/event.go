package model

import (
	"encoding/json"
	"fmt"
)

// Event kinds with relay-specific handling.
const (
	KindDirectMessage = 4
	KindDeletion      = 5
	KindGiftWrap      = 1059
	KindSharedFile    = 1064
	KindClientAuth    = 22242
)

// privilegedKinds are only delivered to owner sessions.
var privilegedKinds = map[int]bool{
	KindDirectMessage: true,
	KindGiftWrap:      true,
}

// IsPrivilegedKind reports whether events of the given kind are restricted to owners.
func IsPrivilegedKind(kind int) bool {
	return privilegedKinds[kind]
}

// Tag is a single tag entry: name followed by values.
type Tag []string

// Name returns the tag name or "" for an empty tag.
func (t Tag) Name() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}

// Value returns the first tag value or "" when the tag has none.
func (t Tag) Value() string {
	if len(t) < 2 {
		return ""
	}
	return t[1]
}

// Tags is the ordered tag list of an event.
type Tags []Tag

// Values returns the first value of every tag named name, in order.
func (ts Tags) Values(name string) []string {
	var out []string
	for _, t := range ts {
		if len(t) > 1 && t[0] == name {
			out = append(out, t[1])
		}
	}
	return out
}

// MarshalJSON writes the canonical form, so a nil tag list encodes as [].
func (ts Tags) MarshalJSON() ([]byte, error) {
	return ts.AppendCanonical(nil), nil
}

// ParseTags decodes a stored tags blob. An empty blob yields an empty list.
func ParseTags(blob string) (Tags, error) {
	if blob == "" {
		return Tags{}, nil
	}
	var ts Tags
	if err := json.Unmarshal([]byte(blob), &ts); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if ts == nil {
		ts = Tags{}
	}
	return ts, nil
}

// Event is a signed, immutable record published to the relay.
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// IsPrivileged reports whether the event is of a kind restricted to owners.
func (e *Event) IsPrivileged() bool {
	return IsPrivilegedKind(e.Kind)
}

// String returns a short description for log lines.
func (e *Event) String() string {
	return fmt.Sprintf("event(id=%s kind=%d pubkey=%s)", e.ID, e.Kind, e.PubKey)
}
