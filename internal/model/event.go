package model

import (
	"time"
)

// EventType classifies relayed events.
type EventType string

const (
	EventTypeMessage EventType = "message"
	EventTypeDeleted EventType = "deleted"
	EventTypeSystem  EventType = "system"
)

// EventTypeFor picks the relay event type of a message.
func EventTypeFor(m Message) EventType {
	switch {
	case m.Deleted:
		return EventTypeDeleted
	case m.Type == "system":
		return EventTypeSystem
	default:
		return EventTypeMessage
	}
}

// RoomEvent is the JSON document published to the relay stream for every
// message the watcher observes.
type RoomEvent struct {
	ID         string    `json:"id"`
	Room       string    `json:"room"`
	Type       EventType `json:"type"`
	Message    Message   `json:"message"`
	ObservedAt time.Time `json:"observed_at"`
	Sequence   uint64    `json:"sequence,omitempty"`
}
