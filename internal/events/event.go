// Package events distributes entity change notifications to in-process
// subscribers such as the MQTT forwarder.
package events

import "time"

// EventType is the kind of mutation.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
	EventReset   EventType = "reset"
)

// EntityEvent describes a completed mutation.
type EntityEvent struct {
	Type      EventType `json:"type"`
	Resource  string    `json:"resource"`
	ID        uint      `json:"id"`
	Namespace string    `json:"namespace"`
	Principal string    `json:"principal"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler processes entity events.
type Handler func(event *EntityEvent)

// Publisher accepts events for asynchronous delivery.
type Publisher interface {
	Publish(event *EntityEvent)
}
