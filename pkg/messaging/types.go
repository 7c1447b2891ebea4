package messaging

import (
	"time"
)

type EventType string

const (
	EventBuilt       EventType = "built"
	EventStepped     EventType = "stepped"
	EventObservation EventType = "observation"
	EventReset       EventType = "reset"
	EventTeardown    EventType = "teardown"
)

// Event is a runtime notification fanned out to subscribers
type Event struct {
	Type      EventType `json:"type"`
	SceneID   string    `json:"scene_id,omitempty"`
	To        []string  `json:"-"`       // Subscriber IDs (empty means broadcast)
	Content   any       `json:"content"` // Event-specific payload
	Timestamp time.Time `json:"timestamp"`
}

// Broker routes runtime events to subscribers
type Broker interface {
	// Publish sends an event to its recipients
	Publish(ev Event) error
	// Subscribe registers a channel to receive events
	Subscribe(id string, ch chan<- Event) error
	// Unsubscribe removes a subscription
	Unsubscribe(id string) error
}
