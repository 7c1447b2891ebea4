package messaging

import (
	"errors"
	"fmt"
	"sync"
)

// SimpleBroker implements the Broker interface
// subscribers is a map where keys are subscriber IDs and values are channels for receiving events
type SimpleBroker struct {
	subscribers map[string]chan<- Event
	mu          sync.RWMutex
}

// NewBroker creates a new event broker
func NewBroker() *SimpleBroker {
	return &SimpleBroker{
		subscribers: make(map[string]chan<- Event),
	}
}

// Publish sends an event to the listed recipients, or to every subscriber
// when To is empty. A full subscriber channel does not block the publisher;
// the event is dropped for that subscriber and reported in the error.
func (b *SimpleBroker) Publish(ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	recipients := ev.To
	if len(recipients) == 0 {
		for id := range b.subscribers {
			recipients = append(recipients, id)
		}
	}

	var errs []error
	for _, id := range recipients {
		ch, ok := b.subscribers[id]
		if !ok {
			continue // Skip if recipient not found
		}

		select {
		case ch <- ev:
		default:
			errs = append(errs, fmt.Errorf("subscriber %s's channel is full", id))
		}
	}

	return errors.Join(errs...)
}

// Subscribe registers a channel to receive events
func (b *SimpleBroker) Subscribe(id string, ch chan<- Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; exists {
		return fmt.Errorf("subscriber %s is already subscribed", id)
	}

	b.subscribers[id] = ch
	return nil
}

// Unsubscribe removes a subscription
func (b *SimpleBroker) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; !exists {
		return fmt.Errorf("subscriber %s is not subscribed", id)
	}

	delete(b.subscribers, id)
	return nil
}

func (b *SimpleBroker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string]chan<- Event)
}
