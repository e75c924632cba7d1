// Package eventbus decouples the evaluation pipeline from its observers.
// Telemetry recording and advisory publishing subscribe here, keeping both
// fire-and-forget from the engine's perspective.
package eventbus

import "sync"

// Event represents an arbitrary event passed on the bus.
type Event interface{}

// EventBus implements a simple publish/subscribe event bus.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// subscriberBuffer sizes each subscriber channel. One evaluation emits the
// run record plus one battery snapshot per horizon bucket, so the buffer
// must absorb a full default run before a consumer falls behind.
const subscriberBuffer = 32

// Bus is the default EventBus implementation. Subscribers are tracked in a
// map keyed by their receive side so Unsubscribe stays O(1).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[<-chan Event]chan Event
	closed      bool
}

// New creates a new Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[<-chan Event]chan Event)}
}

// Publish delivers the event to every subscriber. Sends never block: when a
// subscriber's buffer is full the event is dropped for that subscriber, so a
// stalled consumer cannot hold up an evaluation.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel. Subscribing
// to a closed bus yields an already-closed channel.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[ch] = ch
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subscribers[sub]
	if !ok {
		return
	}
	delete(b.subscribers, sub)
	close(ch)
}

// Close closes every subscriber channel. Further publishes are dropped and
// further subscriptions yield closed channels. Safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
