package events

import (
	"sync"
	"time"
)

// EventType classifies a cluster event.
type EventType string

const (
	EventStoreCreated      EventType = "store.created"
	EventStoreUpdated      EventType = "store.updated"
	EventStoreDeleted      EventType = "store.deleted"
	EventVersionCreated    EventType = "version.created"
	EventVersionPushed     EventType = "version.pushed"
	EventVersionOnline     EventType = "version.online"
	EventVersionError      EventType = "version.error"
	EventVersionDeleted    EventType = "version.deleted"
	EventMastershipGained  EventType = "mastership.gained"
	EventMastershipLost    EventType = "mastership.lost"
	EventMigrationStarted  EventType = "migration.started"
	EventMigrationFinished EventType = "migration.finished"
)

// Event is one observed cluster mutation, published by the lifecycle
// engine and the background monitors.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

const (
	publishBuffer    = 100
	subscriberBuffer = 50
)

// Subscription is one consumer's view of the broker. Events arrive on C;
// Cancel detaches the subscription and closes C.
type Subscription struct {
	C <-chan *Event

	broker *Broker
	ch     chan *Event
	once   sync.Once
}

// Cancel detaches the subscription from its broker. Safe to call more
// than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.broker.remove(s)
		close(s.ch)
	})
}

// Broker fans published events out to every live subscription. Publish
// never blocks on a slow consumer: a subscription whose buffer is full
// misses events rather than stalling the publisher.
type Broker struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}

	eventCh chan *Event
	stopCh  chan struct{}
}

// NewBroker returns a broker; call Start before publishing.
func NewBroker() *Broker {
	return &Broker{
		subs:    make(map[*Subscription]struct{}),
		eventCh: make(chan *Event, publishBuffer),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the distribution goroutine.
func (b *Broker) Start() {
	go b.run()
}

// Stop halts distribution. Events published after Stop are dropped.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe registers a new consumer.
func (b *Broker) Subscribe() *Subscription {
	ch := make(chan *Event, subscriberBuffer)
	s := &Subscription{C: ch, broker: b, ch: ch}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Publish enqueues an event for distribution, stamping its timestamp if
// the caller left it zero.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		select {
		case s.ch <- event:
		default:
			// subscriber buffer full, it misses this event
		}
	}
}
