/*
Package events provides the in-process pub/sub bus the cluster controller
uses to announce store and version mutations to interested observers.

The lifecycle engine publishes an event after each successful store
creation or deletion, version creation or deletion, and migration start
(a store update publishes none), and
the Store Migration Monitor publishes migration.finished when it cuts
discovery over to a destination cluster. Consumers today are the
controller's own log tail; the broker exists so that an audit sink or an
external notifier can attach without threading a new dependency through
the engine.

# Delivery model

	Publisher ──▶ event channel (buffer 100)
	                  │
	                  ▼ broadcast loop
	    ┌─────────────┼─────────────┐
	    ▼             ▼             ▼
	 Subscription  Subscription  Subscription   (buffer 50 each)

Publish never blocks on a consumer: if a subscription's buffer is full,
that subscription misses the event. Events are therefore a lossy
observability signal, never a correctness mechanism — the metadata store
remains the single source of truth.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer sub.Cancel()
	go func() {
		for ev := range sub.C {
			fmt.Println(ev.Type, ev.Metadata)
		}
	}()

	broker.Publish(&events.Event{Type: events.EventStoreCreated, Message: "store created"})

# Event vocabulary

Store events: store.created, store.updated, store.deleted. Version
events: version.created, version.pushed, version.online, version.error,
version.deleted. Mastership events: mastership.gained, mastership.lost.
Migration events: migration.started, migration.finished.
*/
package events
