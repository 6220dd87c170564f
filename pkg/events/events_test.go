package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerDeliversToEverySubscription(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	first := b.Subscribe()
	second := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(&Event{Type: EventStoreCreated, Message: "store created"})

	for _, sub := range []*Subscription{first, second} {
		select {
		case ev := <-sub.C:
			assert.Equal(t, EventStoreCreated, ev.Type)
			assert.False(t, ev.Timestamp.IsZero(), "Publish stamps an unset timestamp")
		case <-time.After(time.Second):
			t.Fatal("expected delivery to every subscription")
		}
	}
}

func TestSubscriptionCancel(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	sub.Cancel()
	sub.Cancel() // idempotent
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-sub.C
	require.False(t, open, "Cancel closes the subscription channel")
}

func TestPublishAfterStopDoesNotBlock(t *testing.T) {
	b := NewBroker()
	b.Start()
	b.Stop()

	done := make(chan struct{})
	go func() {
		b.Publish(&Event{Type: EventStoreDeleted})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish must not block after Stop")
	}
}
