// Package events implements the publish/subscribe bus that tells renderers
// a location has changed. Delivery is synchronous and single pass: every
// observer subscribed at publish time is notified once, in subscription order.
package events

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Observer is notified after a mutation of some location's state. It decides
// for itself, usually via the state manager's dirty bits, whether to react.
type Observer interface {
	Notify(locationID string)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(locationID string)

// Notify calls f(locationID).
func (f ObserverFunc) Notify(locationID string) { f(locationID) }

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	ID uuid.UUID
}

type entry struct {
	sub      Subscription
	observer Observer
}

// Bus is a registry of observers. The zero value is ready to use.
type Bus struct {
	mu      sync.Mutex
	entries []entry
}

// Subscribe registers an observer and returns its handle.
func (b *Bus) Subscribe(o Observer) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := Subscription{ID: uuid.New()}
	b.entries = append(b.entries, entry{sub: sub, observer: o})
	return sub
}

// Unsubscribe removes the observer behind sub. It reports whether the
// subscription was active.
func (b *Bus) Unsubscribe(sub Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.entries {
		if e.sub == sub {
			b.entries = append(b.entries[:i:i], b.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Publish notifies every observer of a change to locationID. Observers run on
// the caller's goroutine without the bus lock held, so they may subscribe,
// unsubscribe or query state freely.
func (b *Bus) Publish(locationID string) {
	b.mu.Lock()
	snapshot := make([]Observer, len(b.entries))
	for i, e := range b.entries {
		snapshot[i] = e.observer
	}
	b.mu.Unlock()

	for _, o := range snapshot {
		o.Notify(locationID)
	}
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Collector is an Observer that remembers which locations were notified
// until they are taken. Front ends use it to batch re-rendering after a
// command.
type Collector struct {
	mu   sync.Mutex
	seen map[string]bool
}

// Notify records locationID.
func (c *Collector) Notify(locationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen == nil {
		c.seen = map[string]bool{}
	}
	c.seen[locationID] = true
}

// Take returns the sorted ids notified since the last call and forgets them.
func (c *Collector) Take() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.seen))
	for id := range c.seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	c.seen = nil
	return ids
}
