// Package bus is the in-process publish-subscribe channel between
// components. Topics are typed and injected into each consumer; there is no
// global broadcast surface.
package bus

import (
	"sync"
	"time"
)

type Topic string

const (
	// TopicFinanceUpdated fires after any mutation of the finance mirror
	// (entries, jobs, cash config).
	TopicFinanceUpdated Topic = "finance.updated"
	// TopicReceivablesUpdated fires after any receivable mutation.
	TopicReceivablesUpdated Topic = "receivables.updated"
	// TopicPrefsUpdated fires after a filter-preference write.
	TopicPrefsUpdated Topic = "prefs.updated"
)

// Event is a broadcast notification. Like the AMQP channel it carries no
// domain payload; subscribers re-read the source of truth.
type Event struct {
	Topic Topic
	Owner string
	At    time.Time
}

const subscriberBuffer = 16

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// that falls more than subscriberBuffer events behind loses the oldest
// notification, which is harmless because every event only means "re-read".
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic][]chan Event
}

func New() *Bus {
	return &Bus{subs: make(map[Topic][]chan Event)}
}

// Subscribe registers for a topic. The returned cancel func removes the
// subscription and closes the channel.
func (b *Bus) Subscribe(topic Topic) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, c := range list {
			if c == ch {
				b.subs[topic] = append(list[:i], list[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Publish broadcasts an event to all current subscribers of its topic.
func (b *Bus) Publish(topic Topic, owner string) {
	evt := Event{Topic: topic, Owner: owner, At: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[topic] {
		select {
		case ch <- evt:
		default:
			// Drop for slow subscribers; the next event resyncs them.
		}
	}
}
