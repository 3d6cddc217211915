package swarm

import "sync"

// subscriberBuffer bounds how many events a lagging subscriber is allowed to
// fall behind before new events are dropped for it. A missed broadcast is
// not fatal per the data model: the subscriber simply loses events.
const subscriberBuffer = 64

// Broadcaster fans a stream of Events out to any number of subscribers.
// go-libp2p's own event.Bus does not expose subscriber queue depth, and the
// swarm task's backpressure gate (§4.7) needs exactly that number, so this
// is a small hand-rolled replacement rather than a borrowed library.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscription is a live registration on a Broadcaster.
type Subscription struct {
	id int
	ch chan Event
	b  *Broadcaster
}

// Out returns the channel on which events are delivered.
func (s *Subscription) Out() <-chan Event {
	return s.ch
}

// Close unregisters the subscription.
func (s *Subscription) Close() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	delete(s.b.subs, s.id)
	close(s.ch)
}

// Subscribe registers a new subscriber and returns its Subscription.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch
	return &Subscription{id: id, ch: ch, b: b}
}

// Publish delivers ev to every current subscriber. A subscriber whose buffer
// is full loses the event rather than blocking the publisher.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Lag reports the backlog of the slowest subscriber, used as the stand-in
// for the single shared queue length the backpressure gate in §4.7 is
// defined against.
func (b *Broadcaster) Lag() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	max := 0
	for _, ch := range b.subs {
		if n := len(ch); n > max {
			max = n
		}
	}
	return max
}
