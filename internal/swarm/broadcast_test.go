package swarm

import "testing"

func TestBroadcasterFanOut(t *testing.T) {
	b := NewBroadcaster()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer s1.Close()
	defer s2.Close()

	b.Publish(Event{Protocol: "swarm", Payload: 1})

	for _, s := range []*Subscription{s1, s2} {
		select {
		case ev := <-s.Out():
			if ev.Protocol != "swarm" {
				t.Fatalf("expected protocol swarm, got %s", ev.Protocol)
			}
		default:
			t.Fatalf("expected event delivered to subscriber")
		}
	}
}

func TestBroadcasterDropsOnFullBuffer(t *testing.T) {
	b := NewBroadcaster()
	s := b.Subscribe()
	defer s.Close()

	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish(Event{Protocol: "swarm", Payload: i})
	}

	if lag := b.Lag(); lag != subscriberBuffer {
		t.Fatalf("expected lag capped at buffer size %d, got %d", subscriberBuffer, lag)
	}
}

func TestBroadcasterCloseUnregisters(t *testing.T) {
	b := NewBroadcaster()
	s := b.Subscribe()
	s.Close()

	b.Publish(Event{Protocol: "swarm", Payload: "after-close"})

	if lag := b.Lag(); lag != 0 {
		t.Fatalf("expected no subscribers left, lag=%d", lag)
	}
}
