package eventbus

import "testing"

func TestTypedBusPublishSubscribe(t *testing.T) {
	b := NewTyped[string]()
	sub := b.Subscribe()
	b.Publish("hello")
	select {
	case got := <-sub:
		if got != "hello" {
			t.Fatalf("unexpected event %q", got)
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestTypedBusUnsubscribe(t *testing.T) {
	b := NewTyped[int]()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel should be closed")
	}
	b.Publish(1) // must not panic
}

func TestTypedBusClose(t *testing.T) {
	b := NewTyped[int]()
	sub := b.Subscribe()
	b.Close()
	if _, ok := <-sub; ok {
		t.Fatal("channel should be closed")
	}
	if ch := b.Subscribe(); ch == nil {
		t.Fatal("subscribe after close should return closed channel")
	}
	b.Close() // idempotent
}

func TestTypedBusNonBlocking(t *testing.T) {
	b := NewTyped[int]()
	_ = b.Subscribe()
	for i := 0; i < 64; i++ {
		b.Publish(i) // slow subscriber must not block the publisher
	}
}
