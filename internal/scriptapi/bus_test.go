package scriptapi

import "testing"

func TestPostDoesNotDeliverSynchronously(t *testing.T) {
	b := NewBus()
	delivered := false
	b.Subscribe("topic", func(string, any) { delivered = true })
	b.Post("topic", 1)
	if delivered {
		t.Fatal("expected Post to queue, not deliver synchronously")
	}
	b.Pump()
	if !delivered {
		t.Fatal("expected Pump to deliver the queued post")
	}
}

func TestPumpDeliversFIFOPerSubscriber(t *testing.T) {
	b := NewBus()
	var order []int
	b.Subscribe("t", func(_ string, payload any) { order = append(order, payload.(int)) })
	b.Post("t", 1)
	b.Post("t", 2)
	b.Post("t", 3)
	b.Pump()
	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("got %v want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v want %v", order, want)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus()
	delivered := false
	id := b.Subscribe("t", func(string, any) { delivered = true })
	if !b.Unsubscribe(id) {
		t.Fatal("expected Unsubscribe to succeed")
	}
	b.Post("t", nil)
	b.Pump()
	if delivered {
		t.Fatal("expected no delivery after Unsubscribe")
	}
	if b.Unsubscribe(id) {
		t.Fatal("expected second Unsubscribe of the same id to fail")
	}
}

func TestTopicIsolation(t *testing.T) {
	b := NewBus()
	var aCount, bCount int
	b.Subscribe("a", func(string, any) { aCount++ })
	b.Subscribe("b", func(string, any) { bCount++ })
	b.Post("a", nil)
	b.Pump()
	if aCount != 1 || bCount != 0 {
		t.Fatalf("expected only topic a delivered, got a=%d b=%d", aCount, bCount)
	}
}
